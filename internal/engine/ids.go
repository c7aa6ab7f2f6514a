package engine

import (
	"sync"

	"github.com/google/uuid"
)

// TruthIDGenerator generates identifiers for persisted truth records and run
// tokens. Implemented by UUIDv7Generator (production) and FixedGenerator
// (tests).
type TruthIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers. The embedded
// timestamp makes truth records sortable by creation time, which keeps
// timeline queries cheap.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined identifiers for testing, enabling
// deterministic golden-trace comparison.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns identifiers in order.
//
//	gen := NewFixedGenerator("truth-1", "truth-2")
//	gen.Generate() // "truth-1"
//	gen.Generate() // "truth-2"
//	gen.Generate() // panic: all identifiers exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined identifier. Panics when exhausted;
// fail-fast catches tests that generate more truths than they expected.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all identifiers exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
