package testutil

import (
	"fmt"
	"sync"
)

// SeqTruthGenerator issues sequential truth IDs ("truth-0001", "truth-0002",
// ...) for deterministic test execution and golden snapshot comparison.
//
// Unlike engine.FixedGenerator, which holds a finite list and panics when
// exhausted, this generator never runs out; it suits scenarios where the
// number of generated truths is not known up front.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SeqTruthGenerator struct {
	mu  sync.Mutex
	seq int
}

// NewSeqTruthGenerator creates a sequential truth ID generator starting at 1.
func NewSeqTruthGenerator() *SeqTruthGenerator {
	return &SeqTruthGenerator{}
}

// Generate returns the next sequential truth ID.
//
// Implements engine.TruthIDGenerator.
func (g *SeqTruthGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("truth-%04d", g.seq)
}

// Reset restarts the sequence. After Reset(), the next Generate() returns
// "truth-0001" again.
func (g *SeqTruthGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
