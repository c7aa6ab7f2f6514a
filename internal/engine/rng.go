package engine

import "math/rand"

// RNG supplies all randomness consumed during a run: likelihood rolls and
// grammar alternative selection. Implemented by *math/rand.Rand (production)
// and FixedRNG (tests). Injecting the RNG is what makes runs reproducible
// from a seed.
type RNG interface {
	Float64() float64
	Intn(n int) int
}

// NewRNG returns a seeded production RNG.
func NewRNG(seed int64) RNG {
	return rand.New(rand.NewSource(seed))
}

// FixedRNG returns predetermined values for testing.
//
// Float64 calls consume the Rolls sequence in order and Intn calls consume
// Picks (modulo n to stay in range). Exhausting a sequence wraps around, so a
// single-element FixedRNG behaves as a constant source.
type FixedRNG struct {
	Rolls []float64
	Picks []int

	rollIdx int
	pickIdx int
}

// Float64 returns the next predetermined roll.
func (f *FixedRNG) Float64() float64 {
	if len(f.Rolls) == 0 {
		return 0
	}
	v := f.Rolls[f.rollIdx%len(f.Rolls)]
	f.rollIdx++
	return v
}

// Intn returns the next predetermined pick reduced modulo n.
func (f *FixedRNG) Intn(n int) int {
	if len(f.Picks) == 0 {
		return 0
	}
	v := f.Picks[f.pickIdx%len(f.Picks)] % n
	f.pickIdx++
	return v
}
