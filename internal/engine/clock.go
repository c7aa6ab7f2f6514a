package engine

import "sync/atomic"

// Clock is the monotonic timestep counter for one run.
//
// Every snapshot and execution record is stamped with a timestep from this
// clock, which only moves forward. Timesteps within a run are therefore
// monotonically non-decreasing, and replaying the same inputs reproduces the
// same stamps.
//
// Thread-safety: safe for concurrent reads, though the engine's sequential
// step loop is the only writer.
type Clock struct {
	timestep atomic.Int64
}

// NewClock creates a clock starting at timestep 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific timestep.
// Used to resume a run from persisted state.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.timestep.Store(start)
	return c
}

// Current returns the current timestep without advancing.
func (c *Clock) Current() int64 {
	return c.timestep.Load()
}

// Advance moves to the next timestep and returns it.
func (c *Clock) Advance() int64 {
	return c.timestep.Add(1)
}
