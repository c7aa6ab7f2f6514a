// Package engine runs the simulation step loop.
//
// A Simulation owns one world's mutable state, its merged rule schedule, an
// injected RNG, and an execution tracker. All mutation happens inside Step,
// which is strictly sequential: rules are evaluated in priority order (stable
// within equal priority), each matched rule rolls against its likelihood, and
// effects apply in declaration order with per-effect failure records and no
// rollback. Cancellation is cooperative and checked between steps only, so a
// partially-applied step is never observable.
//
// Determinism contract: given the same world, rule registration order, step
// contexts, and RNG seed, a run produces an identical execution log.
package engine
