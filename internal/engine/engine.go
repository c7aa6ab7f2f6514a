package engine

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/fabulist/fabula/internal/grammar"
	"github.com/fabulist/fabula/internal/ir"
	"github.com/fabulist/fabula/internal/tracker"
	"github.com/fabulist/fabula/internal/world"
)

// StepState is the engine's per-step state: Idle between steps, Stepping
// while one executes.
type StepState int

const (
	StateIdle StepState = iota
	StateStepping
)

// RunStatus is the coarse run-level outcome.
type RunStatus string

const (
	RunActive    RunStatus = "active"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// StepResult is what one step produced: the timestep it executed at and the
// records for every rule that fired, in firing order.
type StepResult struct {
	Timestep int64
	Records  []ir.RuleExecutionRecord
}

// Simulation orchestrates the step loop for one world.
//
// A Simulation owns its WorldState, rule schedule, RNG, and Tracker; nothing
// is shared between worlds. All randomness flows through the injected RNG so
// a seeded run is fully reproducible.
//
// One step: snapshot the world at the current timestep, evaluate every
// active rule in schedule order (priority descending, ties in registration
// order), roll each matched rule against its likelihood, execute effects of
// rules that fire, advance the timestep, snapshot again. Mutations are never
// rolled back; effect failures are recorded, not undone.
type Simulation struct {
	world    *world.State
	tracker  *tracker.Tracker
	clock    *Clock
	rng      RNG
	exec     *executor
	truthGen TruthIDGenerator

	baseRules  []ir.Rule
	worldRules []ir.Rule
	schedule   []*ir.Rule // merged and priority-sorted, rebuilt on registration

	state      StepState
	status     RunStatus
	truths     []ir.Truth
	restricted map[string]bool
}

// SimulationOption configures a Simulation.
type SimulationOption func(*Simulation)

// WithRNG injects the randomness source. Defaults to a production RNG
// seeded with 1; pass NewRNG(seed) for reproducible runs or a FixedRNG in
// tests.
func WithRNG(rng RNG) SimulationOption {
	return func(s *Simulation) { s.rng = rng }
}

// WithClock injects a pre-positioned clock, used to resume a run from
// persisted state.
func WithClock(c *Clock) SimulationOption {
	return func(s *Simulation) { s.clock = c }
}

// WithExpander overrides the grammar expander (e.g. a small max depth to
// exercise the recursion guard).
func WithExpander(e *grammar.Expander) SimulationOption {
	return func(s *Simulation) { s.exec.expander = e }
}

// WithTruthIDs injects the truth identifier generator. Defaults to UUIDv7;
// tests pass a FixedGenerator for stable output.
func WithTruthIDs(g TruthIDGenerator) SimulationOption {
	return func(s *Simulation) { s.truthGen = g }
}

// New creates a Simulation for a world.
func New(w *world.State, tr *tracker.Tracker, opts ...SimulationOption) *Simulation {
	s := &Simulation{
		world:      w,
		tracker:    tr,
		clock:      NewClock(),
		rng:        NewRNG(1),
		exec:       &executor{expander: grammar.New(), grammars: make(map[string]*ir.Grammar)},
		truthGen:   UUIDv7Generator{},
		state:      StateIdle,
		status:     RunActive,
		restricted: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterBaseRules installs the global rule set shared across worlds.
// The slice is copied; registration order is preserved and base rules
// schedule before world rules at equal priority.
func (s *Simulation) RegisterBaseRules(rules []ir.Rule) {
	s.baseRules = append([]ir.Rule(nil), rules...)
	s.rebuildSchedule()
}

// RegisterWorldRules installs the world-scoped rule set. The slice is
// copied; registration order is preserved.
func (s *Simulation) RegisterWorldRules(rules []ir.Rule) {
	s.worldRules = append([]ir.Rule(nil), rules...)
	s.rebuildSchedule()
}

// RegisterGrammar makes a grammar available to generate_text effects.
func (s *Simulation) RegisterGrammar(g *ir.Grammar) {
	s.exec.grammars[g.Name] = g
}

// rebuildSchedule merges base and world rules and sorts by priority
// descending. The sort must be stable: within equal priority, base rules
// keep their registration order and precede world rules.
func (s *Simulation) rebuildSchedule() {
	merged := make([]*ir.Rule, 0, len(s.baseRules)+len(s.worldRules))
	for i := range s.baseRules {
		merged = append(merged, &s.baseRules[i])
	}
	for i := range s.worldRules {
		merged = append(merged, &s.worldRules[i])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Priority > merged[j].Priority
	})
	s.schedule = merged
}

// Step executes one simulation step against the supplied context.
//
// Never call Step concurrently; re-entry returns a BAD_STATE RuntimeError.
// A step that has started always completes - cancellation lives in Run,
// between steps, which is what keeps partial steps unobservable.
func (s *Simulation) Step(sc StepContext) (*StepResult, error) {
	if s.state != StateIdle {
		return nil, &RuntimeError{
			Code:    ErrCodeBadState,
			Message: "step already in progress",
			WorldID: s.world.WorldID(),
		}
	}
	s.state = StateStepping
	defer func() { s.state = StateIdle }()

	timestep := s.clock.Current()
	s.tracker.Capture(s.world, timestep)

	result := &StepResult{Timestep: timestep}
	for _, rule := range s.schedule {
		if !rule.IsActive {
			continue
		}

		// Likelihood gate: Float64 ∈ [0,1), so 1.0 always attempts and
		// 0.0 never fires.
		if s.rng.Float64() >= rule.Likelihood {
			continue
		}

		bindings, ok := matchRule(rule, s.world, sc)
		if !ok {
			continue
		}
		slog.Debug("rule matched",
			"rule", rule.ID,
			"timestep", timestep,
			"bindings", len(bindings),
		)

		out := s.exec.execute(rule, bindings, s.world, s.rng)
		for _, action := range out.restricted {
			s.restricted[action] = true
		}

		rec := ir.RuleExecutionRecord{
			RuleID:           rule.ID,
			RuleName:         rule.Name,
			RuleType:         rule.Type,
			Timestep:         timestep,
			Effects:          out.records,
			Narrative:        strings.Join(out.narrative, "\n"),
			AffectedEntities: out.affected,
		}
		s.tracker.Append(rec)
		result.Records = append(result.Records, rec)

		if rec.Narrative != "" {
			s.truths = append(s.truths, ir.Truth{
				ID:        s.truthGen.Generate(),
				WorldID:   s.world.WorldID(),
				Timestep:  timestep,
				RuleID:    rule.ID,
				RuleName:  rule.Name,
				Narrative: rec.Narrative,
				Affected:  out.affected,
			})
		}

		slog.Info("rule fired",
			"rule", rule.ID,
			"timestep", timestep,
			"effects", len(out.records),
			"narrative", rec.Narrative != "",
		)
	}

	s.clock.Advance()
	s.tracker.Capture(s.world, s.clock.Current())
	return result, nil
}

// Run executes a fixed number of steps with the same context.
//
// Cancellation is cooperative: the context is checked between steps only, so
// no partially-applied step is ever observed. A cancelled run is marked
// failed; a run that completes all steps is marked completed.
func (s *Simulation) Run(ctx context.Context, steps int, sc StepContext) ([]StepResult, error) {
	results := make([]StepResult, 0, steps)
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			s.status = RunFailed
			return results, &RuntimeError{
				Code:    ErrCodeRunCancelled,
				Message: err.Error(),
				WorldID: s.world.WorldID(),
			}
		}
		res, err := s.Step(sc)
		if err != nil {
			s.status = RunFailed
			return results, err
		}
		results = append(results, *res)
	}
	s.status = RunCompleted
	return results, nil
}

// State returns the per-step engine state.
func (s *Simulation) State() StepState { return s.state }

// Status returns the coarse run-level status.
func (s *Simulation) Status() RunStatus { return s.status }

// Timestep returns the current timestep.
func (s *Simulation) Timestep() int64 { return s.clock.Current() }

// Tracker returns the run's execution tracker.
func (s *Simulation) Tracker() *tracker.Tracker { return s.tracker }

// World returns the simulation's world state.
func (s *Simulation) World() *world.State { return s.world }

// Truths drains the truths accumulated since the last call. Callers persist
// these through the store after stepping; draining keeps the engine free of
// any persistence dependency.
func (s *Simulation) Truths() []ir.Truth {
	out := s.truths
	s.truths = nil
	return out
}

// RestrictedActions returns the actions restricted by fired rules so far,
// sorted for determinism.
func (s *Simulation) RestrictedActions() []string {
	out := make([]string, 0, len(s.restricted))
	for a := range s.restricted {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Schedule returns the merged rules in evaluation order.
// Used for introspection and testing.
func (s *Simulation) Schedule() []*ir.Rule {
	return s.schedule
}
