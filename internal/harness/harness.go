// Package harness runs YAML-defined conformance scenarios against the real
// engine.
//
// Each scenario builds a fresh world, compiles its rules from inline source,
// runs a fixed number of steps with a seeded RNG, and evaluates assertions
// over the resulting trace and final state. Everything injectable is pinned
// (RNG seed, truth IDs), so the same scenario always produces a
// byte-identical trace - which is what makes golden comparison meaningful.
package harness

import (
	"context"
	"fmt"

	"github.com/fabulist/fabula/internal/compiler"
	"github.com/fabulist/fabula/internal/engine"
	"github.com/fabulist/fabula/internal/ir"
	"github.com/fabulist/fabula/internal/testutil"
	"github.com/fabulist/fabula/internal/tracker"
	"github.com/fabulist/fabula/internal/world"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: true if every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every rule firing in order.
	Trace []ir.RuleExecutionRecord `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Truths are the timeline events the run generated.
	Truths []ir.Truth `json:"truths,omitempty"`

	// World is the final world state, for attribute assertions.
	World *world.State `json:"-"`
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Run executes a scenario and returns the result.
//
// Compilation is strict: any per-rule compile error fails the scenario
// before it runs, since a scenario asserting on a half-compiled rule set
// proves nothing.
func Run(scenario *Scenario) (*Result, error) {
	baseRules, err := compileSources(scenario.BaseRules)
	if err != nil {
		return nil, err
	}
	worldRules, err := compileSources(scenario.Rules)
	if err != nil {
		return nil, err
	}

	w, err := buildWorld(scenario)
	if err != nil {
		return nil, err
	}

	seed := scenario.RNGSeed
	if seed == 0 {
		seed = 1
	}
	sim := engine.New(w, tracker.New(),
		engine.WithRNG(engine.NewRNG(seed)),
		engine.WithTruthIDs(testutil.NewSeqTruthGenerator()),
	)
	sim.RegisterBaseRules(baseRules)
	sim.RegisterWorldRules(worldRules)
	for name, symbols := range scenario.Grammars {
		g := &ir.Grammar{Name: name, Symbols: symbols}
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("grammar %s: %w", name, err)
		}
		sim.RegisterGrammar(g)
	}

	sc := engine.StepContext{
		X:            scenario.Context.X,
		Y:            scenario.Context.Y,
		PlayerEnergy: scenario.Context.Energy,
		ActionType:   scenario.Context.Action,
		NearNPC:      scenario.Context.NearNPC,
	}
	sc.InSettlement = w.InSettlement(sc.X, sc.Y)

	if _, err := sim.Run(context.Background(), scenario.Steps, sc); err != nil {
		return nil, fmt.Errorf("scenario run: %w", err)
	}

	result := &Result{
		Pass:   true,
		Trace:  sim.Tracker().Records(),
		Truths: sim.Truths(),
		World:  w,
	}
	for i := range scenario.Assertions {
		evaluateAssertion(&scenario.Assertions[i], result)
	}
	return result, nil
}

// compileSources compiles each inline batch and concatenates the rules.
func compileSources(sources []RuleSource) ([]ir.Rule, error) {
	var rules []ir.Rule
	for i, rs := range sources {
		format, err := ir.ParseFormat(rs.Syntax)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		res, err := compiler.Compile([]byte(rs.Source), format)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		if len(res.Errors) > 0 {
			return nil, fmt.Errorf("rules[%d]: %w", i, res.Errors[0])
		}
		rules = append(rules, res.Rules...)
	}
	return rules, nil
}

// buildWorld seeds the scenario's world state.
func buildWorld(scenario *Scenario) (*world.State, error) {
	worldID := scenario.World
	if worldID == "" {
		worldID = "w-scenario"
	}
	w := world.New(worldID)
	for _, z := range scenario.Zones {
		w.RegisterZone(z)
	}
	for _, c := range scenario.Characters {
		e := ir.NewEntity(c.ID)
		if c.Alive != nil {
			e.Alive = *c.Alive
		}
		for k, v := range c.Attributes {
			conv, err := ir.FromAny(v)
			if err != nil {
				return nil, fmt.Errorf("character %s attribute %q: %w", c.ID, k, err)
			}
			e.Set(k, conv)
		}
		w.AddEntity(e)
	}
	return w, nil
}
