package harness

import (
	"fmt"
	"strings"

	"github.com/fabulist/fabula/internal/ir"
)

// evaluateAssertion checks one assertion against the run's trace and final
// state, recording a failure message on the result if it does not hold.
func evaluateAssertion(a *Assertion, r *Result) {
	switch a.Type {
	case AssertFired:
		if !fired(r.Trace, a.Rule) {
			r.AddError(fmt.Sprintf("fired: rule %s never fired", a.Rule))
		}

	case AssertNotFired:
		if fired(r.Trace, a.Rule) {
			r.AddError(fmt.Sprintf("not_fired: rule %s fired", a.Rule))
		}

	case AssertFiredOrder:
		if !firedInOrder(r.Trace, a.Rules) {
			r.AddError(fmt.Sprintf("fired_order: rules did not fire in order %v", a.Rules))
		}

	case AssertAttribute:
		assertAttribute(a, r)

	case AssertNarrativeContains:
		if !narrativeContains(r.Trace, a.Text) {
			r.AddError(fmt.Sprintf("narrative_contains: no narrative contains %q", a.Text))
		}

	default:
		// validateScenario rejects unknown types before execution.
		r.AddError(fmt.Sprintf("unknown assertion type %q", a.Type))
	}
}

func fired(trace []ir.RuleExecutionRecord, ruleID string) bool {
	for _, rec := range trace {
		if rec.RuleID == ruleID {
			return true
		}
	}
	return false
}

// firedInOrder reports whether the rule IDs appear in the trace as a
// subsequence: other firings may interleave, but the relative order must
// hold.
func firedInOrder(trace []ir.RuleExecutionRecord, ruleIDs []string) bool {
	next := 0
	for _, rec := range trace {
		if next < len(ruleIDs) && rec.RuleID == ruleIDs[next] {
			next++
		}
	}
	return next == len(ruleIDs)
}

func narrativeContains(trace []ir.RuleExecutionRecord, text string) bool {
	for _, rec := range trace {
		if strings.Contains(rec.Narrative, text) {
			return true
		}
	}
	return false
}

func assertAttribute(a *Assertion, r *Result) {
	e := r.World.Entity(a.Entity)
	if e == nil {
		r.AddError(fmt.Sprintf("attribute: entity %s not found", a.Entity))
		return
	}

	want, err := ir.FromAny(a.Equals)
	if err != nil {
		r.AddError(fmt.Sprintf("attribute: bad expected value for %s.%s: %v", a.Entity, a.Attribute, err))
		return
	}
	got := e.Get(a.Attribute)
	if !ir.Equal(want, got) {
		r.AddError(fmt.Sprintf("attribute: %s.%s = %v, want %v", a.Entity, a.Attribute, got, want))
	}
}
