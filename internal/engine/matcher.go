package engine

import (
	"log/slog"

	"github.com/fabulist/fabula/internal/ir"
	"github.com/fabulist/fabula/internal/world"
)

// Bindings maps unification variables ("?x") to their resolved values.
// One Bindings map is threaded through the whole condition list so a
// variable resolves to the same entity across clauses; the executor then
// substitutes bound variables into effect targets and grammar variables.
type Bindings map[string]ir.Value

// StepContext carries the per-step external facts conditions evaluate
// against: player position and energy, the action being attempted, and NPC
// proximity. It is plain data supplied by the caller; the engine never
// computes any of it.
type StepContext struct {
	X, Y         float64
	InSettlement bool
	PlayerEnergy *float64 // nil means unknown; energy conditions pass
	ActionType   string
	ActionID     string
	NearNPC      bool
}

// matchRule evaluates a rule's condition list against the world.
//
// Conditions are evaluated in declaration order as a conjunction: the first
// failing condition short-circuits. On success the returned Bindings holds
// every variable resolved along the way. Unknown condition types pass - the
// engine's explicit policy is that a predicate it cannot evaluate does not
// block a rule, it only logs.
func matchRule(rule *ir.Rule, w *world.State, sc StepContext) (Bindings, bool) {
	bindings := make(Bindings)
	for i := range rule.Conditions {
		if !matchCondition(&rule.Conditions[i], w, sc, bindings) {
			return nil, false
		}
	}
	return bindings, true
}

func matchCondition(c *ir.Condition, w *world.State, sc StepContext, b Bindings) bool {
	switch c.Type {
	case ir.ConditionLocation:
		return matchLocation(c.Value, sc.InSettlement)

	case ir.ConditionZone:
		// Zone membership is resolved from the registered zones and the
		// step position, not from the caller's precomputed flag.
		return matchLocation(c.Value, w.InSettlement(sc.X, sc.Y))

	case ir.ConditionAction:
		want, _ := ir.AsString(c.Value)
		return want == sc.ActionType || want == sc.ActionID

	case ir.ConditionEnergy:
		if sc.PlayerEnergy == nil {
			return true
		}
		return compareNum(c.Operator, *sc.PlayerEnergy, c.Value)

	case ir.ConditionProximity:
		want := true
		if v, ok := c.Value.(ir.Bool); ok {
			want = bool(v)
		}
		return sc.NearNPC == want

	case ir.ConditionTag:
		return true

	case ir.ConditionPredicate:
		return matchPredicate(c, w, b)

	default:
		slog.Warn("unknown predicate passes",
			"condition_type", c.Type,
			"name", c.Name,
		)
		return true
	}
}

// matchLocation interprets a location/zone condition value. "settlement" and
// "safe" require being inside a zone; "wilderness" and "combat" require
// being outside every zone.
func matchLocation(v ir.Value, inSettlement bool) bool {
	where, _ := ir.AsString(v)
	switch where {
	case "settlement", "safe":
		return inSettlement
	case "wilderness", "combat":
		return !inSettlement
	default:
		return true
	}
}

// matchPredicate evaluates an attribute predicate with unification.
//
// The first argument names the subject entity (a literal ID or a ?variable).
// A second argument is either another entity reference - making this a
// relational predicate keyed on "name:otherID" in the subject's attributes -
// or a literal value the attribute must equal. Unbound variables are
// resolved by scanning entities in registration order and binding the first
// satisfying candidate; already-bound variables only check their entity.
func matchPredicate(c *ir.Condition, w *world.State, b Bindings) bool {
	if len(c.Args) == 0 {
		// Subjectless predicate: satisfied if any entity satisfies it.
		for _, e := range w.Entities() {
			if predicateHolds(c, e, "") {
				return true
			}
		}
		return false
	}

	for _, subject := range candidates(c.Args[0], w, b) {
		if len(c.Args) < 2 {
			if predicateHolds(c, subject, "") {
				bind(b, c.Args[0], subject.ID)
				return true
			}
			continue
		}

		other := c.Args[1]
		if ir.IsVariable(other) || w.Entity(other) != nil {
			// Relational form: name(subject, other).
			for _, target := range candidates(other, w, b) {
				if target.ID == subject.ID {
					continue
				}
				if predicateHolds(c, subject, target.ID) {
					bind(b, c.Args[0], subject.ID)
					bind(b, other, target.ID)
					return true
				}
			}
			continue
		}

		// Value form: name(subject, literal) asserts attribute equality.
		if ir.Equal(subject.Get(c.Name), ir.String(other)) {
			bind(b, c.Args[0], subject.ID)
			return true
		}
	}
	return false
}

// predicateHolds checks the predicate's attribute test against one subject.
// Relational predicates read the "name:otherID" attribute; plain predicates
// read "name". Without an operator the attribute just has to be truthy.
func predicateHolds(c *ir.Condition, subject *ir.Entity, otherID string) bool {
	attr := c.Name
	if otherID != "" {
		attr = ir.RelationAttr(c.Name, otherID)
	}
	val := subject.Get(attr)

	if c.Operator == "" {
		return truthy(val)
	}
	n, ok := ir.AsNum(val)
	if !ok {
		if c.Operator == "==" {
			return ir.Equal(val, c.Value)
		}
		return false
	}
	return compareNum(c.Operator, n, c.Value)
}

// candidates returns the entities a token may refer to: the single bound or
// literal entity, or every live entity in registration order for an unbound
// variable.
func candidates(token string, w *world.State, b Bindings) []*ir.Entity {
	if ir.IsVariable(token) {
		if bound, ok := b[token]; ok {
			id, _ := ir.AsString(bound)
			if e := w.Entity(id); e != nil {
				return []*ir.Entity{e}
			}
			return nil
		}
		var out []*ir.Entity
		for _, e := range w.Entities() {
			if e.Alive {
				out = append(out, e)
			}
		}
		return out
	}
	if e := w.Entity(token); e != nil {
		return []*ir.Entity{e}
	}
	return nil
}

func bind(b Bindings, token, entityID string) {
	if ir.IsVariable(token) {
		b[token] = ir.String(entityID)
	}
}

// compareNum applies a comparison operator between a numeric left side and a
// condition value. Non-numeric condition values fail every comparison except
// equality, which falls back to structural equality.
func compareNum(op string, lhs float64, rhs ir.Value) bool {
	r, ok := ir.AsNum(rhs)
	if !ok {
		return op == "==" && ir.Equal(ir.Num(lhs), rhs)
	}
	switch op {
	case ">":
		return lhs > r
	case ">=":
		return lhs >= r
	case "<":
		return lhs < r
	case "<=":
		return lhs <= r
	case "==":
		return lhs == r
	default:
		return false
	}
}

func truthy(v ir.Value) bool {
	switch t := v.(type) {
	case nil, ir.Null:
		return false
	case ir.Bool:
		return bool(t)
	case ir.Num:
		return t != 0
	case ir.String:
		return t != ""
	default:
		return true
	}
}
