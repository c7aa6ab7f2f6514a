package engine

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/fabulist/fabula/internal/grammar"
	"github.com/fabulist/fabula/internal/ir"
	"github.com/fabulist/fabula/internal/world"
)

// executor applies rule effects to the world.
//
// Effects run strictly in declaration order. Each effect's failure (missing
// target, unregistered grammar, expansion blowup) is recorded with
// success=false and a human-readable description, and the rule's remaining
// effects still run. There is no rollback: a mutation made by an earlier
// effect stays even if a later effect fails.
type executor struct {
	expander *grammar.Expander
	grammars map[string]*ir.Grammar
}

// outcome is everything one rule firing produced.
type outcome struct {
	records    []ir.EffectExecutionRecord
	narrative  []string
	affected   []string
	restricted []string
}

func (x *executor) execute(rule *ir.Rule, b Bindings, w *world.State, rng RNG) outcome {
	var out outcome
	affected := make(map[string]bool)

	for i := range rule.Effects {
		rec := x.apply(&rule.Effects[i], b, w, rng, &out)
		if rec.TargetID != "" && rec.Success {
			affected[rec.TargetID] = true
		}
		if !rec.Success {
			slog.Debug("effect failed",
				"rule", rule.ID,
				"effect_type", rec.Type,
				"description", rec.Description,
			)
		}
		out.records = append(out.records, rec)
	}

	for id := range affected {
		out.affected = append(out.affected, id)
	}
	sort.Strings(out.affected)
	return out
}

func (x *executor) apply(eff *ir.Effect, b Bindings, w *world.State, rng RNG, out *outcome) ir.EffectExecutionRecord {
	switch eff.Type {
	case ir.EffectModifyAttribute:
		return applyModifyAttribute(eff, b, w)

	case ir.EffectRelationshipChange:
		return applyRelationshipChange(eff, b, w)

	case ir.EffectGenerateText:
		return x.applyGenerateText(eff, b, w, rng, out)

	case ir.EffectRestrict:
		out.restricted = append(out.restricted, eff.Action)
		return ir.EffectExecutionRecord{
			Type:        eff.Type,
			Success:     true,
			Description: fmt.Sprintf("restricted action %q", eff.Action),
		}

	default:
		desc := "unknown effect type"
		if name, ok := ir.AsString(eff.Raw["name"]); ok && name != "" {
			desc = fmt.Sprintf("unknown effect %q", name)
		} else if method, ok := ir.AsString(eff.Raw["method"]); ok && method != "" {
			desc = fmt.Sprintf("unknown effect %q", method)
		}
		return ir.EffectExecutionRecord{
			Type:        eff.Type,
			Success:     false,
			Description: desc,
		}
	}
}

func applyModifyAttribute(eff *ir.Effect, b Bindings, w *world.State) ir.EffectExecutionRecord {
	target := resolveToken(eff.Target, b)
	rec := ir.EffectExecutionRecord{Type: eff.Type, TargetID: target}

	if err := w.SetAttribute(target, eff.Attribute, eff.Value); err != nil {
		rec.Description = err.Error()
		return rec
	}
	rec.Success = true
	rec.Description = fmt.Sprintf("set %s.%s", target, eff.Attribute)
	return rec
}

func applyRelationshipChange(eff *ir.Effect, b Bindings, w *world.State) ir.EffectExecutionRecord {
	target := resolveToken(eff.Target, b)
	other := resolveToken(eff.Other, b)
	rec := ir.EffectExecutionRecord{Type: eff.Type, TargetID: target}

	e := w.Entity(target)
	if e == nil {
		rec.Description = fmt.Sprintf("entity %q not found", target)
		return rec
	}
	if w.Entity(other) == nil {
		rec.Description = fmt.Sprintf("relation counterpart %q not found", other)
		return rec
	}

	attr := ir.RelationAttr("relationship", other)
	current, _ := e.GetNum(attr)
	e.Set(attr, ir.Num(current+eff.Delta))

	rec.Success = true
	rec.Description = fmt.Sprintf("relationship %s→%s %+g", target, other, eff.Delta)
	return rec
}

func (x *executor) applyGenerateText(eff *ir.Effect, b Bindings, w *world.State, rng RNG, out *outcome) ir.EffectExecutionRecord {
	target := resolveToken(eff.Target, b)
	rec := ir.EffectExecutionRecord{Type: eff.Type, TargetID: target}

	vars := resolveVariables(eff.Variables, b, w)

	var text string
	var err error
	switch {
	case eff.Template != "":
		text, err = x.expander.ExpandTemplate(x.grammars[eff.Grammar], eff.Template, vars, rng)
	case eff.Grammar != "":
		g, ok := x.grammars[eff.Grammar]
		if !ok {
			rec.Description = fmt.Sprintf("grammar %q not registered", eff.Grammar)
			return rec
		}
		text, err = x.expander.Expand(g, ir.OriginSymbol, vars, rng)
	default:
		rec.Description = "generate_text has neither grammar nor template"
		return rec
	}
	if err != nil {
		// Typically a RecursionError from a cyclic grammar. The effect is
		// marked failed and the simulation continues.
		rec.Description = err.Error()
		return rec
	}

	out.narrative = append(out.narrative, text)
	rec.Success = true
	rec.Description = text
	return rec
}

// resolveVariables substitutes bound entities into a grammar variable map.
// A variable whose value is a bound ?token resolves to the entity's display
// name (its "name" attribute) falling back to the entity ID; unbound tokens
// pass through literally.
func resolveVariables(vars map[string]string, b Bindings, w *world.State) map[string]string {
	if len(vars) == 0 {
		return nil
	}
	resolved := make(map[string]string, len(vars))
	for k, v := range vars {
		resolved[k] = displayName(resolveToken(v, b), w)
	}
	return resolved
}

// displayName prefers an entity's name attribute over its raw ID.
func displayName(token string, w *world.State) string {
	if e := w.Entity(token); e != nil {
		if name := e.GetString("name"); name != "" {
			return name
		}
	}
	return token
}

// resolveToken substitutes a bound variable with its value; anything else
// (literal IDs, unbound variables) passes through unchanged.
func resolveToken(token string, b Bindings) string {
	if ir.IsVariable(token) {
		if v, ok := b[token]; ok {
			if s, ok := ir.AsString(v); ok {
				return s
			}
		}
	}
	return token
}
