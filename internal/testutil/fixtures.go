// Package testutil provides deterministic fixtures shared across test
// packages: a standard world, grammar, and rule set, plus sequential ID
// generation for golden snapshot comparison.
package testutil

import (
	"github.com/fabulist/fabula/internal/ir"
	"github.com/fabulist/fabula/internal/world"
)

// StandardWorld builds the stock test world: two characters in a world with
// one settlement zone at the origin. Asha knows Bram (relationship 0.5); the
// reverse relation is deliberately absent.
func StandardWorld() *world.State {
	w := world.New("w-test")
	w.RegisterZone(world.Zone{Name: "town", X: 0, Y: 0, Radius: 10})

	a := ir.NewEntity("char-a")
	a.Set("name", ir.String("Asha"))
	a.Set("mood", ir.String("happy"))
	a.Set("energy", ir.Num(80))
	a.Set(ir.RelationAttr("relationship", "char-b"), ir.Num(0.5))
	w.AddEntity(a)

	b := ir.NewEntity("char-b")
	b.Set("name", ir.String("Bram"))
	b.Set("mood", ir.String("sour"))
	b.Set("energy", ir.Num(40))
	w.AddEntity(b)

	return w
}

// StandardGrammar is a one-alternative greeting grammar: expansion is fully
// deterministic regardless of RNG.
func StandardGrammar() *ir.Grammar {
	return &ir.Grammar{
		Name: "greeting",
		Symbols: map[string][]string{
			ir.OriginSymbol: {"#name# waves."},
		},
	}
}

// StandardRules is a minimal always-firing rule set against StandardWorld:
// one rule that calms Asha and narrates through StandardGrammar.
func StandardRules() []ir.Rule {
	return []ir.Rule{
		{
			ID:         "insimul/greet",
			Name:       "Greet",
			Type:       ir.RuleTrigger,
			Priority:   ir.DefaultPriority,
			Likelihood: 1.0,
			IsActive:   true,
			Format:     ir.FormatInsimul,
			Conditions: []ir.Condition{
				{Type: ir.ConditionEnergy, Operator: ">=", Value: ir.Num(10)},
			},
			Effects: []ir.Effect{
				{Type: ir.EffectModifyAttribute, Target: "char-a",
					Attribute: "mood", Value: ir.String("calm")},
				{Type: ir.EffectGenerateText, Grammar: "greeting",
					Variables: map[string]string{"name": "Asha"}},
			},
		},
	}
}
