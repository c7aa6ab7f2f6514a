package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabulist/fabula/internal/ir"
)

const insimulSource = `
// Apprenticeship in the settlement.
rule BefriendStranger {
  type trigger
  priority 8
  likelihood 0.75
  tags social, friendly
  when {
    energy >= 50
    location(settlement)
    near_npc()
    knows(?c, ?other)
  }
  then {
    modify_attribute(?c, occupation, "apprentice")
    relationship_change(?c, ?other, 0.1)
    tracery_generate("meeting", {name: ?c, place: "market"})
  }
}

rule NightCurfew {
  when {
    zone(combat)
  }
  then {
    restrict(trade)
  }
}
`

func TestCompileInsimul(t *testing.T) {
	res, err := Compile([]byte(insimulSource), ir.FormatInsimul)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Rules, 2)

	rule := res.Rules[0]
	assert.Equal(t, "BefriendStranger", rule.Name)
	assert.Equal(t, "insimul/befriendstranger", rule.ID)
	assert.Equal(t, ir.RuleTrigger, rule.Type)
	assert.Equal(t, 8, rule.Priority)
	assert.Equal(t, 0.75, rule.Likelihood)
	assert.Equal(t, []string{"social", "friendly"}, rule.Tags)
	assert.True(t, rule.IsActive)

	require.Len(t, rule.Conditions, 4)
	assert.Equal(t, ir.ConditionEnergy, rule.Conditions[0].Type)
	assert.Equal(t, ">=", rule.Conditions[0].Operator)
	assert.True(t, ir.Equal(ir.Num(50), rule.Conditions[0].Value))
	assert.Equal(t, ir.ConditionLocation, rule.Conditions[1].Type)
	assert.True(t, ir.Equal(ir.String("settlement"), rule.Conditions[1].Value))
	assert.Equal(t, ir.ConditionProximity, rule.Conditions[2].Type)
	assert.Equal(t, ir.ConditionPredicate, rule.Conditions[3].Type)
	assert.Equal(t, "knows", rule.Conditions[3].Name)
	assert.Equal(t, []string{"?c", "?other"}, rule.Conditions[3].Args)

	require.Len(t, rule.Effects, 3)
	assert.Equal(t, ir.EffectModifyAttribute, rule.Effects[0].Type)
	assert.Equal(t, "?c", rule.Effects[0].Target)
	assert.Equal(t, "occupation", rule.Effects[0].Attribute)
	assert.True(t, ir.Equal(ir.String("apprentice"), rule.Effects[0].Value))

	assert.Equal(t, ir.EffectRelationshipChange, rule.Effects[1].Type)
	assert.Equal(t, "?other", rule.Effects[1].Other)
	assert.Equal(t, 0.1, rule.Effects[1].Delta)

	// tracery_generate is recognized as a generate_text effect.
	assert.Equal(t, ir.EffectGenerateText, rule.Effects[2].Type)
	assert.Equal(t, "meeting", rule.Effects[2].Grammar)
	assert.Equal(t, map[string]string{"name": "?c", "place": "market"}, rule.Effects[2].Variables)

	// Second rule uses defaults.
	curfew := res.Rules[1]
	assert.Equal(t, ir.RuleDefault, curfew.Type)
	assert.Equal(t, ir.DefaultPriority, curfew.Priority)
	assert.Equal(t, ir.DefaultLikelihood, curfew.Likelihood)
	assert.Equal(t, ir.EffectRestrict, curfew.Effects[0].Type)
	assert.Equal(t, "trade", curfew.Effects[0].Action)
}

func TestCompileInsimulPartialSuccess(t *testing.T) {
	source := `
rule Broken {
  likelihood nine
  when {
    energy >= 10
  }
  then {
    modify_attribute(c, mood, "calm")
  }
}

rule Fine {
  then {
    modify_attribute(c, mood, "calm")
  }
}
`
	res, err := Compile([]byte(source), ir.FormatInsimul)
	require.NoError(t, err)

	require.Len(t, res.Rules, 1)
	assert.Equal(t, "Fine", res.Rules[0].Name)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Broken", res.Errors[0].RuleName)
	assert.Equal(t, 3, res.Errors[0].Line)
	assert.Contains(t, res.Errors[0].Error(), "likelihood")
}

func TestCompileInsimulUnknownEffectPreserved(t *testing.T) {
	source := `
rule Odd {
  then {
    summon_rain(?c, heavy)
  }
}
`
	res, err := Compile([]byte(source), ir.FormatInsimul)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Rules, 1)

	eff := res.Rules[0].Effects[0]
	assert.Equal(t, ir.EffectUnknown, eff.Type)
	assert.True(t, ir.Equal(ir.String("summon_rain"), eff.Raw["name"]))
}

func TestCompileInsimulUnterminatedRule(t *testing.T) {
	res, err := Compile([]byte("rule Dangling {\n  priority 3\n"), ir.FormatInsimul)
	require.NoError(t, err)
	assert.Empty(t, res.Rules)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "Dangling", res.Errors[0].RuleName)
}
