package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestRule(name string) Rule {
	return Rule{
		ID:         "rule-" + name,
		Name:       name,
		Type:       RuleTrigger,
		Priority:   DefaultPriority,
		Likelihood: DefaultLikelihood,
		Conditions: []Condition{
			{Type: ConditionEnergy, Operator: ">=", Value: Num(50)},
			{Type: ConditionLocation, Value: String("settlement")},
		},
		Effects: []Effect{
			{Type: EffectModifyAttribute, Target: "char-1", Attribute: "occupation", Value: String("apprentice")},
			{Type: EffectGenerateText, Grammar: "meeting", Variables: map[string]string{"name": "?c"}},
		},
		IsActive: true,
		Format:   FormatEnsemble,
	}
}

func TestRuleValidate(t *testing.T) {
	rule := makeTestRule("valid")
	assert.NoError(t, rule.Validate())
}

func TestRuleValidateRejects(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Rule)
	}{
		{"empty name", func(r *Rule) { r.Name = "" }},
		{"bad type", func(r *Rule) { r.Type = "social" }},
		{"likelihood above one", func(r *Rule) { r.Likelihood = 1.5 }},
		{"negative likelihood", func(r *Rule) { r.Likelihood = -0.1 }},
		{"bad format", func(r *Rule) { r.Format = "python" }},
		{"bad operator", func(r *Rule) { r.Conditions[0].Operator = "!=" }},
		{"effect missing attribute", func(r *Rule) { r.Effects[0].Attribute = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rule := makeTestRule("invalid")
			tc.mutate(&rule)
			assert.Error(t, rule.Validate())
		})
	}
}

func TestMarshalRulesRoundTrip(t *testing.T) {
	rules := []Rule{makeTestRule("first"), makeTestRule("second")}
	rules[1].Priority = 8
	rules[1].Conditions = append(rules[1].Conditions, Condition{
		Type: ConditionUnknown,
		Name: "star_alignment",
		Raw:  Map{"phase": String("waxing")},
	})

	data, err := MarshalRules(rules)
	require.NoError(t, err)

	decoded, err := UnmarshalRules(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	assert.Equal(t, rules[0].Name, decoded[0].Name)
	assert.Equal(t, 8, decoded[1].Priority)
	assert.True(t, Equal(Num(50), decoded[0].Conditions[0].Value))
	assert.Equal(t, ConditionUnknown, decoded[1].Conditions[2].Type)
	assert.True(t, Equal(String("waxing"), decoded[1].Conditions[2].Raw["phase"]))
}

func TestRuleSetHashStable(t *testing.T) {
	rules := []Rule{makeTestRule("a"), makeTestRule("b")}

	h1, err := RuleSetHash(rules)
	require.NoError(t, err)
	h2, err := RuleSetHash(rules)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// Round trip preserves the hash.
	data, err := MarshalRules(rules)
	require.NoError(t, err)
	decoded, err := UnmarshalRules(data)
	require.NoError(t, err)
	h3, err := RuleSetHash(decoded)
	require.NoError(t, err)
	assert.Equal(t, h1, h3)
}

func TestRuleSetHashChanges(t *testing.T) {
	a := []Rule{makeTestRule("a")}
	b := []Rule{makeTestRule("a")}
	b[0].Priority = 9

	ha, err := RuleSetHash(a)
	require.NoError(t, err)
	hb, err := RuleSetHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("kismet")
	require.NoError(t, err)
	assert.Equal(t, FormatKismet, f)

	_, err = ParseFormat("prolog")
	assert.Error(t, err)
}

func TestIsVariable(t *testing.T) {
	assert.True(t, IsVariable("?x"))
	assert.True(t, IsVariable("?character"))
	assert.False(t, IsVariable("x"))
	assert.False(t, IsVariable("?"))
	assert.False(t, IsVariable(""))
}

func TestEntityClone(t *testing.T) {
	e := NewEntity("char-1")
	e.Set("occupation", String("farmer"))
	e.Set("relationships", Map{"char-2": Num(0.4)})

	c := e.Clone()
	c.Set("occupation", String("soldier"))
	c.Attributes["relationships"].(Map)["char-2"] = Num(-0.9)

	assert.Equal(t, "farmer", e.GetString("occupation"))
	assert.True(t, Equal(Num(0.4), e.Attributes["relationships"].(Map)["char-2"]))
}

func TestGrammarValidate(t *testing.T) {
	g := Grammar{Name: "names", Symbols: map[string][]string{"origin": {"#a#"}, "a": {"x"}}}
	assert.NoError(t, g.Validate())

	bad := Grammar{Name: "empty", Symbols: map[string][]string{"origin": {}}}
	assert.Error(t, bad.Validate())

	assert.Error(t, (&Grammar{}).Validate())
}
