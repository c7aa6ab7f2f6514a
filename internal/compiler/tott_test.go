package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabulist/fabula/internal/ir"
)

const tottSource = `
class FriendlyGreeting:
    """Characters with positive relationships greet each other warmly."""
    name = "Friendly Greeting"
    rule_type = "social"
    priority = 5

    @staticmethod
    def preconditions(character, target):
        return (
            character.mood == "happy" and
            character.get_relationship(target) > 0.5
        )

    @staticmethod
    def effects(character, target):
        character.say("Hello, friend!")
        character.modify_relationship(target, 0.1)


class AngryConfrontation:
    name = "Angry Confrontation"
    rule_type = "social"
    priority = 8
    likelihood = 0.6

    @staticmethod
    def preconditions(character, target):
        return (
            character.get_relationship(target) < -0.3 and
            character.energy >= 20
        )

    @staticmethod
    def effects(character, target):
        character.say("I have a problem with you!")
        character.modify_relationship(target, -0.2)
        character.mood = "angry"
`

func TestCompileTott(t *testing.T) {
	res, err := Compile([]byte(tottSource), ir.FormatTott)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Rules, 2)

	greeting := res.Rules[0]
	assert.Equal(t, "Friendly Greeting", greeting.Name)
	assert.Equal(t, "tott/friendly-greeting", greeting.ID)
	assert.Equal(t, ir.RuleTrait, greeting.Type, "social maps onto trait")
	assert.Equal(t, 5, greeting.Priority)
	assert.Equal(t, ir.DefaultLikelihood, greeting.Likelihood)

	require.Len(t, greeting.Conditions, 2)
	mood := greeting.Conditions[0]
	assert.Equal(t, ir.ConditionPredicate, mood.Type)
	assert.Equal(t, "mood", mood.Name)
	assert.Equal(t, []string{"?character"}, mood.Args)
	assert.Equal(t, "==", mood.Operator)
	assert.True(t, ir.Equal(ir.String("happy"), mood.Value))

	rel := greeting.Conditions[1]
	assert.Equal(t, "relationship", rel.Name)
	assert.Equal(t, []string{"?character", "?target"}, rel.Args)
	assert.Equal(t, ">", rel.Operator)
	assert.True(t, ir.Equal(ir.Num(0.5), rel.Value))

	require.Len(t, greeting.Effects, 2)
	assert.Equal(t, ir.EffectGenerateText, greeting.Effects[0].Type)
	assert.Equal(t, "?character", greeting.Effects[0].Target)
	assert.Equal(t, "Hello, friend!", greeting.Effects[0].Template)
	assert.Equal(t, ir.EffectRelationshipChange, greeting.Effects[1].Type)
	assert.Equal(t, "?target", greeting.Effects[1].Other)
	assert.Equal(t, 0.1, greeting.Effects[1].Delta)

	confrontation := res.Rules[1]
	assert.Equal(t, "Angry Confrontation", confrontation.Name)
	assert.Equal(t, 8, confrontation.Priority)
	assert.Equal(t, 0.6, confrontation.Likelihood)
	require.Len(t, confrontation.Effects, 3)
	// Attribute assignment compiles to modify_attribute.
	moodSet := confrontation.Effects[2]
	assert.Equal(t, ir.EffectModifyAttribute, moodSet.Type)
	assert.Equal(t, "?character", moodSet.Target)
	assert.Equal(t, "mood", moodSet.Attribute)
	assert.True(t, ir.Equal(ir.String("angry"), moodSet.Value))
}

func TestCompileTottUnknownEffectPreserved(t *testing.T) {
	source := `
class Ritual:
    name = "Ritual"

    @staticmethod
    def effects(character, target):
        character.perform_dance(target, 3)
`
	res, err := Compile([]byte(source), ir.FormatTott)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Rules, 1)

	eff := res.Rules[0].Effects[0]
	assert.Equal(t, ir.EffectUnknown, eff.Type)
	assert.True(t, ir.Equal(ir.String("perform_dance"), eff.Raw["method"]))
}

func TestCompileTottUnparseableLineReported(t *testing.T) {
	source := `
class Tangled:
    name = "Tangled"

    @staticmethod
    def preconditions(character, target):
        return any(c.mood == "sad" for c in character.friends)

    @staticmethod
    def effects(character, target):
        character.say("There, there.")
`
	res, err := Compile([]byte(source), ir.FormatTott)
	require.NoError(t, err)

	// The comprehension line fails, the rest of the class still compiles.
	require.Len(t, res.Rules, 1)
	assert.Empty(t, res.Rules[0].Conditions)
	require.Len(t, res.Rules[0].Effects, 1)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Tangled", res.Errors[0].RuleName)
	assert.Contains(t, res.Errors[0].Message, "precondition")
}

func TestCompileTottIgnoresNonRuleLines(t *testing.T) {
	source := `
import random

HELPER = 42

class Quiet:
    name = "Quiet"
    # priority stays default
    @staticmethod
    def effects(character, target):
        character.say("...")
`
	res, err := Compile([]byte(source), ir.FormatTott)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Rules, 1)
	assert.Equal(t, ir.DefaultPriority, res.Rules[0].Priority)
}
