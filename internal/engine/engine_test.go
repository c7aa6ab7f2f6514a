package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabulist/fabula/internal/ir"
	"github.com/fabulist/fabula/internal/tracker"
	"github.com/fabulist/fabula/internal/world"
)

func occupationRule(id string, priority int, likelihood float64) ir.Rule {
	return ir.Rule{
		ID: id, Name: id, Type: ir.RuleTrigger,
		Priority: priority, Likelihood: likelihood, IsActive: true,
		Format: ir.FormatEnsemble,
		Conditions: []ir.Condition{
			{Type: ir.ConditionEnergy, Operator: ">=", Value: ir.Num(50)},
		},
		Effects: []ir.Effect{
			{Type: ir.EffectModifyAttribute, Target: "char-1",
				Attribute: "occupation", Value: ir.String("apprentice")},
		},
	}
}

func newSim(t *testing.T, rules ...ir.Rule) *Simulation {
	t.Helper()
	w := world.New("w-1")
	w.AddEntity(ir.NewEntity("char-1"))
	s := New(w, tracker.New(), WithRNG(NewRNG(42)))
	s.RegisterWorldRules(rules)
	return s
}

func TestStepFiresMatchingRule(t *testing.T) {
	s := newSim(t, occupationRule("r-1", 5, 1.0))

	res, err := s.Step(StepContext{PlayerEnergy: energyPtr(60)})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, "r-1", rec.RuleID)
	assert.Equal(t, int64(0), rec.Timestep)
	require.Len(t, rec.Effects, 1)
	assert.True(t, rec.Effects[0].Success)

	got := s.World().Entity("char-1").GetString("occupation")
	assert.Equal(t, "apprentice", got)
}

func TestStepSkipsNonMatchingRule(t *testing.T) {
	s := newSim(t, occupationRule("r-1", 5, 1.0))

	res, err := s.Step(StepContext{PlayerEnergy: energyPtr(40)})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, "", s.World().Entity("char-1").GetString("occupation"))
}

func TestLikelihoodZeroNeverFires(t *testing.T) {
	s := newSim(t, occupationRule("r-1", 5, 0.0))

	for i := 0; i < 50; i++ {
		res, err := s.Step(StepContext{PlayerEnergy: energyPtr(60)})
		require.NoError(t, err)
		assert.Empty(t, res.Records)
	}
}

func TestLikelihoodOneAlwaysFires(t *testing.T) {
	s := newSim(t, occupationRule("r-1", 5, 1.0))

	for i := 0; i < 50; i++ {
		res, err := s.Step(StepContext{PlayerEnergy: energyPtr(60)})
		require.NoError(t, err)
		require.Len(t, res.Records, 1, "step %d", i)
	}
}

func TestPriorityOrdering(t *testing.T) {
	low := occupationRule("low", 3, 1.0)
	high := occupationRule("high", 8, 1.0)
	// Registered low-first; the schedule must still put high before low.
	s := newSim(t, low, high)

	res, err := s.Step(StepContext{PlayerEnergy: energyPtr(60)})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "high", res.Records[0].RuleID)
	assert.Equal(t, "low", res.Records[1].RuleID)
}

func TestEqualPriorityKeepsRegistrationOrder(t *testing.T) {
	s := newSim(t, occupationRule("first", 5, 1.0), occupationRule("second", 5, 1.0))

	res, err := s.Step(StepContext{PlayerEnergy: energyPtr(60)})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "first", res.Records[0].RuleID)
	assert.Equal(t, "second", res.Records[1].RuleID)
}

func TestBaseRulesScheduleBeforeWorldRules(t *testing.T) {
	w := world.New("w-1")
	w.AddEntity(ir.NewEntity("char-1"))
	s := New(w, tracker.New(), WithRNG(NewRNG(42)))
	s.RegisterWorldRules([]ir.Rule{occupationRule("world-rule", 5, 1.0)})
	s.RegisterBaseRules([]ir.Rule{occupationRule("base-rule", 5, 1.0)})

	res, err := s.Step(StepContext{PlayerEnergy: energyPtr(60)})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "base-rule", res.Records[0].RuleID)
	assert.Equal(t, "world-rule", res.Records[1].RuleID)
}

func TestInactiveRuleSkipped(t *testing.T) {
	rule := occupationRule("r-1", 5, 1.0)
	rule.IsActive = false
	s := newSim(t, rule)

	res, err := s.Step(StepContext{PlayerEnergy: energyPtr(60)})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestStepSnapshotsBeforeAndAfter(t *testing.T) {
	s := newSim(t, occupationRule("r-1", 5, 1.0))

	_, err := s.Step(StepContext{PlayerEnergy: energyPtr(60)})
	require.NoError(t, err)

	before, ok := s.Tracker().Snapshot(0)
	require.True(t, ok)
	_, hasOccupation := before["char-1"]["occupation"]
	assert.False(t, hasOccupation, "timestep-0 snapshot predates the mutation")

	after, ok := s.Tracker().Snapshot(1)
	require.True(t, ok)
	assert.True(t, ir.Equal(ir.String("apprentice"), after["char-1"]["occupation"]))
}

func TestRunCooperativeCancellation(t *testing.T) {
	s := newSim(t, occupationRule("r-1", 5, 1.0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := s.Run(ctx, 5, StepContext{PlayerEnergy: energyPtr(60)})
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.Empty(t, results)
	assert.Equal(t, RunFailed, s.Status())
	// Nothing was partially applied.
	assert.Equal(t, int64(0), s.Timestep())
}

func TestRunCompletes(t *testing.T) {
	s := newSim(t, occupationRule("r-1", 5, 1.0))

	results, err := s.Run(context.Background(), 3, StepContext{PlayerEnergy: energyPtr(60)})
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, RunCompleted, s.Status())
	assert.Equal(t, int64(3), s.Timestep())
}

func TestTruthsDrainedForNarrativeRules(t *testing.T) {
	rule := ir.Rule{
		ID: "greet", Name: "greet", Type: ir.RuleTrait,
		Priority: 5, Likelihood: 1.0, IsActive: true, Format: ir.FormatTott,
		Effects: []ir.Effect{
			{Type: ir.EffectGenerateText, Template: "Hello there."},
		},
	}

	w := world.New("w-1")
	w.AddEntity(ir.NewEntity("char-1"))
	s := New(w, tracker.New(),
		WithRNG(NewRNG(42)),
		WithTruthIDs(NewFixedGenerator("truth-1")),
	)
	s.RegisterWorldRules([]ir.Rule{rule})

	_, err := s.Step(StepContext{})
	require.NoError(t, err)

	truths := s.Truths()
	require.Len(t, truths, 1)
	assert.Equal(t, ir.Truth{
		ID:        "truth-1",
		WorldID:   "w-1",
		Timestep:  0,
		RuleID:    "greet",
		RuleName:  "greet",
		Narrative: "Hello there.",
	}, truths[0])

	// Draining empties the buffer.
	assert.Empty(t, s.Truths())
}

func TestDeterministicRuns(t *testing.T) {
	rule := occupationRule("r-1", 5, 0.5)

	run := func() []ir.RuleExecutionRecord {
		s := newSim(t, rule)
		_, err := s.Run(context.Background(), 20, StepContext{PlayerEnergy: energyPtr(60)})
		require.NoError(t, err)
		return s.Tracker().Records()
	}

	assert.Equal(t, run(), run(), "same seed must reproduce the firing log")
}
