package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabulist/fabula/internal/ir"
	"github.com/fabulist/fabula/internal/world"
)

func seededWorld() *world.State {
	w := world.New("w-1")
	e := ir.NewEntity("char-1")
	e.Set("mood", ir.String("happy"))
	e.Set("energy", ir.Num(80))
	w.AddEntity(e)
	return w
}

func TestCaptureIsImmutable(t *testing.T) {
	w := seededWorld()
	tr := New()

	tr.Capture(w, 0)
	w.Entity("char-1").Set("mood", ir.String("sour"))
	tr.Capture(w, 0) // re-capture at the same timestep must be a no-op

	snap, ok := tr.Snapshot(0)
	require.True(t, ok)
	assert.True(t, ir.Equal(ir.String("happy"), snap["char-1"]["mood"]),
		"snapshot must not see mutations after capture")
}

func TestCaptureDeepCopies(t *testing.T) {
	w := seededWorld()
	tr := New()
	tr.Capture(w, 0)

	w.Entity("char-1").Set("energy", ir.Num(10))

	snap, _ := tr.Snapshot(0)
	assert.True(t, ir.Equal(ir.Num(80), snap["char-1"]["energy"]))
}

func TestDiffReflexiveEmpty(t *testing.T) {
	w := seededWorld()
	tr := New()
	tr.Capture(w, 3)

	changes, err := tr.Diff("char-1", 3, 3)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestDiffInverse(t *testing.T) {
	w := seededWorld()
	tr := New()
	tr.Capture(w, 0)

	w.Entity("char-1").Set("mood", ir.String("sour"))
	w.Entity("char-1").Set("occupation", ir.String("apprentice"))
	tr.Capture(w, 1)

	forward, err := tr.Diff("char-1", 0, 1)
	require.NoError(t, err)
	backward, err := tr.Diff("char-1", 1, 0)
	require.NoError(t, err)

	require.Len(t, forward, 2)
	require.Len(t, backward, 2)
	for i := range forward {
		assert.Equal(t, forward[i].Attribute, backward[i].Attribute)
		assert.True(t, ir.Equal(forward[i].OldValue, backward[i].NewValue))
		assert.True(t, ir.Equal(forward[i].NewValue, backward[i].OldValue))
	}
}

func TestDiffAbsentSentinel(t *testing.T) {
	w := seededWorld()
	tr := New()
	tr.Capture(w, 0)

	w.Entity("char-1").Set("occupation", ir.String("apprentice"))
	tr.Capture(w, 1)

	changes, err := tr.Diff("char-1", 0, 1)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "occupation", changes[0].Attribute)
	assert.True(t, ir.Equal(ir.Absent, changes[0].OldValue))
	assert.True(t, ir.Equal(ir.String("apprentice"), changes[0].NewValue))
}

func TestDiffMissingSnapshot(t *testing.T) {
	tr := New()
	_, err := tr.Diff("char-1", 0, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no snapshot")
}

func TestDiffEntityAbsentOnOneSide(t *testing.T) {
	w := seededWorld()
	tr := New()
	tr.Capture(w, 0)

	late := ir.NewEntity("char-2")
	late.Set("mood", ir.String("new"))
	w.AddEntity(late)
	tr.Capture(w, 1)

	changes, err := tr.Diff("char-2", 0, 1)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, ir.Equal(ir.Absent, changes[0].OldValue))
}

func TestRecordsAppendOnly(t *testing.T) {
	tr := New()
	tr.Append(ir.RuleExecutionRecord{RuleID: "a", Timestep: 0})
	tr.Append(ir.RuleExecutionRecord{RuleID: "b", Timestep: 0})
	tr.Append(ir.RuleExecutionRecord{RuleID: "c", Timestep: 1})

	recs := tr.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, "a", recs[0].RuleID)
	assert.Equal(t, "c", recs[2].RuleID)

	// Mutating the returned slice must not affect the tracker.
	recs[0].RuleID = "mutated"
	assert.Equal(t, "a", tr.Records()[0].RuleID)
}
