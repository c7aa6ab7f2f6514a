package tracker

import (
	"fmt"
	"log/slog"

	"github.com/fabulist/fabula/internal/ir"
	"github.com/fabulist/fabula/internal/world"
)

// Tracker captures snapshots and rule execution records for one run.
//
// Not safe for concurrent use; the engine's sequential step loop is the only
// writer. Each world/run owns its own Tracker, nothing is shared.
type Tracker struct {
	snapshots map[int64]ir.WorldSnapshot
	records   []ir.RuleExecutionRecord
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{snapshots: make(map[int64]ir.WorldSnapshot)}
}

// Capture snapshots the world at a timestep. A snapshot already captured for
// that timestep is left untouched: snapshots are immutable once taken, even
// if the live world has since changed.
func (t *Tracker) Capture(w *world.State, timestep int64) {
	if _, exists := t.snapshots[timestep]; exists {
		return
	}
	t.snapshots[timestep] = w.Snapshot()
	slog.Debug("snapshot captured", "timestep", timestep, "entities", len(t.snapshots[timestep]))
}

// Snapshot returns the snapshot for a timestep, if one was captured.
func (t *Tracker) Snapshot(timestep int64) (ir.WorldSnapshot, bool) {
	s, ok := t.snapshots[timestep]
	return s, ok
}

// Append adds a rule execution record to the firing log. The log is
// append-only; records are never reordered or rewritten.
func (t *Tracker) Append(rec ir.RuleExecutionRecord) {
	t.records = append(t.records, rec)
}

// Records returns a copy of the firing log in append order.
func (t *Tracker) Records() []ir.RuleExecutionRecord {
	out := make([]ir.RuleExecutionRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Log assembles the exportable execution log: the ordered firing sequence
// plus every captured snapshot.
func (t *Tracker) Log() ir.ExecutionLog {
	snaps := make(map[int64]ir.WorldSnapshot, len(t.snapshots))
	for ts, s := range t.snapshots {
		snaps[ts] = s
	}
	return ir.ExecutionLog{
		RuleExecutionSequence: t.Records(),
		CharacterSnapshots:    snaps,
	}
}

// FromLog reconstructs a tracker from an exported execution log, so archived
// traces can be diffed offline.
func FromLog(log ir.ExecutionLog) *Tracker {
	t := New()
	for ts, s := range log.CharacterSnapshots {
		t.snapshots[ts] = s
	}
	t.records = append(t.records, log.RuleExecutionSequence...)
	return t
}

// Diff compares one entity's attributes between two captured timesteps.
//
// Attributes present on only one side are reported with ir.Absent for the
// missing side. Changes are ordered by attribute name so diffs are
// deterministic. Diffing a timestep against itself yields no changes, and
// swapping the timesteps yields the exact inverse change list.
func (t *Tracker) Diff(entityID string, t1, t2 int64) ([]ir.AttributeChange, error) {
	from, ok := t.snapshots[t1]
	if !ok {
		return nil, fmt.Errorf("no snapshot for timestep %d", t1)
	}
	to, ok := t.snapshots[t2]
	if !ok {
		return nil, fmt.Errorf("no snapshot for timestep %d", t2)
	}
	return diffAttributes(from[entityID], to[entityID]), nil
}
