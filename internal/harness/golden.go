package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/fabulist/fabula/internal/ir"
)

// TraceSnapshot is the golden-file form of a scenario execution: the full
// trace plus the final world state. Serialization is deterministic (append
// order for the trace, sorted keys for snapshots), so a golden mismatch
// always means behavior changed.
type TraceSnapshot struct {
	Scenario   string                   `json:"scenario"`
	Trace      []ir.RuleExecutionRecord `json:"trace"`
	Truths     []ir.Truth               `json:"truths,omitempty"`
	FinalState ir.WorldSnapshot         `json:"finalState"`
}

// RunWithGolden executes a scenario and compares its trace snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot := TraceSnapshot{
		Scenario:   scenario.Name,
		Trace:      result.Trace,
		Truths:     result.Truths,
		FinalState: result.World.Snapshot(),
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return result, nil
}
