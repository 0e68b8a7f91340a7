package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/remora-io/remora/internal/reconcile"
)

// ReportSnapshot is the golden-file shape: the scenario name plus every
// pass's SyncResult in execution order. Serialization is deterministic
// because scenarios run with a frozen clock and sequential run IDs.
type ReportSnapshot struct {
	ScenarioName string                 `json:"scenario_name"`
	Results      []reconcile.SyncResult `json:"results"`
}

// RunWithGolden executes a scenario, fails the test on any expectation or
// assertion error, and compares the run report against the golden file at
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}

	snapshot := ReportSnapshot{
		ScenarioName: scenario.Name,
		Results:      result.Results,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report snapshot: %w", err)
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
