package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remora-io/remora/internal/dataset"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func thingsDescriptor() dataset.Descriptor {
	return dataset.Descriptor{
		Name:   "things",
		Entity: "THINGS",
		Table:  "mirror_things",
		Fields: []dataset.Field{
			{Remote: "Id", Column: "thing_id", Kind: dataset.KindText, Key: true},
			{Remote: "Amount", Column: "amount", Kind: dataset.KindDecimal},
		},
	}
}

func baseScenario(passes ...Pass) *Scenario {
	return &Scenario{
		Name:        "programmatic",
		Description: "built in code",
		Dataset:     thingsDescriptor(),
		System:      SystemSpec{ID: "sys-1", Label: "Alpha"},
		Passes:      passes,
	}
}

func TestRun_SinglePass(t *testing.T) {
	s := baseScenario(Pass{
		Snapshot: []map[string]any{
			{"Id": "A", "Amount": 10},
			{"Id": "B", "Amount": 20},
		},
		Expect: &ExpectClause{
			Success:  boolPtr(true),
			Inserted: intPtr(2),
		},
	})
	s.Assertions = []Assertion{
		{Type: AssertActiveKeys, Keys: []string{"A", "B"}},
		{Type: AssertRowCount, Total: 2, Active: 2},
		{Type: AssertRunCount, Count: 1},
	}

	res, err := Run(s)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "run-1", res.Results[0].RunID)
	assert.Equal(t, 2, res.Results[0].Inserted)
}

func TestRun_ExpectationMismatchReported(t *testing.T) {
	s := baseScenario(Pass{
		Snapshot: []map[string]any{{"Id": "A"}},
		Expect:   &ExpectClause{Inserted: intPtr(5)},
	})

	res, err := Run(s)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "inserted = 1, want 5")
}

func TestRun_EmptySnapshotTombstonesEverything(t *testing.T) {
	s := baseScenario(
		Pass{Snapshot: []map[string]any{{"Id": "A"}, {"Id": "B"}}},
		Pass{Snapshot: nil, Expect: &ExpectClause{
			Success:      boolPtr(true),
			TotalFetched: intPtr(0),
			MarkedStale:  intPtr(2),
		}},
	)
	s.Assertions = []Assertion{
		{Type: AssertActiveKeys, Keys: []string{}},
		{Type: AssertRowCount, Total: 2, Active: 0},
	}

	res, err := Run(s)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
}

func TestRun_TokenFailure(t *testing.T) {
	s := baseScenario(Pass{
		Fail: FailToken,
		Expect: &ExpectClause{
			Success:   boolPtr(false),
			ErrorCode: "TOKEN_FAILED",
		},
	})

	res, err := Run(s)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
	assert.Contains(t, res.Results[0].ErrorMessage, "injected token failure")
}

func TestRun_MalformedResponseLeavesMirrorIntact(t *testing.T) {
	s := baseScenario(
		Pass{Snapshot: []map[string]any{{"Id": "A"}}},
		Pass{Fail: FailMalformed, Expect: &ExpectClause{
			Success:   boolPtr(false),
			ErrorCode: "DECODE_FAILED",
		}},
	)
	s.Assertions = []Assertion{
		{Type: AssertActiveKeys, Keys: []string{"A"}},
		{Type: AssertRowCount, Total: 1, Active: 1},
		{Type: AssertRunCount, Count: 2},
	}

	res, err := Run(s)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
}

func TestRun_ReactivationKeepsSingleRow(t *testing.T) {
	s := baseScenario(
		Pass{Snapshot: []map[string]any{{"Id": "A", "Amount": 10}}},
		Pass{Snapshot: nil},
		Pass{Snapshot: []map[string]any{{"Id": "A", "Amount": 30}}, Expect: &ExpectClause{
			Inserted: intPtr(0),
			Updated:  intPtr(1),
		}},
	)
	s.Assertions = []Assertion{
		{Type: AssertActiveKeys, Keys: []string{"A"}},
		{Type: AssertRowCount, Total: 1, Active: 1},
	}

	res, err := Run(s)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
}

func TestRun_MissingKeySkipsRow(t *testing.T) {
	s := baseScenario(Pass{
		Snapshot: []map[string]any{
			{"Id": "A", "Amount": 10},
			{"Amount": 99},
		},
		Expect: &ExpectClause{
			Success:  boolPtr(true),
			Inserted: intPtr(1),
			Skipped:  intPtr(1),
		},
	})

	res, err := Run(s)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
}

func TestRun_SequentialRunIDs(t *testing.T) {
	s := baseScenario(
		Pass{Snapshot: []map[string]any{{"Id": "A"}}},
		Pass{Snapshot: []map[string]any{{"Id": "A"}}},
		Pass{Snapshot: []map[string]any{{"Id": "A"}}},
	)

	res, err := Run(s)
	require.NoError(t, err)
	require.Len(t, res.Results, 3)
	assert.Equal(t, "run-1", res.Results[0].RunID)
	assert.Equal(t, "run-2", res.Results[1].RunID)
	assert.Equal(t, "run-3", res.Results[2].RunID)
}
