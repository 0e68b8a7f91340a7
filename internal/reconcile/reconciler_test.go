package reconcile

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remora-io/remora/internal/fieldset"
	"github.com/remora-io/remora/internal/remote"
)

func TestRun_FirstSyncInsertsAll(t *testing.T) {
	rig := newTestRig(t)
	rig.serve(snapshot(
		entity("1001", "15/03/2024", 10.00),
		entity("1002", "16/03/2024", 20.00),
		entity("1003", "17/03/2024", 30.00),
	))

	res := rig.rec.Run(context.Background(), rig.desc, testSystem)

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.TotalFetched)
	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, res.MarkedStale, "nothing existed to mark stale")
	assert.Equal(t, []string{"1001", "1002", "1003"}, rig.activeKeys(t))
}

func TestRun_Idempotence(t *testing.T) {
	rig := newTestRig(t)
	snap := snapshot(
		entity("1001", "15/03/2024", 10.00),
		entity("1002", "16/03/2024", 20.00),
	)
	rig.serve(snap)

	first := rig.rec.Run(context.Background(), rig.desc, testSystem)
	require.True(t, first.Success)

	rig.clock.Advance(time.Hour)
	second := rig.rec.Run(context.Background(), rig.desc, testSystem)
	require.True(t, second.Success)

	// Unchanged snapshot: second run inserts nothing, everything becomes
	// an update, and the active set is identical.
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Updated)
	assert.Equal(t, 2, second.MarkedStale)
	assert.Equal(t, []string{"1001", "1002"}, rig.activeKeys(t))
}

func TestRun_TombstoneInvariant(t *testing.T) {
	rig := newTestRig(t)
	rig.serve(snapshot(
		entity("1001", "15/03/2024", 10.00),
		entity("1002", "16/03/2024", 20.00),
		entity("1003", "17/03/2024", 30.00),
	))
	require.True(t, rig.rec.Run(context.Background(), rig.desc, testSystem).Success)

	// 1002 disappears from the remote snapshot; 1004 appears.
	rig.serve(snapshot(
		entity("1001", "15/03/2024", 11.00),
		entity("1003", "17/03/2024", 30.00),
		entity("1004", "18/03/2024", 40.00),
	))
	res := rig.rec.Run(context.Background(), rig.desc, testSystem)

	require.True(t, res.Success)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 3, res.MarkedStale)

	// Active set equals exactly the fetched key set; 1002 is a tombstone,
	// not a deletion.
	assert.Equal(t, []string{"1001", "1003", "1004"}, rig.activeKeys(t))
	total, active, err := rig.st.CountRows(context.Background(), rig.desc, testSystem.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.EqualValues(t, 3, active)
}

func TestRun_EmptySnapshotTombstonesEverything(t *testing.T) {
	rig := newTestRig(t)
	rig.serve(snapshot(
		entity("1001", "15/03/2024", 10.00),
		entity("1002", "16/03/2024", 20.00),
	))
	require.True(t, rig.rec.Run(context.Background(), rig.desc, testSystem).Success)

	rig.serve(fieldset.Response{}) // zero entities, no metadata
	res := rig.rec.Run(context.Background(), rig.desc, testSystem)

	require.True(t, res.Success)
	assert.Equal(t, 0, res.TotalFetched)
	assert.Equal(t, 2, res.MarkedStale)
	assert.Empty(t, rig.activeKeys(t))
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	rig := newTestRig(t)
	// The middle record has no business key and cannot be upserted.
	rig.serve(snapshot(
		entity("1001", "15/03/2024", 10.00),
		entity("", "16/03/2024", 20.00),
		entity("1003", "17/03/2024", 30.00),
	))

	res := rig.rec.Run(context.Background(), rig.desc, testSystem)

	require.True(t, res.Success, "one bad record must not discard the snapshot")
	assert.Equal(t, 3, res.TotalFetched)
	assert.Equal(t, 2, res.Inserted+res.Updated)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{"1001", "1003"}, rig.activeKeys(t))
}

func TestRun_FetchFailure(t *testing.T) {
	rig := newTestRig(t)
	rig.fetcher.next = func(context.Context, remote.Credential, remote.Query) (fieldset.Response, error) {
		return fieldset.Response{}, errors.New("connection refused")
	}

	res := rig.rec.Run(context.Background(), rig.desc, testSystem)

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "FETCH_FAILED")
	assert.Contains(t, res.ErrorMessage, "connection refused")
	assert.Zero(t, res.TotalFetched)
}

func TestRun_TokenFailure(t *testing.T) {
	rig := newTestRig(t)
	res := rig.rec.Run(context.Background(), rig.desc, remote.System{ID: "unknown", Label: "Nobody"})

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "TOKEN_FAILED")
}

func TestRun_MalformedResponseRollsBack(t *testing.T) {
	rig := newTestRig(t)
	rig.serve(snapshot(entity("1001", "15/03/2024", 10.00)))
	require.True(t, rig.rec.Run(context.Background(), rig.desc, testSystem).Success)

	// Entities without metadata: hard failure, mirror untouched.
	rig.serve(fieldset.Response{Entities: fieldset.EntityList{{"f0": "1002"}}})
	res := rig.rec.Run(context.Background(), rig.desc, testSystem)

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "DECODE_FAILED")
	assert.Equal(t, []string{"1001"}, rig.activeKeys(t), "failed run must leave the previous active set intact")
}

func TestRun_FailureStillEmitsToSink(t *testing.T) {
	rig := newTestRig(t)
	rig.fetcher.next = func(context.Context, remote.Credential, remote.Query) (fieldset.Response, error) {
		return fieldset.Response{}, errors.New("boom")
	}

	res := rig.rec.Run(context.Background(), rig.desc, testSystem)
	require.False(t, res.Success)

	// The StoreSink wrote the failure to the sync log.
	runs, err := rig.st.RecentRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Success)
	assert.Contains(t, runs[0].ErrorMessage, "FETCH_FAILED")
	assert.Equal(t, res.RunID, runs[0].ID)
}

func TestRun_SinkFailureDoesNotFailRun(t *testing.T) {
	rig := newTestRig(t)
	rig.serve(snapshot(entity("1001", "15/03/2024", 10.00)))

	failing := sinkFunc(func(context.Context, SyncResult) error {
		return errors.New("log store down")
	})
	rec := New(rig.st, remote.StaticTokens{"sys-1": "tok"}, rig.fetcher, failing, nil)
	rec.Clock = rig.clock.Now

	res := rec.Run(context.Background(), rig.desc, testSystem)
	assert.True(t, res.Success, "a logging failure must never fail the reconciliation")
}

func TestRun_CancellationBetweenUpserts(t *testing.T) {
	rig := newTestRig(t)
	ctx, cancel := context.WithCancel(context.Background())

	rig.fetcher.next = func(context.Context, remote.Credential, remote.Query) (fieldset.Response, error) {
		// Cancel after the fetch: the loop must notice before upserting.
		cancel()
		return snapshot(entity("1001", "15/03/2024", 10.00)), nil
	}

	res := rig.rec.Run(ctx, rig.desc, testSystem)

	assert.False(t, res.Success)
	// Depending on where the cancellation lands, the transaction either
	// never opens (TX_FAILED) or the loop notices it (CANCELLED).
	if !strings.Contains(res.ErrorMessage, "CANCELLED") && !strings.Contains(res.ErrorMessage, "TX_FAILED") {
		t.Errorf("ErrorMessage = %q, want CANCELLED or TX_FAILED", res.ErrorMessage)
	}
	assert.Empty(t, rig.activeKeys(t), "cancelled run must roll back")
}

func TestRun_DecimalClampAndDateStorage(t *testing.T) {
	rig := newTestRig(t)
	over := 1e14 // beyond NUMERIC(15,2)
	rig.serve(snapshot(
		entity("1001", "15/03/2024 14:30:00", over),
		entity("1002", "not-a-date", 12.34),
	))

	res := rig.rec.Run(context.Background(), rig.desc, testSystem)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.Inserted)

	var amount float64
	var refDate time.Time
	err := rig.st.DB().QueryRow(
		`SELECT amount, ref_date FROM mirror_transactions WHERE system_id = ? AND trans_id = ?`,
		testSystem.ID, "1001").Scan(&amount, &refDate)
	require.NoError(t, err)
	assert.Equal(t, math.Pow(10, 13)-0.01, amount)
	assert.True(t, refDate.Equal(time.Date(2024, time.March, 15, 14, 30, 0, 0, time.UTC)))

	// Malformed date stored as NULL, not an error.
	var nullDate any
	err = rig.st.DB().QueryRow(
		`SELECT ref_date FROM mirror_transactions WHERE system_id = ? AND trans_id = ?`,
		testSystem.ID, "1002").Scan(&nullDate)
	require.NoError(t, err)
	assert.Nil(t, nullDate)
}

func TestRun_ResultTimestamps(t *testing.T) {
	rig := newTestRig(t)
	rig.serve(snapshot(entity("1001", "15/03/2024", 10.00)))

	res := rig.rec.Run(context.Background(), rig.desc, testSystem)

	assert.Equal(t, "run-1", res.RunID)
	assert.True(t, res.StartedAt.Equal(frozenStart))
	assert.True(t, res.FinishedAt.Equal(frozenStart), "frozen clock: start == finish")
	assert.Zero(t, res.DurationMs)
	assert.Equal(t, "transactions", res.Dataset)
	assert.Equal(t, "Alpha Corp", res.SystemLabel)
}

func TestErrorCode(t *testing.T) {
	err := newRunError(ErrCodeFetch, "transactions", "sys-1", errors.New("boom"))
	assert.Equal(t, ErrCodeFetch, ErrorCode(err))
	assert.Equal(t, RunErrorCode(""), ErrorCode(errors.New("plain")))

	wrapped := fieldWrap(err)
	assert.Equal(t, ErrCodeFetch, ErrorCode(wrapped))
}

func fieldWrap(err error) error {
	return &wrapErr{err}
}

type wrapErr struct{ err error }

func (w *wrapErr) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapErr) Unwrap() error { return w.err }
