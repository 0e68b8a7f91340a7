package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/remora-io/remora/internal/store"
)

// SyncResult summarizes one reconciliation run. It is produced exactly once
// per run, success or failure, and never mutated after construction.
type SyncResult struct {
	RunID        string    `json:"run_id"`
	Dataset      string    `json:"dataset"`
	SystemID     string    `json:"system_id"`
	SystemLabel  string    `json:"system_label"`
	Success      bool      `json:"success"`
	TotalFetched int       `json:"total_fetched"`
	Inserted     int       `json:"inserted"`
	Updated      int       `json:"updated"`
	MarkedStale  int       `json:"marked_stale"`
	Skipped      int       `json:"skipped"` // row-level failures, non-fatal
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	DurationMs   int64     `json:"duration_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// runRecord converts the result to its sync-log row.
func (r SyncResult) runRecord() store.RunRecord {
	return store.RunRecord{
		ID:           r.RunID,
		Dataset:      r.Dataset,
		SystemID:     r.SystemID,
		SystemLabel:  r.SystemLabel,
		Success:      r.Success,
		TotalFetched: r.TotalFetched,
		Inserted:     r.Inserted,
		Updated:      r.Updated,
		MarkedStale:  r.MarkedStale,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		DurationMs:   r.DurationMs,
		ErrorMessage: r.ErrorMessage,
	}
}

// LogSink receives every run outcome. A sink failure must never fail the
// reconciliation itself; the reconciler logs and drops it.
type LogSink interface {
	Record(ctx context.Context, res SyncResult) error
}

// StoreSink persists run outcomes to the store's sync_runs table.
type StoreSink struct {
	Store *store.Store
}

// Record implements LogSink.
func (s StoreSink) Record(ctx context.Context, res SyncResult) error {
	return s.Store.RecordRun(ctx, res.runRecord())
}

// RunIDGenerator produces run identifiers for SyncResults.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run identifiers, so that
// the sync log orders naturally by run time.
//
// Panics if UUID generation fails (should never happen in practice).
type UUIDv7Generator struct{}

// Generate implements RunIDGenerator.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
