package store

import (
	"context"
	"fmt"
	"time"
)

// RunRecord is one sync_runs row: the persisted outcome of a single
// reconciliation run, success or failure.
type RunRecord struct {
	ID           string
	Dataset      string
	SystemID     string
	SystemLabel  string
	Success      bool
	TotalFetched int
	Inserted     int
	Updated      int
	MarkedStale  int
	StartedAt    time.Time
	FinishedAt   time.Time
	DurationMs   int64
	ErrorMessage string
}

// RecordRun persists one run outcome to the sync log.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a run is logged once.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	success := 0
	if rec.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs
		(id, dataset, system_id, system_label, success, total_fetched, inserted, updated, marked_stale, started_at, finished_at, duration_ms, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Dataset,
		rec.SystemID,
		rec.SystemLabel,
		success,
		rec.TotalFetched,
		rec.Inserted,
		rec.Updated,
		rec.MarkedStale,
		rec.StartedAt,
		rec.FinishedAt,
		rec.DurationMs,
		rec.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent sync-log entries, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dataset, system_id, system_label, success, total_fetched, inserted, updated, marked_stale, started_at, finished_at, duration_ms, error_message
		FROM sync_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var success int
		if err := rows.Scan(
			&rec.ID, &rec.Dataset, &rec.SystemID, &rec.SystemLabel, &success,
			&rec.TotalFetched, &rec.Inserted, &rec.Updated, &rec.MarkedStale,
			&rec.StartedAt, &rec.FinishedAt, &rec.DurationMs, &rec.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		rec.Success = success == 1
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent runs: %w", err)
	}
	return records, nil
}
