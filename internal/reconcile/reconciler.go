package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/remora-io/remora/internal/dataset"
	"github.com/remora-io/remora/internal/fieldset"
	"github.com/remora-io/remora/internal/remote"
	"github.com/remora-io/remora/internal/sanitize"
	"github.com/remora-io/remora/internal/store"
)

// Reconciler performs one full sync pass for one (dataset, system) pair.
//
// Single-writer model: the design assumes no other writer touches the same
// (system, business key) rows while a reconciliation holds its transaction.
type Reconciler struct {
	// Clock supplies wall time for control attributes and result
	// timestamps. Defaults to time.Now; tests freeze it.
	Clock func() time.Time

	st      *store.Store
	tokens  remote.TokenProvider
	fetcher remote.Fetcher
	sink    LogSink
	runIDs  RunIDGenerator
}

// New creates a Reconciler. sink may be nil (no run logging); runIDs may be
// nil (defaults to UUIDv7).
func New(st *store.Store, tokens remote.TokenProvider, fetcher remote.Fetcher, sink LogSink, runIDs RunIDGenerator) *Reconciler {
	if runIDs == nil {
		runIDs = UUIDv7Generator{}
	}
	return &Reconciler{
		Clock:   time.Now,
		st:      st,
		tokens:  tokens,
		fetcher: fetcher,
		sink:    sink,
		runIDs:  runIDs,
	}
}

// Run executes one reconciliation run and always returns a SyncResult,
// success or failure. The result is also emitted to the log sink; sink
// failures are logged and dropped.
func (r *Reconciler) Run(ctx context.Context, d *dataset.Descriptor, sys remote.System) SyncResult {
	started := r.Clock()
	res := SyncResult{
		RunID:       r.runIDs.Generate(),
		Dataset:     d.Name,
		SystemID:    sys.ID,
		SystemLabel: sys.Label,
		StartedAt:   started,
	}

	err := r.run(ctx, d, sys, &res)

	finished := r.Clock()
	res.FinishedAt = finished
	res.DurationMs = finished.Sub(started).Milliseconds()
	if err != nil {
		res.Success = false
		res.ErrorMessage = err.Error()
		slog.Error("reconciliation failed",
			"dataset", d.Name, "system", sys.ID, "run", res.RunID, "error", err)
	} else {
		res.Success = true
		slog.Info("reconciliation committed",
			"dataset", d.Name, "system", sys.ID, "run", res.RunID,
			"fetched", res.TotalFetched, "inserted", res.Inserted,
			"updated", res.Updated, "stale", res.MarkedStale, "skipped", res.Skipped)
	}

	r.emit(ctx, res)
	return res
}

// run drives the state machine. Any returned error is fatal to the run and
// has already triggered rollback of an open transaction.
func (r *Reconciler) run(ctx context.Context, d *dataset.Descriptor, sys remote.System, res *SyncResult) error {
	// START → TOKEN_ACQUIRED. Always force-renewed: token lifetime is
	// shorter than a typical batch window.
	cred, err := r.tokens.Acquire(ctx, sys.ID, true)
	if err != nil {
		return newRunError(ErrCodeToken, d.Name, sys.ID, err)
	}

	// TOKEN_ACQUIRED → FETCHED. A single attempt; retry means re-running
	// the whole reconciliation.
	resp, err := r.fetcher.FetchSnapshot(ctx, cred, remote.Query{
		Entity:   d.Entity,
		Fields:   d.RemoteFields(),
		NoPaging: true,
	})
	if err != nil {
		return newRunError(ErrCodeFetch, d.Name, sys.ID, err)
	}

	records, err := fieldset.Decode(resp)
	if err != nil {
		return newRunError(ErrCodeDecode, d.Name, sys.ID, err)
	}
	res.TotalFetched = len(records)

	// An empty snapshot is valid and still drives the full stale pass
	// below: every previously-active row becomes a tombstone.
	tx, err := r.st.Begin(ctx)
	if err != nil {
		return newRunError(ErrCodeTx, d.Name, sys.ID, err)
	}

	if err := r.apply(ctx, tx, d, sys, records, res); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			// The rollback failure must not displace the run's outcome,
			// but it may not be silently dropped either.
			slog.Error("rollback failed", "dataset", d.Name, "system", sys.ID, "error", rbErr)
		}
		return err
	}

	// UPSERTED → COMMITTED.
	if err := tx.Commit(); err != nil {
		return newRunError(ErrCodeCommit, d.Name, sys.ID, err)
	}
	return nil
}

// apply performs the STALED and UPSERTED steps inside the run transaction.
func (r *Reconciler) apply(ctx context.Context, tx *sql.Tx, d *dataset.Descriptor, sys remote.System, records []fieldset.Record, res *SyncResult) error {
	now := r.Clock()

	// FETCHED → STALED. The count is an upper bound on eventual
	// tombstones; rows re-upserted below flip back to active.
	stale, err := store.MarkStale(ctx, tx, d, sys.ID, now)
	if err != nil {
		return newRunError(ErrCodeStale, d.Name, sys.ID, err)
	}
	res.MarkedStale = int(stale)

	// STALED → UPSERTED. Row-level failures are logged with the offending
	// business key and swallowed: one bad record must never discard the
	// rest of the snapshot.
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return newRunError(ErrCodeCancelled, d.Name, sys.ID, err)
		}

		row, keyLabel, err := buildRow(d, rec)
		if err != nil {
			res.Skipped++
			slog.Warn("skipping record", "dataset", d.Name, "system", sys.ID, "key", keyLabel, "error", err)
			continue
		}

		outcome, err := store.Upsert(ctx, tx, d, sys.ID, row, now)
		if err != nil {
			res.Skipped++
			slog.Warn("skipping record", "dataset", d.Name, "system", sys.ID, "key", keyLabel, "error", err)
			continue
		}
		switch outcome {
		case store.RowInserted:
			res.Inserted++
		case store.RowUpdated:
			res.Updated++
		}
	}
	return nil
}

// emit hands the result to the log sink. Logging failures never fail the
// reconciliation itself.
func (r *Reconciler) emit(ctx context.Context, res SyncResult) {
	if r.sink == nil {
		return
	}
	if err := r.sink.Record(ctx, res); err != nil {
		slog.Warn("sync log sink failed", "dataset", res.Dataset, "system", res.SystemID, "run", res.RunID, "error", err)
	}
}

// buildRow sanitizes one decoded record into a mirror row per the
// descriptor's field kinds. A missing or empty business-key field is a
// row-level error; any other field that fails sanitization stores NULL.
func buildRow(d *dataset.Descriptor, rec fieldset.Record) (store.Row, string, error) {
	row := store.Row{
		Key:     make(map[string]string),
		Columns: make(map[string]any),
	}

	for _, f := range d.Fields {
		raw, present := rec[f.Remote]

		if f.Key {
			v := ""
			if present {
				v = sanitize.NormalizeText(stringify(raw))
			}
			if v == "" {
				return store.Row{}, keyLabel(row, d), fmt.Errorf("missing business key field %s", f.Remote)
			}
			row.Key[f.Column] = v
			continue
		}

		if !present || raw == nil {
			row.Columns[f.Column] = nil
			continue
		}

		switch f.Kind {
		case dataset.KindDate:
			if t, ok := sanitize.ParseDate(stringify(raw)); ok {
				row.Columns[f.Column] = t
			} else {
				// Malformed dates are "unknown", never fatal.
				row.Columns[f.Column] = nil
			}
		case dataset.KindDecimal:
			clamp, ok := sanitize.ClampDecimal(raw, sanitize.DefaultMaxDigits)
			if !ok {
				row.Columns[f.Column] = nil
				continue
			}
			if clamp.Clamped {
				slog.Warn("clamped oversized decimal",
					"dataset", d.Name, "field", f.Remote, "limit", clamp.Limit)
			}
			row.Columns[f.Column] = clamp.Value
		default:
			row.Columns[f.Column] = sanitize.NormalizeText(stringify(raw))
		}
	}

	return row, keyLabel(row, d), nil
}

// keyLabel renders the business key for log lines, in key-column order.
func keyLabel(row store.Row, d *dataset.Descriptor) string {
	var parts []string
	for _, f := range d.KeyFields() {
		if v, ok := row.Key[f.Column]; ok {
			parts = append(parts, v)
		} else {
			parts = append(parts, "?")
		}
	}
	return strings.Join(parts, "|")
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	// JSON numbers arrive as float64; render integers without exponent.
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", v)
}
