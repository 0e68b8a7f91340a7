package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/remora-io/remora/internal/dataset"
	"github.com/remora-io/remora/internal/remote"
)

// DefaultPause is the courtesy pause between systems. The remote API rate
// limits per session; a fixed pause keeps a long batch under its threshold.
const DefaultPause = 2 * time.Second

// BatchReport collects every SyncResult of one batch, in execution order.
type BatchReport struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	DurationMs int64        `json:"duration_ms"`
	Results    []SyncResult `json:"results"`
}

// Succeeded returns the number of successful runs.
func (b *BatchReport) Succeeded() int {
	n := 0
	for _, r := range b.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// Failed returns the number of failed runs.
func (b *BatchReport) Failed() int {
	return len(b.Results) - b.Succeeded()
}

// Driver iterates the Reconciler over every active system, strictly
// sequentially, with a fixed pause between systems. One system's failure
// never stops the batch.
type Driver struct {
	rec       *Reconciler
	directory remote.Directory
	pause     time.Duration
}

// NewDriver creates a Driver. A non-positive pause falls back to
// DefaultPause.
func NewDriver(rec *Reconciler, directory remote.Directory, pause time.Duration) *Driver {
	if pause <= 0 {
		pause = DefaultPause
	}
	return &Driver{rec: rec, directory: directory, pause: pause}
}

// RunAll reconciles every descriptor for every active system and returns
// the ordered batch report. An error is returned only when the batch cannot
// start at all (directory failure, mirror table setup) or the context ends
// between systems; individual run failures are carried in the report.
func (dr *Driver) RunAll(ctx context.Context, descriptors []dataset.Descriptor) (*BatchReport, error) {
	report := &BatchReport{StartedAt: dr.rec.Clock()}

	systems, err := dr.directory.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active systems: %w", err)
	}

	for i := range descriptors {
		if err := dr.rec.st.EnsureMirrorTable(ctx, &descriptors[i]); err != nil {
			return nil, err
		}
	}

	slog.Info("batch starting", "systems", len(systems), "datasets", len(descriptors))
	for i, sys := range systems {
		if i > 0 {
			if err := sleepCtx(ctx, dr.pause); err != nil {
				return report, err
			}
		}
		for j := range descriptors {
			res := dr.rec.Run(ctx, &descriptors[j], sys)
			report.Results = append(report.Results, res)
		}
	}

	report.FinishedAt = dr.rec.Clock()
	report.DurationMs = report.FinishedAt.Sub(report.StartedAt).Milliseconds()
	slog.Info("batch finished", "runs", len(report.Results), "failed", report.Failed())
	return report, nil
}

// sleepCtx pauses for d or until the context ends, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
