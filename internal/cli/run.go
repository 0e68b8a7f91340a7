package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/remora-io/remora/internal/reconcile"
)

// RunOptions holds flags specific to the run command.
type RunOptions struct {
	Config   string
	Datasets []string
}

// NewRunCommand creates the run command, which reconciles every dataset
// against every active system.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile all datasets against all active systems",
		Long: `Run a full reconciliation batch: for each active system and each dataset,
fetch the current snapshot, mark the mirror stale, and upsert every row
inside a single transaction. Row counts are reported per run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "remora.yaml", "path to config file")
	cmd.Flags().StringSliceVarP(&opts.Datasets, "dataset", "d", nil, "dataset(s) to reconcile (default: all)")

	return cmd
}

func runBatch(cmd *cobra.Command, rootOpts *RootOptions, opts *RunOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(opts.Config)
	if err != nil {
		return NewExitError(ExitCommandError, err)
	}
	defer a.close()

	descriptors, err := a.pickDatasets(opts.Datasets)
	if err != nil {
		return NewExitError(ExitCommandError, err)
	}

	driver := reconcile.NewDriver(a.rec, a.cfg.Directory(), time.Duration(a.cfg.Pause))
	report, err := driver.RunAll(ctx, descriptors)
	if err != nil {
		return NewExitError(ExitFailure, fmt.Errorf("running batch: %w", err))
	}

	formatter := NewOutputFormatter(rootOpts.Format, cmd.OutOrStdout())
	if err := writeBatchReport(formatter, report); err != nil {
		return NewExitError(ExitCommandError, err)
	}

	if report.Failed() > 0 {
		return NewExitError(ExitFailure, fmt.Errorf("%d of %d runs failed", report.Failed(), len(report.Results)))
	}
	return nil
}

func writeBatchReport(f *OutputFormatter, report *reconcile.BatchReport) error {
	if f.JSON() {
		return f.WriteJSON(report)
	}
	for _, res := range report.Results {
		writeResult(f, res)
	}
	f.Printf("batch: %d succeeded, %d failed (%dms)\n",
		report.Succeeded(), report.Failed(), report.DurationMs)
	return nil
}

func writeResult(f *OutputFormatter, res reconcile.SyncResult) {
	status := "ok"
	if !res.Success {
		status = "FAILED"
	}
	f.Printf("%-8s %s/%s fetched=%d inserted=%d updated=%d stale=%d skipped=%d (%dms)\n",
		status, res.SystemID, res.Dataset,
		res.TotalFetched, res.Inserted, res.Updated, res.MarkedStale, res.Skipped,
		res.DurationMs)
	if res.ErrorMessage != "" {
		f.Printf("         error: %s\n", res.ErrorMessage)
	}
}
