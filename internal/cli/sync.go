package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/remora-io/remora/internal/remote"
)

// SyncOptions holds flags specific to the sync command.
type SyncOptions struct {
	Config   string
	System   string
	Datasets []string
}

// NewSyncCommand creates the sync command, which reconciles a single system.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile one system",
		Long: `Reconcile the named system against all datasets, or a selection of
datasets given with --dataset. Useful for repairing a single system
without walking the full directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "remora.yaml", "path to config file")
	cmd.Flags().StringVarP(&opts.System, "system", "s", "", "system id to reconcile (required)")
	cmd.Flags().StringSliceVarP(&opts.Datasets, "dataset", "d", nil, "dataset(s) to reconcile (default: all)")
	cmd.MarkFlagRequired("system")

	return cmd
}

func runSync(cmd *cobra.Command, rootOpts *RootOptions, opts *SyncOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(opts.Config)
	if err != nil {
		return NewExitError(ExitCommandError, err)
	}
	defer a.close()

	sys, err := findSystem(a.cfg.Directory(), opts.System)
	if err != nil {
		return NewExitError(ExitCommandError, err)
	}

	descriptors, err := a.pickDatasets(opts.Datasets)
	if err != nil {
		return NewExitError(ExitCommandError, err)
	}

	formatter := NewOutputFormatter(rootOpts.Format, cmd.OutOrStdout())
	failed := 0
	for i := range descriptors {
		d := &descriptors[i]
		if err := a.st.EnsureMirrorTable(ctx, d); err != nil {
			return NewExitError(ExitFailure, fmt.Errorf("preparing mirror table for %s: %w", d.Name, err))
		}
		res := a.rec.Run(ctx, d, sys)
		if !res.Success {
			failed++
		}
		if !formatter.JSON() {
			writeResult(formatter, res)
		} else if err := formatter.WriteJSON(res); err != nil {
			return NewExitError(ExitCommandError, err)
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Errorf("%d of %d runs failed", failed, len(descriptors)))
	}
	return nil
}

func findSystem(directory remote.StaticDirectory, id string) (remote.System, error) {
	for _, sys := range directory {
		if sys.ID == id {
			return sys, nil
		}
	}
	return remote.System{}, fmt.Errorf("system %q not found in config", id)
}
