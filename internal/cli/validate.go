package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remora-io/remora/internal/config"
	"github.com/remora-io/remora/internal/dataset"
)

// ValidateOptions holds flags specific to the validate command.
type ValidateOptions struct {
	Config string
}

// validateSummary is the per-descriptor line of the validate report.
type validateSummary struct {
	Name   string `json:"name"`
	Entity string `json:"entity"`
	Table  string `json:"table"`
	Fields int    `json:"fields"`
	Keys   int    `json:"keys"`
}

// NewValidateCommand creates the validate command, which checks the config
// and every dataset descriptor without touching the database or the remote.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config and dataset descriptors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "remora.yaml", "path to config file")

	return cmd
}

func runValidate(cmd *cobra.Command, rootOpts *RootOptions, opts *ValidateOptions) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return NewExitError(ExitFailure, fmt.Errorf("config: %w", err))
	}

	descriptors, err := dataset.LoadDir(cfg.Datasets)
	if err != nil {
		var loadErr *dataset.LoadError
		if errors.As(err, &loadErr) {
			return NewExitError(ExitFailure, fmt.Errorf("datasets: %w", loadErr))
		}
		return NewExitError(ExitFailure, fmt.Errorf("datasets: %w", err))
	}
	if len(descriptors) == 0 {
		return NewExitError(ExitFailure, fmt.Errorf("no dataset descriptors found in %s", cfg.Datasets))
	}

	summaries := make([]validateSummary, 0, len(descriptors))
	for _, d := range descriptors {
		summaries = append(summaries, validateSummary{
			Name:   d.Name,
			Entity: d.Entity,
			Table:  d.Table,
			Fields: len(d.Fields),
			Keys:   len(d.KeyFields()),
		})
	}

	formatter := NewOutputFormatter(rootOpts.Format, cmd.OutOrStdout())
	if formatter.JSON() {
		return formatter.WriteJSON(summaries)
	}
	for _, s := range summaries {
		formatter.Printf("ok  %-20s entity=%s table=%s fields=%d keys=%d\n",
			s.Name, s.Entity, s.Table, s.Fields, s.Keys)
	}
	formatter.Printf("%d descriptor(s), %d system(s): config valid\n",
		len(descriptors), len(cfg.Systems))
	return nil
}
