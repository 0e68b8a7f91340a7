package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/remora-io/remora/internal/config"
	"github.com/remora-io/remora/internal/store"
)

// StatusOptions holds flags specific to the status command.
type StatusOptions struct {
	Config string
	Limit  int
}

// statusEntry mirrors a sync-log row for output.
type statusEntry struct {
	RunID        string    `json:"run_id"`
	Dataset      string    `json:"dataset"`
	SystemID     string    `json:"system_id"`
	SystemLabel  string    `json:"system_label"`
	Success      bool      `json:"success"`
	TotalFetched int       `json:"total_fetched"`
	Inserted     int       `json:"inserted"`
	Updated      int       `json:"updated"`
	MarkedStale  int       `json:"marked_stale"`
	StartedAt    time.Time `json:"started_at"`
	DurationMs   int64     `json:"duration_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// NewStatusCommand creates the status command, which lists recent sync runs.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "remora.yaml", "path to config file")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of runs to show")

	return cmd
}

func runStatus(cmd *cobra.Command, rootOpts *RootOptions, opts *StatusOptions) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return NewExitError(ExitCommandError, fmt.Errorf("loading config: %w", err))
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return NewExitError(ExitFailure, fmt.Errorf("opening store: %w", err))
	}
	defer st.Close()

	runs, err := st.RecentRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return NewExitError(ExitFailure, fmt.Errorf("reading sync log: %w", err))
	}

	entries := make([]statusEntry, 0, len(runs))
	for _, r := range runs {
		entries = append(entries, statusEntry{
			RunID:        r.ID,
			Dataset:      r.Dataset,
			SystemID:     r.SystemID,
			SystemLabel:  r.SystemLabel,
			Success:      r.Success,
			TotalFetched: r.TotalFetched,
			Inserted:     r.Inserted,
			Updated:      r.Updated,
			MarkedStale:  r.MarkedStale,
			StartedAt:    r.StartedAt,
			DurationMs:   r.DurationMs,
			ErrorMessage: r.ErrorMessage,
		})
	}

	formatter := NewOutputFormatter(rootOpts.Format, cmd.OutOrStdout())
	if formatter.JSON() {
		return formatter.WriteJSON(entries)
	}
	if len(entries) == 0 {
		formatter.Printf("no runs recorded\n")
		return nil
	}
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "FAILED"
		}
		formatter.Printf("%s  %-8s %s/%s fetched=%d inserted=%d updated=%d stale=%d (%dms)\n",
			e.StartedAt.Format(time.RFC3339), status, e.SystemID, e.Dataset,
			e.TotalFetched, e.Inserted, e.Updated, e.MarkedStale, e.DurationMs)
		if e.ErrorMessage != "" {
			formatter.Printf("         error: %s\n", e.ErrorMessage)
		}
	}
	return nil
}
