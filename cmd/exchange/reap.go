package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timmy/catalogx/internal/bootstrap"
)

func reapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Run one reaper pass: promote due retries and requeue stalled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			app, err := bootstrap.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			stats, err := app.Reaper.RunOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "promoted %d, requeued %d running and %d pending, %d pending still queued, failed %d\n",
				stats.Promoted, stats.RequeuedRunning, stats.RequeuedPending, stats.StillQueued, stats.Failed)
			return err
		},
	}
}
