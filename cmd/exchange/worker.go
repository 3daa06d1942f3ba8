package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timmy/catalogx/internal/bootstrap"
	"github.com/timmy/catalogx/internal/logger"
)

func workerCmd() *cobra.Command {
	var concurrency int
	var noReaper bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume exchange jobs from the queue until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if cfg.Queue.Driver == "memory" {
				return fmt.Errorf("worker needs a shared queue; queue.driver is %q", cfg.Queue.Driver)
			}
			if concurrency > 0 {
				cfg.Worker.Concurrency = concurrency
			}

			ctx := cmd.Context()
			app, err := bootstrap.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			pool := app.NewPool()
			if err := pool.Start(ctx); err != nil {
				return err
			}
			if !noReaper {
				app.Reaper.Start(ctx)
			}

			log.WithFields(logger.Fields{
				logger.FieldWorker: app.Processor.WorkerID(),
				"concurrency":      cfg.Worker.Concurrency,
				"reaper":           !noReaper,
			}).Info("Worker running")

			<-ctx.Done()
			log.Info("Shutting down worker...")
			app.Reaper.Stop()
			pool.Stop()

			stats := pool.Stats()
			log.WithFields(logger.Fields{
				"succeeded": stats.Succeeded,
				"retried":   stats.Retried,
				"exhausted": stats.Exhausted,
			}).Info("Worker exited")
			return nil
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "number of consumers (default from config)")
	cmd.Flags().BoolVar(&noReaper, "no-reaper", false, "do not run the reaper in this process")
	return cmd
}
