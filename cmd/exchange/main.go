package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/timmy/catalogx/internal/bootstrap"
	"github.com/timmy/catalogx/internal/config"
	"github.com/timmy/catalogx/internal/logger"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "exchange",
		Short:         "catalogx exchange worker and maintenance tools",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", bootstrap.ConfigPath(), "path to config file")

	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(reapCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(companyCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads config and installs the process logger.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, bootstrap.NewLogger(cfg.Log, "catalogx-exchange"), nil
}
