package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/timmy/catalogx/internal/bootstrap"
	"github.com/timmy/catalogx/internal/domain"
)

func importCmd() *cobra.Command {
	var companyID, importType string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Parse and merge an exchange document directly, without a job",
		Long: `Parse and merge a CommerceML document synchronously.

No job is created and no audit entries are written; per-batch results are
printed instead. Useful for replaying a stored document.

Examples:
  exchange import --company acme --type catalog import0_1.xml
  exchange import --company acme --type price offers0_1.xml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ := domain.ExchangeType(importType)
			if !typ.IsValid() {
				return fmt.Errorf("unknown import type %q", importType)
			}

			cfg, log, err := setup()
			if err != nil {
				return err
			}
			// The queue is not used here.
			cfg.Queue.Driver = "memory"

			ctx := cmd.Context()
			app, err := bootstrap.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			if _, err := app.Companies.GetByID(ctx, companyID); err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			summary, err := app.Processor.RunDocument(ctx, companyID, typ, f)
			out := cmd.OutOrStdout()
			if summary != nil {
				for _, b := range summary.Batches {
					fmt.Fprintln(out, b)
				}
				c := summary.Counters
				fmt.Fprintf(out, "%d items, %d succeeded, %d failed\n", c.Total, c.Succeeded, c.Failed)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&companyID, "company", "", "company id (required)")
	cmd.Flags().StringVarP(&importType, "type", "t", string(domain.ExchangeTypeCatalog), "catalog, price or stock-balance")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}
