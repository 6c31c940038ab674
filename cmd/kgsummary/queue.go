package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	types "github.com/yungbote/kgsummary/internal/domain/summary"
	"github.com/yungbote/kgsummary/internal/pkg/dbctx"
)

var requeueMaxAttempts int

var requeueCmd = &cobra.Command{
	Use:   "requeue-failed",
	Short: "Move failed documents back to unprocessed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := loadApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close(context.WithoutCancel(ctx))

		limit := a.Cfg.Queue.MaxAttempts
		if cmd.Flags().Changed("max-attempts") {
			limit = requeueMaxAttempts
		}
		n, err := a.Repos.Documents.RequeueFailed(dbctx.Context{Ctx: ctx}, limit)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "requeued %d documents\n", n)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print document counts per queue state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := loadApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close(context.WithoutCancel(ctx))

		counts, err := a.Repos.Documents.CountByState(dbctx.Context{Ctx: ctx})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, s := range []types.DocumentState{types.StateUnprocessed, types.StateProcessed, types.StateFailed} {
			fmt.Fprintf(out, "%-12s %d\n", s, counts[s])
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create catalog tables and graph indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := loadApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close(context.WithoutCancel(ctx))
		return a.Migrate(ctx)
	},
}

func init() {
	requeueCmd.Flags().IntVar(&requeueMaxAttempts, "max-attempts", 0, "Only requeue documents with fewer attempts (0 requeues all; defaults to MAX_ATTEMPTS)")
}
