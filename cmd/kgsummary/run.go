package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/kgsummary/internal/app"
	"github.com/yungbote/kgsummary/internal/modules/summary/pipeline"
	"github.com/yungbote/kgsummary/internal/pkg/dbctx"
)

var runOpts struct {
	workers       int
	batchSize     int
	requeueFailed bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drain the work queue",
	Long: `Claim documents in batches and summarize each one until a claim returns
nothing. Exits non-zero when a claim fails or the run is interrupted.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runOpts.workers, "workers", 0, "Concurrent documents per batch (overrides WORKERS)")
	runCmd.Flags().IntVar(&runOpts.batchSize, "batch-size", 0, "Documents per claim (overrides CLAIM_BATCH_SIZE)")
	runCmd.Flags().BoolVar(&runOpts.requeueFailed, "requeue-failed", false, "Requeue failed documents below MAX_ATTEMPTS before starting")
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := loadApp(cmd, func(cfg *app.Config) {
		if runOpts.workers > 0 {
			cfg.Queue.Workers = runOpts.workers
		}
		if runOpts.batchSize > 0 {
			cfg.Queue.BatchSize = runOpts.batchSize
		}
	})
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	a.Metrics.Serve(ctx, a.Cfg.MetricsAddr, a.Log)

	if runOpts.requeueFailed {
		n, err := a.Repos.Documents.RequeueFailed(dbctx.Context{Ctx: ctx}, a.Cfg.Queue.MaxAttempts)
		if err != nil {
			return fmt.Errorf("requeue failed documents: %w", err)
		}
		a.Log.Info("Requeued failed documents", "count", n, "max_attempts", a.Cfg.Queue.MaxAttempts)
	}

	orch, err := a.Orchestrator(ctx)
	if err != nil {
		return err
	}
	sum, runErr := orch.Run(ctx)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d batches, %d claimed, %d processed, %d failed, %d edges created in %s\n",
		sum.RunID, sum.Batches, sum.Claimed, sum.Processed, sum.Failed, sum.EdgesCreated, sum.Duration.Round(time.Millisecond))
	outcomes := make([]pipeline.Outcome, 0, len(sum.Outcomes))
	for o := range sum.Outcomes {
		outcomes = append(outcomes, o)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i] < outcomes[j] })
	for _, o := range outcomes {
		fmt.Fprintf(out, "  %-20s %d\n", o, sum.Outcomes[o])
	}
	if sum.LeaseLost > 0 {
		fmt.Fprintf(out, "  %-20s %d\n", "lease_lost", sum.LeaseLost)
	}
	return runErr
}
