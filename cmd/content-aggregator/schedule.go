// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the aggregation pipeline on a cron schedule",
	Long: `Schedule runs the full aggregation pipeline on the given cron
expression (standard 5-field syntax) until interrupted. Each pass writes
its outputs exactly as the aggregate command does; overlapping passes are
prevented by skipping a tick while the previous pass is still running.`,
	RunE: runSchedule,
}

func runSchedule(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	spec, _ := cmd.Flags().GetString("cron")

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	_, err = c.AddFunc(spec, func() {
		logger.Info("scheduled run starting", zap.String("cron", spec))
		out, err := runPipeline(cmd.Context(), pipelineConfig(), logger)
		switch {
		case err != nil:
			logger.Error("scheduled run failed", zap.Error(err))
		case out.PartialFailure():
			logger.Warn("scheduled run completed with partial failures")
		default:
			logger.Info("scheduled run complete", zap.Int("merged", len(out.Merged)))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	c.Start()
	fmt.Fprintf(os.Stderr, "scheduler started (%s); press Ctrl-C to stop\n", spec)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	ctx := c.Stop()
	<-ctx.Done()
	return nil
}

func init() {
	scheduleCmd.Flags().String("cron", "0 6 * * 1", "cron expression for pipeline runs (default: Mondays 06:00)")

	rootCmd.AddCommand(scheduleCmd)
}
