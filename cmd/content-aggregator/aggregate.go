// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// errPartialFailure is returned when the baseline succeeded but at least
// one other source failed. main translates it to exit code 2 so deferred
// cleanup (logger sync, signal release) still runs.
var errPartialFailure = errors.New("one or more non-baseline sources failed")

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Run one aggregation pass over all configured sources",
	Long: `Aggregate resolves the roster against the scholarly graph API (the
baseline source), then harvests the registry, repository, and website
sources concurrently. Records are deduplicated by DOI and title, exported
as per-source and merged CSVs, and recorded in the run catalog.

Exits 0 when every source succeeded, 2 when the baseline succeeded but at
least one other source failed, and 1 when the baseline itself failed.`,
	RunE: runAggregate,
}

func runAggregate(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out, err := runPipeline(ctx, pipelineConfig(), logger)
	if err != nil {
		return err
	}
	if out.PartialFailure() {
		logger.Warn("run completed with partial failures")
		return errPartialFailure
	}
	return nil
}

func init() {
	aggregateCmd.Flags().String("roster", "", "researcher roster CSV (first/last name columns)")
	aggregateCmd.Flags().Int("limit", 0, "max records per source (0 = unbounded)")
	aggregateCmd.Flags().String("output-dir", "", "directory for CSV and summary output")

	viper.BindPFlag("roster", aggregateCmd.Flags().Lookup("roster"))
	viper.BindPFlag("limit", aggregateCmd.Flags().Lookup("limit"))
	viper.BindPFlag("export.output_dir", aggregateCmd.Flags().Lookup("output-dir"))

	rootCmd.AddCommand(aggregateCmd)
}
