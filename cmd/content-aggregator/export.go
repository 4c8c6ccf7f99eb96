// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/content-aggregator/internal/catalog"
	"github.com/pdiddy/content-aggregator/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "List past runs or re-export one from the catalog",
	Long: `Export reads the run catalog. Without flags it lists recent runs;
with --run it re-exports that run's merged records as CSV without
refetching anything.`,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	if cfg.Export.CatalogPath == "" {
		return fmt.Errorf("no catalog configured: set export.catalog_path")
	}

	store, err := catalog.NewStore(cfg.Export.CatalogPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runID, _ := cmd.Flags().GetInt64("run")
	if runID == 0 {
		return listRuns(cmd, store)
	}

	records, err := store.Records(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("run %d has no records (does it exist?)", runID)
	}

	outPath, _ := cmd.Flags().GetString("out")
	if outPath == "" {
		outPath = filepath.Join(cfg.Export.OutputDir, fmt.Sprintf("run-%d.csv", runID))
	}
	if err := export.WriteCSV(records, outPath); err != nil {
		return err
	}
	fmt.Println("wrote", outPath)
	return nil
}

func listRuns(cmd *cobra.Command, store *catalog.Store) error {
	limit, _ := cmd.Flags().GetInt("last")
	runs, err := store.Runs(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-6s  %-20s  %-20s  %8s  %s\n",
		"Run", "Started", "Finished", "Merged", "Partial")
	fmt.Println(strings.Repeat("-", 68))
	for _, r := range runs {
		partial := ""
		if r.Partial {
			partial = "yes"
		}
		fmt.Printf("%-6d  %-20s  %-20s  %8d  %s\n",
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.FinishedAt.Format("2006-01-02 15:04:05"),
			r.Merged, partial)
	}
	return nil
}

func init() {
	exportCmd.Flags().Int64("run", 0, "run ID to re-export (0 = list runs)")
	exportCmd.Flags().String("out", "", "output CSV path (default: <output-dir>/run-<id>.csv)")
	exportCmd.Flags().Int("last", 20, "number of runs to list")

	rootCmd.AddCommand(exportCmd)
}
