// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the content-aggregator CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/content-aggregator/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, the secret value for key
// otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the content-aggregator CLI.
var rootCmd = &cobra.Command{
	Use:   "content-aggregator",
	Short: "Aggregate research outputs from multiple sources into one collection",
	Long: `content-aggregator harvests research outputs from a scholarly graph API,
a researcher-identity registry, an institutional repository, and the
organizational website, resolves cross-source duplicates by DOI and title,
and exports the merged collection as CSV.

The aggregate subcommand runs one full pipeline pass; export re-exports a
past run from the catalog; schedule runs the pipeline on a cron schedule.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env first so secrets and config can reference it.
		_ = godotenv.Load()

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./content-aggregator.yaml or ~/.config/content-aggregator/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("content-aggregator")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "content-aggregator"))
		}
	}

	viper.SetEnvPrefix("CONTENT_AGGREGATOR")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the CLI logger. Debug level when --verbose is set.
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// exitCode maps a command error to the process exit code: 0 on success,
// 2 on a partial run, 1 for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errPartialFailure):
		return 2
	default:
		return 1
	}
}

func main() {
	os.Exit(exitCode(rootCmd.Execute()))
}
