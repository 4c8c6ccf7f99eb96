// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/content-aggregator/internal/aggregate"
	"github.com/pdiddy/content-aggregator/internal/catalog"
	"github.com/pdiddy/content-aggregator/internal/export"
	"github.com/pdiddy/content-aggregator/internal/fetch"
	"github.com/pdiddy/content-aggregator/internal/harvest"
	"github.com/pdiddy/content-aggregator/internal/roster"
	"github.com/pdiddy/content-aggregator/pkg/types"
)

const summaryFile = "run-summary.yaml"

func init() {
	viper.SetDefault("roster", "roster.csv")
	viper.SetDefault("limit", 0)

	viper.SetDefault("http.timeout", 30*time.Second)
	viper.SetDefault("http.user_agent", "content-aggregator/"+version)
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.base_delay", 2*time.Second)

	viper.SetDefault("graph.base_url", "https://api.openalex.org")
	viper.SetDefault("graph.page_size", 25)
	viper.SetDefault("graph.request_delay", time.Second)

	viper.SetDefault("registry.base_url", "https://pub.orcid.org/v3.0")
	viper.SetDefault("registry.token_url", "https://orcid.org/oauth/token")
	viper.SetDefault("registry.max_researchers", 0)
	viper.SetDefault("registry.request_delay", time.Second)

	viper.SetDefault("repository.base_url", "https://knowhub.aphrc.org")
	viper.SetDefault("repository.page_size", 20)
	viper.SetDefault("repository.request_delay", time.Second)

	viper.SetDefault("website.base_url", "https://aphrc.org")
	viper.SetDefault("website.request_delay", time.Second)

	viper.SetDefault("export.output_dir", "output")
	viper.SetDefault("export.catalog_path", filepath.Join("output", "catalog.db"))
}

// pipelineConfig assembles the run configuration from config file,
// environment, and secrets.
func pipelineConfig() types.PipelineConfig {
	httpCfg := types.HTTPConfig{
		Timeout:   viper.GetDuration("http.timeout"),
		UserAgent: viper.GetString("http.user_agent"),
	}

	var selectors types.SelectorConfig
	_ = viper.UnmarshalKey("website.selectors", &selectors)

	return types.PipelineConfig{
		RosterPath: viper.GetString("roster"),
		Limit:      viper.GetInt("limit"),
		Retry: types.RetryConfig{
			MaxAttempts: viper.GetInt("retry.max_attempts"),
			BaseDelay:   viper.GetDuration("retry.base_delay"),
		},
		Graph: types.GraphConfig{
			HTTPConfig:   httpCfg,
			BaseURL:      viper.GetString("graph.base_url"),
			Email:        secretDefault("openalex-email", viper.GetString("graph.email")),
			PageSize:     viper.GetInt("graph.page_size"),
			RequestDelay: viper.GetDuration("graph.request_delay"),
		},
		Registry: types.RegistryConfig{
			HTTPConfig:     httpCfg,
			BaseURL:        viper.GetString("registry.base_url"),
			TokenURL:       viper.GetString("registry.token_url"),
			ClientID:       secretDefault("orcid-client-id", viper.GetString("registry.client_id")),
			ClientSecret:   secretDefault("orcid-client-secret", viper.GetString("registry.client_secret")),
			MaxResearchers: viper.GetInt("registry.max_researchers"),
			RequestDelay:   viper.GetDuration("registry.request_delay"),
		},
		Repository: types.RepositoryConfig{
			HTTPConfig:   httpCfg,
			BaseURL:      viper.GetString("repository.base_url"),
			PageSize:     viper.GetInt("repository.page_size"),
			RequestDelay: viper.GetDuration("repository.request_delay"),
		},
		Website: types.WebsiteConfig{
			HTTPConfig:   httpCfg,
			BaseURL:      viper.GetString("website.base_url"),
			Sections:     viper.GetStringMapString("website.sections"),
			Selectors:    selectors,
			RequestDelay: viper.GetDuration("website.request_delay"),
		},
		Export: types.ExportConfig{
			OutputDir:   viper.GetString("export.output_dir"),
			CatalogPath: viper.GetString("export.catalog_path"),
		},
	}
}

// buildEngine wires the adapters. The graph source is the baseline; the
// registry source is skipped when no credentials are configured.
func buildEngine(cfg types.PipelineConfig, researchers []harvest.Researcher, logger *zap.Logger) *aggregate.Engine {
	sources := []harvest.Adapter{}

	if cfg.Registry.ClientID != "" && cfg.Registry.ClientSecret != "" {
		client := fetch.NewClient(cfg.Registry.HTTPConfig, cfg.Retry, logger)
		sources = append(sources, harvest.NewRegistryAdapter(client, cfg.Registry, logger))
	} else {
		logger.Info("registry source skipped: no client credentials configured")
	}

	repoClient := fetch.NewClient(cfg.Repository.HTTPConfig, cfg.Retry, logger)
	sources = append(sources, harvest.NewRepositoryAdapter(repoClient, cfg.Repository, logger))

	siteClient := fetch.NewClient(cfg.Website.HTTPConfig, cfg.Retry, logger)
	sources = append(sources, harvest.NewWebsiteAdapter(siteClient, cfg.Website, logger))

	graphClient := fetch.NewClient(cfg.Graph.HTTPConfig, cfg.Retry, logger)
	return &aggregate.Engine{
		Baseline: harvest.NewGraphAdapter(graphClient, cfg.Graph, researchers, logger),
		Sources:  sources,
		Limit:    cfg.Limit,
		Logger:   logger,
	}
}

// runPipeline executes one aggregation pass and writes all outputs. The
// outcome is returned even when the baseline failed so callers can still
// report stats.
func runPipeline(ctx context.Context, cfg types.PipelineConfig, logger *zap.Logger) (aggregate.Outcome, error) {
	researchers, err := roster.Load(cfg.RosterPath, logger)
	if err != nil {
		return aggregate.Outcome{}, err
	}
	logger.Info("roster loaded",
		zap.String("path", cfg.RosterPath), zap.Int("researchers", len(researchers)))

	started := time.Now()
	out, runErr := buildEngine(cfg, researchers, logger).Run(ctx)

	aggregate.FormatTable(out, os.Stdout)

	if err := writeOutputs(ctx, cfg, out, started); err != nil {
		if runErr == nil {
			runErr = err
		} else {
			logger.Warn("writing outputs failed", zap.Error(err))
		}
	}
	return out, runErr
}

// writeOutputs exports CSVs, the YAML run summary, and the catalog entry.
func writeOutputs(ctx context.Context, cfg types.PipelineConfig, out aggregate.Outcome, started time.Time) error {
	paths, err := export.WriteRun(cfg.Export.OutputDir, out.Merged, out.BySource)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println("wrote", p)
	}

	summaryPath := filepath.Join(cfg.Export.OutputDir, summaryFile)
	f, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("creating run summary: %w", err)
	}
	if err := aggregate.WriteSummary(out, f); err != nil {
		f.Close()
		return fmt.Errorf("writing run summary: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Println("wrote", summaryPath)

	if cfg.Export.CatalogPath != "" {
		store, err := catalog.NewStore(cfg.Export.CatalogPath)
		if err != nil {
			return err
		}
		defer store.Close()
		runID, err := store.RecordRun(ctx, out, started)
		if err != nil {
			return err
		}
		fmt.Printf("catalog run %d recorded\n", runID)
	}
	return nil
}
