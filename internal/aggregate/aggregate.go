// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate runs the cross-source aggregation: the baseline source
// is fetched and seeded first, the remaining sources fetch concurrently,
// and their records are admitted through the identity index one source at
// a time so the merged output is deterministic.
package aggregate

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/content-aggregator/internal/dedupe"
	"github.com/pdiddy/content-aggregator/internal/harvest"
	"github.com/pdiddy/content-aggregator/pkg/types"
)

// Engine aggregates records from one baseline source plus any number of
// secondary sources. The order of Sources is the admission order.
type Engine struct {
	Baseline harvest.Adapter
	Sources  []harvest.Adapter
	Limit    int
	Logger   *zap.Logger
}

// SourceStats summarizes one source's contribution to a run.
type SourceStats struct {
	Fetched    int    `yaml:"fetched"`
	Accepted   int    `yaml:"accepted"`
	Duplicates int    `yaml:"duplicates"`
	Invalid    int    `yaml:"invalid"`
	Failed     bool   `yaml:"failed"`
	Error      string `yaml:"error,omitempty"`
}

// Outcome is the result of one aggregation run.
type Outcome struct {
	Merged   []types.UnifiedRecord
	BySource map[string][]types.UnifiedRecord
	Stats    map[string]SourceStats
	Order    []string

	// BaselineFailed is set when the baseline source returned an error.
	// Partial baseline records are still admitted.
	BaselineFailed bool
}

// PartialFailure reports whether any non-baseline source failed while the
// baseline succeeded.
func (o Outcome) PartialFailure() bool {
	if o.BaselineFailed {
		return false
	}
	for _, s := range o.Stats {
		if s.Failed {
			return true
		}
	}
	return false
}

// Run executes the aggregation. The baseline source fetches and seeds the
// index before anything else; a baseline failure aborts the run (its
// partial records are kept) and is returned as the error. Non-baseline
// failures never abort: the failing source is flagged in Stats and the
// run continues with whatever the source returned.
func (e *Engine) Run(ctx context.Context) (Outcome, error) {
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	index := dedupe.New()
	out := Outcome{
		BySource: make(map[string][]types.UnifiedRecord),
		Stats:    make(map[string]SourceStats),
	}

	baseRes, baseErr := e.Baseline.Fetch(ctx, e.Limit)
	e.admit(index, &out, e.Baseline, baseRes, baseErr)
	if baseErr != nil {
		out.BaselineFailed = true
		logger.Error("baseline source failed",
			zap.String("source", e.Baseline.Name()), zap.Error(baseErr))
		return out, fmt.Errorf("baseline source %s: %w", e.Baseline.Name(), baseErr)
	}
	logger.Info("baseline seeded",
		zap.String("source", e.Baseline.Name()),
		zap.Int("records", len(out.BySource[e.Baseline.Name()])))

	// Sources that derive their inputs from the baseline (the registry
	// adapter discovers researcher identifiers there) get it now, before
	// any of them fetch.
	admitted := out.BySource[e.Baseline.Name()]
	for _, src := range e.Sources {
		if bc, ok := src.(harvest.BaselineConsumer); ok {
			bc.ConsumeBaseline(admitted)
		}
	}

	// Fetch concurrently, admit sequentially in declared order.
	results := make([]harvest.Result, len(e.Sources))
	errs := make([]error, len(e.Sources))
	var wg sync.WaitGroup
	for i, src := range e.Sources {
		wg.Add(1)
		go func(i int, src harvest.Adapter) {
			defer wg.Done()
			results[i], errs[i] = src.Fetch(ctx, e.Limit)
		}(i, src)
	}
	wg.Wait()

	for i, src := range e.Sources {
		if errs[i] != nil {
			logger.Warn("source failed, continuing with partial records",
				zap.String("source", src.Name()), zap.Error(errs[i]))
		}
		e.admit(index, &out, src, results[i], errs[i])
	}

	logger.Info("aggregation complete",
		zap.Int("merged", len(out.Merged)), zap.Int("sources", len(e.Sources)+1))
	return out, nil
}

// admit runs one source's records through the index and records its
// stats. Provenance is stamped here, centrally, so a record's Source tag
// always names the adapter that contributed it.
func (e *Engine) admit(index *dedupe.Index, out *Outcome, src harvest.Adapter, res harvest.Result, err error) {
	name := src.Name()
	stats := SourceStats{
		Fetched: len(res.Records),
		Invalid: res.Invalid,
	}
	if err != nil {
		stats.Failed = true
		stats.Error = err.Error()
	}

	for _, rec := range res.Records {
		if !index.Admit(rec.DOI, rec.Title) {
			stats.Duplicates++
			continue
		}
		rec.Source = src.Source()
		stats.Accepted++
		out.Merged = append(out.Merged, rec)
		out.BySource[name] = append(out.BySource[name], rec)
	}

	out.Order = append(out.Order, name)
	out.Stats[name] = stats
}

// FormatTable writes a per-source run report to w.
func FormatTable(out Outcome, w io.Writer) {
	fmt.Fprintf(w, "%-14s  %8s  %8s  %10s  %7s  %s\n",
		"Source", "Fetched", "Accepted", "Duplicates", "Invalid", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 68))

	for _, name := range out.Order {
		s := out.Stats[name]
		status := "ok"
		if s.Failed {
			status = "FAILED"
		}
		fmt.Fprintf(w, "%-14s  %8d  %8d  %10d  %7d  %s\n",
			name, s.Fetched, s.Accepted, s.Duplicates, s.Invalid, status)
	}

	fmt.Fprintf(w, "\n%d records merged\n", len(out.Merged))
}

// runSummary is the YAML shape of the run-summary artifact.
type runSummary struct {
	GeneratedAt time.Time              `yaml:"generated_at"`
	Merged      int                    `yaml:"merged"`
	Partial     bool                   `yaml:"partial"`
	Sources     map[string]SourceStats `yaml:"sources"`
}

// WriteSummary writes the YAML run summary to w.
func WriteSummary(out Outcome, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(runSummary{
		GeneratedAt: time.Now().UTC(),
		Merged:      len(out.Merged),
		Partial:     out.PartialFailure(),
		Sources:     out.Stats,
	})
}
