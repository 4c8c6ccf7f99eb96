// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest fetches records from upstream sources and normalizes
// them into the unified schema. Each source implements the Adapter
// interface per the Strategy pattern: the engine drives adapters without
// knowing any source's pagination or layout quirks.
package harvest

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/content-aggregator/internal/dedupe"
	"github.com/pdiddy/content-aggregator/pkg/types"
)

// Adapter produces a finite sequence of unified records from one source.
//
// limit = 0 means unbounded: fetch until the source signals exhaustion.
// limit > 0 caps total records returned; the adapter stops issuing
// requests once reached. A terminal failure mid-pagination returns the
// records accumulated so far together with the error, so partial output
// survives.
type Adapter interface {
	Name() string
	Source() types.Source
	Fetch(ctx context.Context, limit int) (Result, error)
}

// BaselineConsumer is implemented by adapters whose input depends on the
// baseline source's output (the registry adapter discovers its researcher
// IDs there). The engine invokes it after the baseline completes and
// before non-baseline fetching starts.
type BaselineConsumer interface {
	ConsumeBaseline(records []types.UnifiedRecord)
}

// Result is one adapter's normalized output.
type Result struct {
	Records []types.UnifiedRecord

	// Invalid counts records dropped at the adapter boundary for missing
	// identity fields (no title and no DOI). Counted separately from
	// duplicates, never retried, and not counted toward the fetch limit.
	Invalid int
}

// add validates and appends a record, canonicalizing its DOI. Reports
// whether the record was kept.
func (res *Result) add(r types.UnifiedRecord) bool {
	r.DOI = dedupe.NormalizeDOI(r.DOI)
	if !r.HasIdentity() {
		res.Invalid++
		return false
	}
	res.Records = append(res.Records, r)
	return true
}

// full reports whether the limit has been reached.
func (res *Result) full(limit int) bool {
	return limit > 0 && len(res.Records) >= limit
}

// seenSet deduplicates within one adapter's output by origin identifier,
// guarding against items reappearing across pagination boundaries.
type seenSet map[string]struct{}

// add records id and reports whether it was new. Empty IDs are never
// considered seen.
func (s seenSet) add(id string) bool {
	if id == "" {
		return true
	}
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// doiPattern matches a DOI embedded in arbitrary text.
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[-._;()/:a-zA-Z0-9]+`)

// extractDOI pulls the first DOI out of free text or a resolver URL.
func extractDOI(s string) string {
	return dedupe.NormalizeDOI(doiPattern.FindString(s))
}

// dateFormats are tried in order when parsing source date strings. Each
// layout records the precision it carries so partial dates stay partial.
var dateFormats = []struct {
	layout string
	prec   int // 1 = year, 2 = year-month, 3 = full
}{
	{"2006-01-02", 3},
	{"2006-01-02T15:04:05Z07:00", 3},
	{"January 2, 2006", 3},
	{"2 January 2006", 3},
	{"2006/01/02", 3},
	{"02/01/2006", 3},
	{"2006-01", 2},
	{"January 2006", 2},
	{"2006", 1},
}

var yearPattern = regexp.MustCompile(`\b(\d{4})\b`)

// parseDate converts a source date string into a Date at the precision
// the string carries, falling back to a bare year when only that much is
// recognizable. Unparseable input yields the zero Date.
func parseDate(s string) types.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.Date{}
	}
	for _, f := range dateFormats {
		t, err := time.Parse(f.layout, s)
		if err != nil {
			continue
		}
		d := types.Date{Year: t.Year()}
		if f.prec >= 2 {
			d.Month = t.Month()
		}
		if f.prec >= 3 {
			d.Day = t.Day()
		}
		return d
	}
	if m := yearPattern.FindString(s); m != "" {
		y, _ := strconv.Atoi(m)
		return types.Date{Year: y}
	}
	return types.Date{}
}

// uniqueStrings keeps first occurrences, preserving order. Used where
// sources repeat authors or subjects across metadata rows.
func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// splitList splits a "; "-style joined field into trimmed parts.
func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
