// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package roster loads the researcher seed list that the baseline source
// resolves against.
package roster

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/content-aggregator/internal/harvest"
)

// Load reads a researcher roster CSV. The header must carry first and
// last name columns (matched case-insensitively, underscores and spaces
// interchangeable). Malformed rows are skipped with a logged reason and
// never abort the load.
func Load(path string, logger *zap.Logger) ([]harvest.Researcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening roster: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("roster %s is empty", path)
	}

	firstCol, lastCol := -1, -1
	for i, name := range rows[0] {
		switch normalizeHeader(name) {
		case "first name":
			firstCol = i
		case "last name":
			lastCol = i
		}
	}
	if firstCol < 0 || lastCol < 0 {
		return nil, fmt.Errorf("roster %s: header must include first and last name columns", path)
	}

	var researchers []harvest.Researcher
	for i, row := range rows[1:] {
		line := i + 2
		if len(row) <= firstCol || len(row) <= lastCol {
			logger.Warn("skipping short roster row", zap.Int("line", line))
			continue
		}
		first := strings.TrimSpace(row[firstCol])
		last := strings.TrimSpace(row[lastCol])
		if first == "" || last == "" {
			logger.Warn("skipping roster row with missing name",
				zap.Int("line", line), zap.String("first", first), zap.String("last", last))
			continue
		}
		researchers = append(researchers, harvest.Researcher{FirstName: first, LastName: last})
	}

	if len(researchers) == 0 {
		return nil, fmt.Errorf("roster %s yielded no usable rows", path)
	}
	return researchers, nil
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "_", " ")
}
