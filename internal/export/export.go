// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes aggregated records to row-oriented CSV files.
// Multi-valued fields are "; "-joined; the external identifier map is
// serialized as "type:value; type:value" with sorted types.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/content-aggregator/pkg/types"
)

const listSep = "; "

var columns = []string{
	"source", "content_type", "title", "authors", "date", "abstract",
	"keywords", "doi", "url", "origin_id", "journal", "external_ids",
	"affiliations", "full_text", "image_url",
}

// WriteCSV writes records to path, one row per record. The file is
// written to a temp sibling and renamed into place so readers never see
// a half-written file.
func WriteCSV(records []types.UnifiedRecord, path string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err = w.Write(columns); err != nil {
		tmp.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	for _, rec := range records {
		if err = w.Write(row(rec)); err != nil {
			tmp.Close()
			return fmt.Errorf("writing record: %w", err)
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// WriteRun writes one CSV per source plus the merged collection under
// dir, and returns the paths written.
func WriteRun(dir string, merged []types.UnifiedRecord, bySource map[string][]types.UnifiedRecord) ([]string, error) {
	names := make([]string, 0, len(bySource))
	for name := range bySource {
		names = append(names, name)
	}
	sort.Strings(names)

	var paths []string
	for _, name := range names {
		path := filepath.Join(dir, name+".csv")
		if err := WriteCSV(bySource[name], path); err != nil {
			return paths, fmt.Errorf("exporting %s: %w", name, err)
		}
		paths = append(paths, path)
	}

	mergedPath := filepath.Join(dir, "merged.csv")
	if err := WriteCSV(merged, mergedPath); err != nil {
		return paths, fmt.Errorf("exporting merged collection: %w", err)
	}
	return append(paths, mergedPath), nil
}

func row(rec types.UnifiedRecord) []string {
	return []string{
		string(rec.Source),
		string(rec.ContentType),
		rec.Title,
		strings.Join(rec.Authors, listSep),
		rec.Date.String(),
		rec.Abstract,
		strings.Join(rec.Keywords, listSep),
		rec.DOI,
		rec.URL,
		rec.OriginID,
		rec.Journal,
		joinIDs(rec.ExternalIDs),
		strings.Join(rec.Affiliations, listSep),
		rec.FullText,
		rec.ImageURL,
	}
}

// joinIDs serializes the identifier map deterministically.
func joinIDs(ids map[string]string) string {
	if len(ids) == 0 {
		return ""
	}
	kinds := make([]string, 0, len(ids))
	for k := range ids {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	pairs := make([]string, 0, len(kinds))
	for _, k := range kinds {
		pairs = append(pairs, k+":"+ids[k])
	}
	return strings.Join(pairs, listSep)
}
