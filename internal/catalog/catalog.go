// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog persists aggregation runs to a SQLite database so past
// harvests can be listed and re-exported without refetching.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/content-aggregator/internal/aggregate"
	"github.com/pdiddy/content-aggregator/pkg/types"
)

// Store manages the run catalog SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the catalog database at path, creating the
// schema if it does not exist.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			merged INTEGER NOT NULL,
			partial INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_sources (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			source TEXT NOT NULL,
			fetched INTEGER NOT NULL,
			accepted INTEGER NOT NULL,
			duplicates INTEGER NOT NULL,
			invalid INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			error TEXT,
			PRIMARY KEY (run_id, source)
		)`,
		`CREATE TABLE IF NOT EXISTS run_records (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			source TEXT NOT NULL,
			content_type TEXT,
			title TEXT,
			authors TEXT,
			date TEXT,
			abstract TEXT,
			doi TEXT,
			url TEXT,
			origin_id TEXT,
			journal TEXT,
			external_ids TEXT,
			affiliations TEXT,
			keywords TEXT,
			full_text TEXT,
			image_url TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_records_run_id ON run_records(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_run_records_doi ON run_records(doi)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun persists one aggregation outcome and returns the run ID.
func (s *Store) RecordRun(ctx context.Context, out aggregate.Outcome, startedAt time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := sq.Insert("runs").
		Columns("started_at", "finished_at", "merged", "partial").
		Values(
			startedAt.UTC().Format(time.RFC3339),
			time.Now().UTC().Format(time.RFC3339),
			len(out.Merged),
			out.PartialFailure(),
		).
		RunWith(tx).ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	for _, name := range out.Order {
		st := out.Stats[name]
		_, err := sq.Insert("run_sources").
			Columns("run_id", "source", "fetched", "accepted", "duplicates", "invalid", "failed", "error").
			Values(runID, name, st.Fetched, st.Accepted, st.Duplicates, st.Invalid, st.Failed, st.Error).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return 0, fmt.Errorf("inserting stats for %s: %w", name, err)
		}
	}

	insert := sq.Insert("run_records").Columns(
		"run_id", "source", "content_type", "title", "authors", "date",
		"abstract", "doi", "url", "origin_id", "journal", "external_ids",
		"affiliations", "keywords", "full_text", "image_url",
	)
	for _, rec := range out.Merged {
		authorsJSON, _ := json.Marshal(rec.Authors)
		idsJSON, _ := json.Marshal(rec.ExternalIDs)
		affJSON, _ := json.Marshal(rec.Affiliations)
		kwJSON, _ := json.Marshal(rec.Keywords)
		insert = insert.Values(
			runID, string(rec.Source), string(rec.ContentType), rec.Title,
			string(authorsJSON), rec.Date.String(), rec.Abstract, rec.DOI,
			rec.URL, rec.OriginID, rec.Journal, string(idsJSON),
			string(affJSON), string(kwJSON), rec.FullText, rec.ImageURL,
		)
	}
	if len(out.Merged) > 0 {
		if _, err := insert.RunWith(tx).ExecContext(ctx); err != nil {
			return 0, fmt.Errorf("inserting records: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// Run summarizes one persisted aggregation run.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Merged     int
	Partial    bool
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := sq.Select("id", "started_at", "finished_at", "merged", "partial").
		From("runs").
		OrderBy("id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	rows, err := q.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Merged, &r.Partial); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Records returns the merged records persisted for one run, in admission
// order.
func (s *Store) Records(ctx context.Context, runID int64) ([]types.UnifiedRecord, error) {
	rows, err := sq.Select(
		"source", "content_type", "title", "authors", "date", "abstract",
		"doi", "url", "origin_id", "journal", "external_ids",
		"affiliations", "keywords", "full_text", "image_url",
	).
		From("run_records").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("rowid").
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []types.UnifiedRecord
	for rows.Next() {
		var rec types.UnifiedRecord
		var source, contentType, date, authors, ids, affiliations, keywords string
		if err := rows.Scan(
			&source, &contentType, &rec.Title, &authors, &date, &rec.Abstract,
			&rec.DOI, &rec.URL, &rec.OriginID, &rec.Journal, &ids,
			&affiliations, &keywords, &rec.FullText, &rec.ImageURL,
		); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.Source = types.Source(source)
		rec.ContentType = types.ContentType(contentType)
		rec.Date = parseStoredDate(date)
		json.Unmarshal([]byte(authors), &rec.Authors)
		json.Unmarshal([]byte(ids), &rec.ExternalIDs)
		json.Unmarshal([]byte(affiliations), &rec.Affiliations)
		json.Unmarshal([]byte(keywords), &rec.Keywords)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// parseStoredDate reverses types.Date.String().
func parseStoredDate(s string) types.Date {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			d := types.Date{Year: t.Year()}
			if len(layout) >= len("2006-01") {
				d.Month = t.Month()
			}
			if layout == "2006-01-02" {
				d.Day = t.Day()
			}
			return d
		}
	}
	return types.Date{}
}
