// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedupe maintains the set of works already admitted to the
// aggregation run and answers duplicate checks across sources.
//
// Identity is derived, never stored on the record: the canonicalized DOI
// when present, the lowercased title otherwise. A DOI match is always
// decisive when both records carry a DOI; title equality only counts when
// either side lacks one.
package dedupe

import (
	"strings"
	"sync"

	"github.com/pdiddy/content-aggregator/pkg/types"
)

// resolver prefixes stripped during DOI canonicalization.
var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
	"doi:",
}

// NormalizeDOI canonicalizes a DOI for comparison: lowercase with any
// resolver-URL prefix removed. Empty input stays empty.
func NormalizeDOI(doi string) string {
	doi = strings.ToLower(strings.TrimSpace(doi))
	for _, p := range doiPrefixes {
		if strings.HasPrefix(doi, p) {
			doi = doi[len(p):]
			break
		}
	}
	return doi
}

func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Index is the single source of truth for "has this work been admitted".
// Entries are append-only within one run; nothing is evicted. All methods
// are safe for concurrent use: reads share a lock, the check-then-register
// path in Admit is atomic with respect to concurrent checks.
type Index struct {
	mu   sync.RWMutex
	dois map[string]struct{}
	// titles maps title key to whether any admitted record with that
	// title lacked a DOI. Records carrying a DOI only title-collide
	// against those, per the precedence policy.
	titles map[string]bool
}

// New returns an empty index.
func New() *Index {
	return &Index{
		dois:   make(map[string]struct{}),
		titles: make(map[string]bool),
	}
}

// Seed bulk-loads keys from the authoritative baseline collection before
// any later source is checked. Records missing a DOI or title contribute
// only the keys they have.
func (ix *Index) Seed(records []types.UnifiedRecord) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, r := range records {
		ix.register(r.DOI, r.Title)
	}
}

// IsDuplicate reports whether either derived key is already present.
// Pure query, no mutation.
func (ix *Index) IsDuplicate(doi, title string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.isDuplicate(doi, title)
}

// Register idempotently inserts whichever derived keys are non-empty.
func (ix *Index) Register(doi, title string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.register(doi, title)
}

// Admit performs the check-then-register sequence atomically and reports
// whether the record was admitted (true) or was a duplicate (false).
func (ix *Index) Admit(doi, title string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.isDuplicate(doi, title) {
		return false
	}
	ix.register(doi, title)
	return true
}

// Len returns the number of distinct keys held.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.dois) + len(ix.titles)
}

// isDuplicate implements the precedence policy. Caller holds a lock.
func (ix *Index) isDuplicate(doi, title string) bool {
	doi = NormalizeDOI(doi)
	if doi != "" {
		if _, ok := ix.dois[doi]; ok {
			return true
		}
	}
	tk := titleKey(title)
	if tk == "" {
		return false
	}
	priorLackedDOI, seen := ix.titles[tk]
	if !seen {
		return false
	}
	if doi == "" {
		// Incoming record lacks a DOI: any title match counts.
		return true
	}
	// Both sides would need DOIs for title equality to be ignored; only
	// collide if some prior record with this title had none.
	return priorLackedDOI
}

// register inserts derived keys. Caller holds the write lock.
func (ix *Index) register(doi, title string) {
	doi = NormalizeDOI(doi)
	if doi != "" {
		ix.dois[doi] = struct{}{}
	}
	if tk := titleKey(title); tk != "" {
		ix.titles[tk] = ix.titles[tk] || doi == ""
	}
}
