// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the content-aggregator
// pipeline: the unified record schema every source adapter normalizes into,
// and the configuration structs for each pipeline stage.
package types

import (
	"fmt"
	"time"
)

// Source identifies which upstream a record was harvested from.
type Source string

const (
	SourceWebsite    Source = "website"
	SourceRepository Source = "repository"
	SourceRegistry   Source = "registry"
	SourceGraphAPI   Source = "graph-api"
)

// ContentType classifies the editorial kind of a record.
type ContentType string

const (
	TypePublication ContentType = "publication"
	TypeBlog        ContentType = "blog"
	TypePress       ContentType = "press"
	TypeNews        ContentType = "news"
	TypeStory       ContentType = "story"
)

// Date is a publication date with partial precision: a bare year, a
// year-month, or a full year-month-day. Zero Month/Day mean "unknown".
type Date struct {
	Year  int        `json:"year" yaml:"year"`
	Month time.Month `json:"month,omitempty" yaml:"month,omitempty"`
	Day   int        `json:"day,omitempty" yaml:"day,omitempty"`
}

// NewDate builds a full-precision Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// IsZero reports whether no date information is present.
func (d Date) IsZero() bool { return d.Year == 0 }

// String renders the date at its available precision: "2023",
// "2023-04", or "2023-04-17". A zero date renders as "".
func (d Date) String() string {
	switch {
	case d.Year == 0:
		return ""
	case d.Month == 0:
		return fmt.Sprintf("%04d", d.Year)
	case d.Day == 0:
		return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
	default:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
	}
}

// UnifiedRecord is the canonical representation of one work, shared by
// every source adapter. Records are created once by an adapter's
// normalization step and are immutable afterwards, except for the Source
// tag which the engine may assign when provenance is attached centrally.
type UnifiedRecord struct {
	// Title is the work title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Authors lists author names in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Date is the publication date, possibly partial.
	Date Date `json:"date,omitempty" yaml:"date,omitempty"`

	// Abstract is the abstract or excerpt, possibly empty.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// DOI is the canonicalized DOI: lowercase, no resolver-URL prefix.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// URL is the landing page for the work.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Source identifies the upstream that produced this copy.
	Source Source `json:"source" yaml:"source"`

	// ContentType classifies the record (publication, blog, ...).
	ContentType ContentType `json:"content_type" yaml:"content_type"`

	// Keywords holds subject tags from the source.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// Journal is the venue name, when the source reports one.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// ExternalIDs maps identifier type to value (e.g. "orcid", "openalex").
	ExternalIDs map[string]string `json:"external_ids,omitempty" yaml:"external_ids,omitempty"`

	// Affiliations lists institution names attached to the work.
	Affiliations []string `json:"affiliations,omitempty" yaml:"affiliations,omitempty"`

	// FullText is the body text, when the source exposes it.
	FullText string `json:"full_text,omitempty" yaml:"full_text,omitempty"`

	// ImageURL is the featured image, when the source exposes one.
	ImageURL string `json:"image_url,omitempty" yaml:"image_url,omitempty"`

	// OriginID is the source-specific opaque identifier (repository
	// handle, registry put-code, graph-API work ID, page URL).
	OriginID string `json:"origin_id,omitempty" yaml:"origin_id,omitempty"`
}

// HasIdentity reports whether the record carries enough information to
// derive an identity key. Records failing this are rejected at the
// adapter boundary and never reach the index.
func (r UnifiedRecord) HasIdentity() bool {
	return r.Title != "" || r.DOI != ""
}
