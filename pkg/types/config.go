// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "content-aggregator/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetryConfig holds the fetch orchestrator's retry policy, shared by all
// adapters so retry semantics stay uniform.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per request (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BaseDelay is the backoff base; the wait doubles each attempt
	// (default 2s). Rate-limit hints from the upstream take precedence
	// when longer.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`
}

// GraphConfig holds settings for the baseline scholarly graph source.
type GraphConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the graph API root (default "https://api.openalex.org").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Email is sent as the mailto parameter for polite pool access.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	// PageSize is the per-page result count (default 25, max 200).
	PageSize int `json:"page_size" yaml:"page_size"`

	// RequestDelay is the fixed politeness delay between page requests
	// (default 1s).
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay"`
}

// RegistryConfig holds settings for the researcher-identity registry source.
type RegistryConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the registry API root (default "https://pub.orcid.org/v3.0").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// TokenURL is the OAuth client-credentials token endpoint.
	TokenURL string `json:"token_url" yaml:"token_url"`

	// ClientID and ClientSecret authenticate the read-public scope.
	ClientID     string `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty" yaml:"client_secret,omitempty"`

	// MaxResearchers caps how many registry IDs from the baseline output
	// are processed (0 = all).
	MaxResearchers int `json:"max_researchers" yaml:"max_researchers"`

	// RequestDelay is the fixed politeness delay between requests.
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay"`
}

// RepositoryConfig holds settings for the institutional repository source.
type RepositoryConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the repository root (e.g. "https://knowhub.example.org").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// PageSize is the rpp browse parameter (default 20).
	PageSize int `json:"page_size" yaml:"page_size"`

	// RequestDelay is the fixed politeness delay between page requests.
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay"`
}

// WebsiteConfig holds settings for the organizational website source.
type WebsiteConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the site root (e.g. "https://www.example.org").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Sections maps content type to the section path under BaseURL.
	// Empty means the default five sections (publications, blog,
	// press-releases, news, stories).
	Sections map[string]string `json:"sections,omitempty" yaml:"sections,omitempty"`

	// Selectors overrides the CSS selector set used to extract records,
	// so a site layout change is a config edit rather than a code edit.
	Selectors SelectorConfig `json:"selectors,omitempty" yaml:"selectors,omitempty"`

	// RequestDelay is the fixed politeness delay between page requests.
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay"`
}

// SelectorConfig names the CSS selectors the website adapter uses. Zero
// values fall back to the built-in defaults.
type SelectorConfig struct {
	Item     string `json:"item,omitempty" yaml:"item,omitempty"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Date     string `json:"date,omitempty" yaml:"date,omitempty"`
	Author   string `json:"author,omitempty" yaml:"author,omitempty"`
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Tags     string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Body     string `json:"body,omitempty" yaml:"body,omitempty"`
	Image    string `json:"image,omitempty" yaml:"image,omitempty"`
	DOI      string `json:"doi,omitempty" yaml:"doi,omitempty"`
}

// ExportConfig holds settings for the export sink.
type ExportConfig struct {
	// OutputDir is the directory for per-source and merged CSV files
	// (default "output").
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// CatalogPath is the SQLite run catalog location; empty disables
	// catalog persistence.
	CatalogPath string `json:"catalog_path,omitempty" yaml:"catalog_path,omitempty"`
}

// PipelineConfig groups all stage configurations for one aggregation run.
type PipelineConfig struct {
	// RosterPath is the seed CSV of researcher names for the baseline source.
	RosterPath string `json:"roster_path" yaml:"roster_path"`

	// Limit caps records fetched per source; 0 means unbounded.
	Limit int `json:"limit" yaml:"limit"`

	Retry      RetryConfig      `json:"retry" yaml:"retry"`
	Graph      GraphConfig      `json:"graph" yaml:"graph"`
	Registry   RegistryConfig   `json:"registry" yaml:"registry"`
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Website    WebsiteConfig    `json:"website" yaml:"website"`
	Export     ExportConfig     `json:"export" yaml:"export"`
}
