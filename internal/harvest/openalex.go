// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/content-aggregator/internal/dedupe"
	"github.com/pdiddy/content-aggregator/internal/fetch"
	"github.com/pdiddy/content-aggregator/pkg/types"
)

const (
	defaultGraphBaseURL  = "https://api.openalex.org"
	defaultGraphPageSize = 25
	maxGraphPageSize     = 200
)

// Researcher is one roster entry the baseline source resolves works for.
type Researcher struct {
	FirstName string
	LastName  string
}

// DisplayName returns "First Last" for search queries and logs.
func (r Researcher) DisplayName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// GraphAdapter is the baseline source: it resolves each roster researcher
// against the scholarly graph API and pages through their works. Its
// output seeds the identity index before any other source is checked.
type GraphAdapter struct {
	Client *fetch.Client
	Config types.GraphConfig
	Roster []Researcher
	Logger *zap.Logger
}

// NewGraphAdapter wires the baseline adapter. A nil logger is replaced
// with a no-op one.
func NewGraphAdapter(client *fetch.Client, cfg types.GraphConfig, roster []Researcher, logger *zap.Logger) *GraphAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphAdapter{Client: client, Config: cfg, Roster: roster, Logger: logger}
}

func (a *GraphAdapter) Name() string         { return "openalex" }
func (a *GraphAdapter) Source() types.Source { return types.SourceGraphAPI }

// Fetch resolves every roster researcher and pages through their works.
// An unresolvable researcher is skipped with a logged reason; it never
// aborts the batch. A terminal request failure returns what was
// accumulated together with the error.
func (a *GraphAdapter) Fetch(ctx context.Context, limit int) (Result, error) {
	var res Result
	seen := make(seenSet)

	for i, researcher := range a.Roster {
		if res.full(limit) {
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if i > 0 {
			if err := fetch.Wait(ctx, a.requestDelay()); err != nil {
				return res, err
			}
		}

		authorID, authorORCID, err := a.resolveAuthor(ctx, researcher)
		if err != nil {
			if isTerminal(err) {
				return res, err
			}
			a.Logger.Warn("skipping unresolvable researcher",
				zap.String("name", researcher.DisplayName()), zap.Error(err))
			continue
		}
		if authorID == "" {
			a.Logger.Warn("no graph author found for researcher",
				zap.String("name", researcher.DisplayName()))
			continue
		}

		if err := a.fetchWorks(ctx, authorID, authorORCID, limit, seen, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// resolveAuthor finds the graph author ID (and registry ID, when the
// profile carries one) for a researcher name.
func (a *GraphAdapter) resolveAuthor(ctx context.Context, r Researcher) (id, orcid string, err error) {
	params := url.Values{
		"search":   {r.DisplayName()},
		"per-page": {"1"},
	}
	if a.Config.Email != "" {
		params.Set("mailto", a.Config.Email)
	}

	resp, err := a.Client.Get(ctx, a.baseURL()+"/authors", params, nil)
	if err != nil {
		return "", "", err
	}

	var ar graphAuthorResponse
	if err := json.Unmarshal(resp.Body, &ar); err != nil {
		return "", "", fmt.Errorf("parsing author response: %w", err)
	}
	if len(ar.Results) == 0 {
		return "", "", nil
	}

	author := ar.Results[0]
	orcid = strings.TrimPrefix(author.ORCID, "https://orcid.org/")
	return author.ID, orcid, nil
}

// fetchWorks pages through one author's works until an empty page, the
// limit, or exhaustion of the upstream cursor.
func (a *GraphAdapter) fetchWorks(ctx context.Context, authorID, authorORCID string, limit int, seen seenSet, res *Result) error {
	pageSize := a.Config.PageSize
	if pageSize <= 0 {
		pageSize = defaultGraphPageSize
	}
	if pageSize > maxGraphPageSize {
		pageSize = maxGraphPageSize
	}

	for page := 1; ; page++ {
		if res.full(limit) {
			return nil
		}
		if page > 1 {
			if err := fetch.Wait(ctx, a.requestDelay()); err != nil {
				return err
			}
		}

		params := url.Values{
			"filter":   {"authorships.author.id:" + authorID},
			"per-page": {fmt.Sprintf("%d", pageSize)},
			"page":     {fmt.Sprintf("%d", page)},
		}
		if a.Config.Email != "" {
			params.Set("mailto", a.Config.Email)
		}

		resp, err := a.Client.Get(ctx, a.baseURL()+"/works", params, nil)
		if err != nil {
			return err
		}

		var wr graphWorksResponse
		if err := json.Unmarshal(resp.Body, &wr); err != nil {
			// Malformed page: skip this author's remaining pages, keep
			// what other researchers produced.
			a.Logger.Warn("malformed works page",
				zap.String("author", authorID), zap.Int("page", page), zap.Error(err))
			return nil
		}
		if len(wr.Results) == 0 {
			return nil
		}

		for _, work := range wr.Results {
			if res.full(limit) {
				return nil
			}
			if !seen.add(work.ID) {
				continue
			}
			res.add(a.normalize(work, authorORCID))
		}
	}
}

// normalize converts one graph work into the unified schema.
func (a *GraphAdapter) normalize(work graphWork, authorORCID string) types.UnifiedRecord {
	title := work.Title
	if title == "" {
		title = work.DisplayName
	}

	rec := types.UnifiedRecord{
		Title:       strings.TrimSpace(title),
		Abstract:    reconstructAbstract(work.AbstractInvertedIndex),
		DOI:         dedupe.NormalizeDOI(work.DOI),
		Source:      types.SourceGraphAPI,
		ContentType: types.TypePublication,
		Journal:     work.PrimaryLocation.Source.DisplayName,
		OriginID:    work.ID,
		ExternalIDs: map[string]string{},
	}

	if work.ID != "" {
		rec.ExternalIDs["openalex"] = work.ID
	}
	if authorORCID != "" {
		rec.ExternalIDs["orcid"] = authorORCID
	}

	if work.DOI != "" {
		rec.URL = work.DOI // resolver URL as returned upstream
	} else {
		rec.URL = work.ID
	}

	if work.PublicationDate != "" {
		rec.Date = parseDate(work.PublicationDate)
	} else if work.PublicationYear > 0 {
		rec.Date = types.Date{Year: work.PublicationYear}
	}

	var affiliations []string
	for _, authorship := range work.Authorships {
		if name := authorship.Author.DisplayName; name != "" {
			rec.Authors = append(rec.Authors, name)
		}
		for _, inst := range authorship.Institutions {
			if inst.DisplayName != "" {
				affiliations = append(affiliations, inst.DisplayName)
			}
		}
	}
	rec.Affiliations = uniqueStrings(affiliations)

	for _, kw := range work.Keywords {
		if kw.DisplayName != "" {
			rec.Keywords = append(rec.Keywords, kw.DisplayName)
		}
	}
	rec.Keywords = uniqueStrings(rec.Keywords)

	return rec
}

func (a *GraphAdapter) baseURL() string {
	if a.Config.BaseURL != "" {
		return strings.TrimSuffix(a.Config.BaseURL, "/")
	}
	return defaultGraphBaseURL
}

func (a *GraphAdapter) requestDelay() time.Duration {
	if a.Config.RequestDelay > 0 {
		return a.Config.RequestDelay
	}
	return time.Second
}

// reconstructAbstract converts the graph API's abstract inverted index
// back to plain text. The index maps each word to the positions where it
// appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// isTerminal reports whether err ends the adapter's contribution: a
// terminal fetch failure or caller cancellation. Parse errors are not
// terminal; the adapter skips the item and continues.
func isTerminal(err error) bool {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return fe.Terminal()
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Graph API JSON structures.
type graphAuthorResponse struct {
	Results []graphAuthor `json:"results"`
}

type graphAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ORCID       string `json:"orcid"`
}

type graphWorksResponse struct {
	Meta    graphMeta   `json:"meta"`
	Results []graphWork `json:"results"`
}

type graphMeta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

type graphWork struct {
	ID                    string            `json:"id"`
	Title                 string            `json:"title"`
	DisplayName           string            `json:"display_name"`
	DOI                   string            `json:"doi"`
	PublicationDate       string            `json:"publication_date"`
	PublicationYear       int               `json:"publication_year"`
	Authorships           []graphAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int  `json:"abstract_inverted_index"`
	PrimaryLocation       graphLocation     `json:"primary_location"`
	Keywords              []graphKeyword    `json:"keywords"`
}

type graphAuthorship struct {
	Author       graphAuthor        `json:"author"`
	Institutions []graphInstitution `json:"institutions"`
}

type graphInstitution struct {
	DisplayName string `json:"display_name"`
}

type graphLocation struct {
	Source graphVenue `json:"source"`
}

type graphVenue struct {
	DisplayName string `json:"display_name"`
}

type graphKeyword struct {
	DisplayName string `json:"display_name"`
}
