// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pdiddy/content-aggregator/internal/fetch"
	"github.com/pdiddy/content-aggregator/pkg/types"
)

const defaultRepositoryPageSize = 20

// RepositoryAdapter browses an institutional DSpace-style repository over
// HTML: a paginated browse listing, then one detail page per item whose
// metadata table carries the record fields. Items are identified by their
// repository handle.
type RepositoryAdapter struct {
	Client *fetch.Client
	Config types.RepositoryConfig
	Logger *zap.Logger
}

// NewRepositoryAdapter wires the repository adapter.
func NewRepositoryAdapter(client *fetch.Client, cfg types.RepositoryConfig, logger *zap.Logger) *RepositoryAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepositoryAdapter{Client: client, Config: cfg, Logger: logger}
}

func (a *RepositoryAdapter) Name() string         { return "knowhub" }
func (a *RepositoryAdapter) Source() types.Source { return types.SourceRepository }

// Fetch pages through the browse listing by offset until a page yields no
// new items or the limit is reached.
func (a *RepositoryAdapter) Fetch(ctx context.Context, limit int) (Result, error) {
	var res Result
	seen := make(seenSet)

	pageSize := a.Config.PageSize
	if pageSize <= 0 {
		pageSize = defaultRepositoryPageSize
	}

	for offset := 0; ; offset += pageSize {
		if res.full(limit) {
			break
		}
		if offset > 0 {
			if err := fetch.Wait(ctx, a.requestDelay()); err != nil {
				return res, err
			}
		}

		params := url.Values{
			"offset":  {fmt.Sprintf("%d", offset)},
			"rpp":     {fmt.Sprintf("%d", pageSize)},
			"sort_by": {"dc.date.issued_dt"},
			"order":   {"desc"},
		}
		resp, err := a.Client.Get(ctx, a.baseURL()+"/browse", params, nil)
		if err != nil {
			return res, err
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			a.Logger.Warn("malformed browse page", zap.Int("offset", offset), zap.Error(err))
			break
		}

		items := doc.Find("div.artifact-description, div.ds-artifact-item")
		if items.Length() == 0 {
			break
		}

		newItems := 0
		var pageErr error
		items.EachWithBreak(func(_ int, item *goquery.Selection) bool {
			if res.full(limit) {
				return false
			}
			handle, detailURL, ok := a.itemLink(item)
			if !ok || !seen.add(handle) {
				return true
			}
			rec, err := a.fetchItem(ctx, handle, detailURL)
			if err != nil {
				if isTerminal(err) {
					pageErr = err
					return false
				}
				a.Logger.Warn("skipping unparsable item", zap.String("handle", handle), zap.Error(err))
				return true
			}
			if res.add(rec) {
				newItems++
			}
			return true
		})
		if pageErr != nil {
			return res, pageErr
		}

		// A page with no new items means the pagination cursor stopped
		// advancing; treat the source as exhausted.
		if newItems == 0 {
			break
		}
	}
	return res, nil
}

// itemLink extracts the handle and detail URL from one listing entry.
func (a *RepositoryAdapter) itemLink(item *goquery.Selection) (handle, detailURL string, ok bool) {
	link := item.Find("h4 a").First()
	if link.Length() == 0 {
		return "", "", false
	}
	href, exists := link.Attr("href")
	if !exists || href == "" {
		return "", "", false
	}
	if !strings.HasPrefix(href, "http") {
		href = a.baseURL() + href
	}
	if idx := strings.Index(href, "handle/"); idx >= 0 {
		handle = href[idx+len("handle/"):]
	}
	return handle, href, handle != ""
}

// fetchItem loads one item's detail page and extracts its metadata table.
func (a *RepositoryAdapter) fetchItem(ctx context.Context, handle, detailURL string) (types.UnifiedRecord, error) {
	if err := fetch.Wait(ctx, a.requestDelay()); err != nil {
		return types.UnifiedRecord{}, err
	}

	resp, err := a.Client.Get(ctx, detailURL, nil, nil)
	if err != nil {
		return types.UnifiedRecord{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return types.UnifiedRecord{}, fmt.Errorf("parsing detail page: %w", err)
	}

	rec := types.UnifiedRecord{
		Title:       strings.TrimSpace(doc.Find("h2.page-header, h1").First().Text()),
		URL:         detailURL,
		Source:      types.SourceRepository,
		ContentType: types.TypePublication,
		OriginID:    handle,
		ExternalIDs: map[string]string{"handle": handle},
	}

	var authors, subjects []string
	doc.Find("table.detailtable tr, div.ds-table-responsive table tr").Each(func(_ int, row *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(row.Find("td.label-cell, td.label, th.label-cell").First().Text()))
		value := strings.TrimSpace(row.Find("td.word-break, td:not(.label-cell)").Last().Text())
		if label == "" || value == "" {
			return
		}

		switch {
		case strings.Contains(label, "author") || strings.Contains(label, "creator"):
			authors = append(authors, splitList(value, ";")...)
		case strings.Contains(label, "issued") || strings.Contains(label, "date") || strings.Contains(label, "published"):
			if rec.Date.IsZero() {
				rec.Date = parseDate(value)
			}
		case strings.Contains(label, "abstract") || strings.Contains(label, "description"):
			if rec.Abstract == "" {
				rec.Abstract = value
			}
		case strings.Contains(label, "subject") || strings.Contains(label, "keyword"):
			subjects = append(subjects, splitList(value, ";")...)
		case strings.Contains(label, "doi"):
			if rec.DOI == "" {
				rec.DOI = extractDOI(value)
			}
		case strings.Contains(label, "journal") || strings.Contains(label, "published in"):
			if rec.Journal == "" {
				rec.Journal = value
			}
		case strings.Contains(label, "title"):
			if rec.Title == "" {
				rec.Title = value
			}
		}
	})

	rec.Authors = uniqueStrings(authors)
	rec.Keywords = uniqueStrings(subjects)
	return rec, nil
}

func (a *RepositoryAdapter) baseURL() string {
	return strings.TrimSuffix(a.Config.BaseURL, "/")
}

func (a *RepositoryAdapter) requestDelay() time.Duration {
	if a.Config.RequestDelay > 0 {
		return a.Config.RequestDelay
	}
	return time.Second
}
