// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pdiddy/content-aggregator/internal/fetch"
	"github.com/pdiddy/content-aggregator/pkg/types"
)

// defaultSections maps content type to the section path fetched under the
// site root.
var defaultSections = map[types.ContentType]string{
	types.TypePublication: "publications",
	types.TypeBlog:        "blog",
	types.TypePress:       "press-releases",
	types.TypeNews:        "news",
	types.TypeStory:       "stories",
}

// sectionOrder fixes the processing order of sections so output is
// deterministic.
var sectionOrder = []types.ContentType{
	types.TypePublication, types.TypeBlog, types.TypePress, types.TypeNews, types.TypeStory,
}

// defaultSelectors is the built-in CSS selector set. Sites restyle; the
// set is overridable through config so a layout change stays a config
// edit.
var defaultSelectors = types.SelectorConfig{
	Item:     "article, .post, .entry-content",
	Title:    "h1 a, h2 a, h3 a, h4 a, .entry-title a",
	Date:     ".date, .entry-date, .published, time[datetime]",
	Author:   ".author, .entry-author, .post-author, .byline",
	Abstract: ".entry-summary, .excerpt, .abstract, .post-excerpt",
	Tags:     ".tags a, .entry-tags a, .post-tags a, .keywords a",
	Body:     ".entry-content, .post-content, .article-content",
	Image:    ".featured-image img, .post-thumbnail img",
	DOI:      `.doi, .publication-doi, a[href*="doi.org"]`,
}

// WebsiteAdapter harvests the organizational website's editorial sections
// (publications, blog, press, news, stories) through listing pages plus a
// detail page per item. Items are identified by their page URL.
type WebsiteAdapter struct {
	Client *fetch.Client
	Config types.WebsiteConfig
	Logger *zap.Logger
}

// NewWebsiteAdapter wires the website adapter.
func NewWebsiteAdapter(client *fetch.Client, cfg types.WebsiteConfig, logger *zap.Logger) *WebsiteAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebsiteAdapter{Client: client, Config: cfg, Logger: logger}
}

func (a *WebsiteAdapter) Name() string         { return "website" }
func (a *WebsiteAdapter) Source() types.Source { return types.SourceWebsite }

// Fetch walks each configured section in fixed order. The per-source
// limit applies across sections combined.
func (a *WebsiteAdapter) Fetch(ctx context.Context, limit int) (Result, error) {
	var res Result
	seen := make(seenSet)

	for _, ct := range sectionOrder {
		if res.full(limit) {
			break
		}
		path, ok := a.sectionPath(ct)
		if !ok {
			continue
		}
		if err := a.fetchSection(ctx, ct, path, limit, seen, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// sectionPath resolves the section path for a content type, honoring
// config overrides. A section configured to "" is disabled.
func (a *WebsiteAdapter) sectionPath(ct types.ContentType) (string, bool) {
	if len(a.Config.Sections) > 0 {
		path, ok := a.Config.Sections[string(ct)]
		return path, ok && path != ""
	}
	return defaultSections[ct], true
}

// fetchSection pages through one section (/page/N/ style) until an empty
// page.
func (a *WebsiteAdapter) fetchSection(ctx context.Context, ct types.ContentType, path string, limit int, seen seenSet, res *Result) error {
	sel := a.selectors()
	sectionURL := a.baseURL() + "/" + strings.Trim(path, "/")

	for page := 1; ; page++ {
		if res.full(limit) {
			return nil
		}
		if page > 1 {
			if err := fetch.Wait(ctx, a.requestDelay()); err != nil {
				return err
			}
		}

		pageURL := sectionURL
		if page > 1 {
			pageURL = fmt.Sprintf("%s/page/%d/", sectionURL, page)
		}
		resp, err := a.Client.Get(ctx, pageURL, nil, nil)
		if err != nil {
			var fe *fetch.Error
			// Sites 404 the first page past the end; that is exhaustion,
			// not failure.
			if errors.As(err, &fe) && fe.Status == 404 && page > 1 {
				return nil
			}
			return err
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			a.Logger.Warn("malformed listing page",
				zap.String("section", string(ct)), zap.Int("page", page), zap.Error(err))
			return nil
		}

		items := doc.Find(sel.Item)
		if items.Length() == 0 {
			return nil
		}

		var pageErr error
		items.EachWithBreak(func(_ int, item *goquery.Selection) bool {
			if res.full(limit) {
				return false
			}
			itemURL, ok := a.itemURL(item, sel)
			if !ok || !seen.add(itemURL) {
				return true
			}
			rec, err := a.fetchItem(ctx, ct, itemURL)
			if err != nil {
				if isTerminal(err) {
					pageErr = err
					return false
				}
				a.Logger.Warn("skipping unparsable item", zap.String("url", itemURL), zap.Error(err))
				return true
			}
			res.add(rec)
			return true
		})
		if pageErr != nil {
			return pageErr
		}
	}
}

// itemURL extracts the detail link from one listing entry.
func (a *WebsiteAdapter) itemURL(item *goquery.Selection, sel types.SelectorConfig) (string, bool) {
	link := item.Find(sel.Title).First()
	if link.Length() == 0 {
		return "", false
	}
	href, exists := link.Attr("href")
	if !exists || href == "" {
		return "", false
	}
	if !strings.HasPrefix(href, "http") {
		href = a.baseURL() + href
	}
	return href, true
}

// fetchItem loads a detail page and extracts the record fields.
func (a *WebsiteAdapter) fetchItem(ctx context.Context, ct types.ContentType, itemURL string) (types.UnifiedRecord, error) {
	if err := fetch.Wait(ctx, a.requestDelay()); err != nil {
		return types.UnifiedRecord{}, err
	}

	resp, err := a.Client.Get(ctx, itemURL, nil, nil)
	if err != nil {
		return types.UnifiedRecord{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return types.UnifiedRecord{}, fmt.Errorf("parsing detail page: %w", err)
	}

	sel := a.selectors()
	rec := types.UnifiedRecord{
		Title:       strings.TrimSpace(doc.Find("h1.entry-title, h1").First().Text()),
		URL:         itemURL,
		Source:      types.SourceWebsite,
		ContentType: ct,
		OriginID:    itemURL,
		Abstract:    strings.TrimSpace(doc.Find(sel.Abstract).First().Text()),
		FullText:    strings.TrimSpace(doc.Find(sel.Body).First().Text()),
	}

	if dateElem := doc.Find(sel.Date).First(); dateElem.Length() > 0 {
		raw, _ := dateElem.Attr("datetime")
		if raw == "" {
			raw = dateElem.Text()
		}
		rec.Date = parseDate(raw)
	}

	if doiElem := doc.Find(sel.DOI).First(); doiElem.Length() > 0 {
		raw, _ := doiElem.Attr("href")
		if raw == "" {
			raw = doiElem.Text()
		}
		rec.DOI = extractDOI(raw)
	}

	var authors []string
	doc.Find(sel.Author).Each(func(_ int, elem *goquery.Selection) {
		text := strings.TrimSpace(elem.Text())
		for _, prefix := range []string{"By", "by", "Author:", "Authors:"} {
			text = strings.TrimSpace(strings.TrimPrefix(text, prefix))
		}
		authors = append(authors, splitList(text, ",")...)
	})
	rec.Authors = uniqueStrings(authors)

	var tags []string
	doc.Find(sel.Tags).Each(func(_ int, elem *goquery.Selection) {
		tags = append(tags, strings.TrimSpace(elem.Text()))
	})
	rec.Keywords = uniqueStrings(tags)

	if img := doc.Find(sel.Image).First(); img.Length() > 0 {
		if src, ok := img.Attr("src"); ok && src != "" {
			if !strings.HasPrefix(src, "http") {
				src = a.baseURL() + src
			}
			rec.ImageURL = src
		}
	}

	return rec, nil
}

// selectors returns the configured selector set with defaults filled in.
func (a *WebsiteAdapter) selectors() types.SelectorConfig {
	sel := a.Config.Selectors
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&sel.Item, defaultSelectors.Item)
	fill(&sel.Title, defaultSelectors.Title)
	fill(&sel.Date, defaultSelectors.Date)
	fill(&sel.Author, defaultSelectors.Author)
	fill(&sel.Abstract, defaultSelectors.Abstract)
	fill(&sel.Tags, defaultSelectors.Tags)
	fill(&sel.Body, defaultSelectors.Body)
	fill(&sel.Image, defaultSelectors.Image)
	fill(&sel.DOI, defaultSelectors.DOI)
	return sel
}

func (a *WebsiteAdapter) baseURL() string {
	return strings.TrimSuffix(a.Config.BaseURL, "/")
}

func (a *WebsiteAdapter) requestDelay() time.Duration {
	if a.Config.RequestDelay > 0 {
		return a.Config.RequestDelay
	}
	return time.Second
}
