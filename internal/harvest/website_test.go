// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/content-aggregator/pkg/types"
)

func listingPage(slugs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, s := range slugs {
		fmt.Fprintf(&b, `<article><h2 class="entry-title"><a href="/%s/">%s</a></h2></article>`, s, s)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func postPage(title string) string {
	return fmt.Sprintf(`<html><body>
<h1 class="entry-title">%s</h1>
<time datetime="2024-02-10" class="entry-date">February 10, 2024</time>
<div class="byline">By Jane Researcher, John Colleague</div>
<div class="entry-summary">A short summary.</div>
<div class="entry-content">The full body of the post.</div>
<div class="post-tags"><a>health</a><a>policy</a></div>
<div class="post-thumbnail"><img src="/img/cover.png"></div>
</body></html>`, title)
}

// fakeWebsite serves one blog section with the given listing pages and a
// detail page per slug.
func fakeWebsite(pages map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if html, ok := pages[r.URL.Path]; ok {
			fmt.Fprint(w, html)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/post-") {
			fmt.Fprint(w, postPage(strings.Trim(r.URL.Path, "/")))
			return
		}
		http.NotFound(w, r)
	}))
}

func websiteAdapter(ts *httptest.Server) *WebsiteAdapter {
	return NewWebsiteAdapter(testFetchClient(ts), types.WebsiteConfig{
		BaseURL:      ts.URL,
		Sections:     map[string]string{"blog": "blog"},
		RequestDelay: time.Millisecond,
	}, nil)
}

func TestWebsiteFetchExtractsDetailFields(t *testing.T) {
	ts := fakeWebsite(map[string]string{
		"/blog":         listingPage("post-one"),
		"/blog/page/2/": listingPage(),
	})
	defer ts.Close()

	res, err := websiteAdapter(ts).Fetch(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, "post-one", rec.Title)
	assert.Equal(t, types.SourceWebsite, rec.Source)
	assert.Equal(t, types.TypeBlog, rec.ContentType)
	assert.Equal(t, ts.URL+"/post-one/", rec.URL)
	assert.Equal(t, rec.URL, rec.OriginID)
	assert.Equal(t, types.Date{Year: 2024, Month: time.February, Day: 10}, rec.Date)
	assert.Equal(t, []string{"Jane Researcher", "John Colleague"}, rec.Authors)
	assert.Equal(t, "A short summary.", rec.Abstract)
	assert.Equal(t, "The full body of the post.", rec.FullText)
	assert.Equal(t, []string{"health", "policy"}, rec.Keywords)
	assert.Equal(t, ts.URL+"/img/cover.png", rec.ImageURL)
}

func TestWebsiteFetchTreatsTrailing404AsExhaustion(t *testing.T) {
	// Page 2 is a 404; the section simply ended.
	ts := fakeWebsite(map[string]string{
		"/blog": listingPage("post-one", "post-two"),
	})
	defer ts.Close()

	res, err := websiteAdapter(ts).Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
}

func TestWebsiteFetchPaginatesSection(t *testing.T) {
	ts := fakeWebsite(map[string]string{
		"/blog":         listingPage("post-one", "post-two"),
		"/blog/page/2/": listingPage("post-three"),
		"/blog/page/3/": listingPage(),
	})
	defer ts.Close()

	res, err := websiteAdapter(ts).Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
}

func TestWebsiteFetchDeduplicatesByURL(t *testing.T) {
	// A sticky post repeats on page 2; it must only be harvested once.
	ts := fakeWebsite(map[string]string{
		"/blog":         listingPage("post-one", "post-two"),
		"/blog/page/2/": listingPage("post-one", "post-three"),
		"/blog/page/3/": listingPage(),
	})
	defer ts.Close()

	res, err := websiteAdapter(ts).Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
}

func TestWebsiteFetchHonorsLimitAcrossSections(t *testing.T) {
	ts := fakeWebsite(map[string]string{
		"/blog":         listingPage("post-one", "post-two"),
		"/news":         listingPage("post-three", "post-four"),
		"/news/page/2/": listingPage(),
	})
	defer ts.Close()

	a := websiteAdapter(ts)
	a.Config.Sections = map[string]string{"blog": "blog", "news": "news"}

	res, err := a.Fetch(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
}

func TestWebsiteFetchSkipsDisabledSections(t *testing.T) {
	ts := fakeWebsite(map[string]string{
		"/blog": listingPage("post-one"),
	})
	defer ts.Close()

	a := websiteAdapter(ts)
	a.Config.Sections = map[string]string{"blog": ""}

	res, err := a.Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestWebsiteFetchFirstPage404IsFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer ts.Close()

	_, err := websiteAdapter(ts).Fetch(context.Background(), 0)
	require.Error(t, err)
}
