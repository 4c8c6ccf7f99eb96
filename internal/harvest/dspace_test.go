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

func browsePage(handles ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range handles {
		fmt.Fprintf(&b, `<div class="artifact-description"><h4><a href="/handle/%s">Item %s</a></h4></div>`, h, h)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func detailPage(title string) string {
	return fmt.Sprintf(`<html><body>
<h2 class="page-header">%s</h2>
<table class="detailtable">
<tr><td class="label-cell">Authors</td><td class="word-break">Jane Researcher; John Colleague</td></tr>
<tr><td class="label-cell">Date Issued</td><td class="word-break">2020-11</td></tr>
<tr><td class="label-cell">Abstract</td><td class="word-break">A repository abstract.</td></tr>
<tr><td class="label-cell">Subject</td><td class="word-break">health; population</td></tr>
<tr><td class="label-cell">DOI</td><td class="word-break">https://doi.org/10.5/REPO</td></tr>
<tr><td class="label-cell">Journal</td><td class="word-break">Repo Journal</td></tr>
</table>
</body></html>`, title)
}

// fakeRepository serves browse pages keyed by offset, and a detail page
// per handle.
func fakeRepository(pages map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/handle/") {
			handle := strings.TrimPrefix(r.URL.Path, "/handle/")
			fmt.Fprint(w, detailPage("Item "+handle))
			return
		}
		if r.URL.Path == "/browse" {
			fmt.Fprint(w, pages[r.URL.Query().Get("offset")])
			return
		}
		http.NotFound(w, r)
	}))
}

func repositoryAdapter(ts *httptest.Server) *RepositoryAdapter {
	return NewRepositoryAdapter(testFetchClient(ts), types.RepositoryConfig{
		BaseURL:      ts.URL,
		PageSize:     2,
		RequestDelay: time.Millisecond,
	}, nil)
}

func TestRepositoryFetchParsesMetadataTable(t *testing.T) {
	ts := fakeRepository(map[string]string{
		"0": browsePage("123/1"),
		"2": browsePage(),
	})
	defer ts.Close()

	res, err := repositoryAdapter(ts).Fetch(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, "Item 123/1", rec.Title)
	assert.Equal(t, []string{"Jane Researcher", "John Colleague"}, rec.Authors)
	assert.Equal(t, types.Date{Year: 2020, Month: time.November}, rec.Date)
	assert.Equal(t, "A repository abstract.", rec.Abstract)
	assert.Equal(t, []string{"health", "population"}, rec.Keywords)
	assert.Equal(t, "10.5/repo", rec.DOI)
	assert.Equal(t, "Repo Journal", rec.Journal)
	assert.Equal(t, types.SourceRepository, rec.Source)
	assert.Equal(t, "123/1", rec.OriginID)
	assert.Equal(t, "123/1", rec.ExternalIDs["handle"])
}

func TestRepositoryFetchStopsOnEmptyPage(t *testing.T) {
	ts := fakeRepository(map[string]string{
		"0": browsePage("123/1", "123/2"),
		"2": browsePage("123/3"),
		// offset 4 serves the zero value: no items means exhaustion, not error.
	})
	defer ts.Close()

	res, err := repositoryAdapter(ts).Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
}

func TestRepositoryFetchStopsWhenNoNewHandles(t *testing.T) {
	// Both pages serve the same handles: the cursor is stuck, so the
	// adapter must stop rather than loop.
	same := browsePage("123/1", "123/2")
	ts := fakeRepository(map[string]string{"0": same, "2": same, "4": same})
	defer ts.Close()

	res, err := repositoryAdapter(ts).Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
}

func TestRepositoryFetchHonorsLimit(t *testing.T) {
	ts := fakeRepository(map[string]string{
		"0": browsePage("123/1", "123/2"),
		"2": browsePage("123/3", "123/4"),
	})
	defer ts.Close()

	res, err := repositoryAdapter(ts).Fetch(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
}

func TestRepositoryFetchReturnsPartialOnTerminalFailure(t *testing.T) {
	var failing bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/handle/") {
			fmt.Fprint(w, detailPage("Item A"))
			return
		}
		if r.URL.Query().Get("offset") == "0" {
			fmt.Fprint(w, browsePage("123/1", "123/2"))
			failing = true
			return
		}
		if failing {
			w.WriteHeader(http.StatusForbidden)
			return
		}
	}))
	defer ts.Close()

	res, err := repositoryAdapter(ts).Fetch(context.Background(), 0)
	require.Error(t, err)
	// Page one's records survive the page-two failure.
	assert.Len(t, res.Records, 2)
}
