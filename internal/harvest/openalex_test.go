// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/content-aggregator/pkg/types"
)

// fakeGraph serves a minimal graph API: one author per roster name and a
// fixed set of works pages.
func fakeGraph(t *testing.T, pages [][]map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/authors":
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{{
					"id":           "https://openalex.org/A1",
					"display_name": r.URL.Query().Get("search"),
					"orcid":        "https://orcid.org/0000-0001-2345-6789",
				}},
			})
		case "/works":
			page := 1
			fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
			results := []map[string]any{}
			if page <= len(pages) {
				results = pages[page-1]
			}
			json.NewEncoder(w).Encode(map[string]any{
				"meta":    map[string]any{"count": 0, "page": page},
				"results": results,
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func graphAdapter(ts *httptest.Server, roster []Researcher) *GraphAdapter {
	return NewGraphAdapter(testFetchClient(ts), types.GraphConfig{
		BaseURL:      ts.URL,
		PageSize:     2,
		RequestDelay: time.Millisecond,
	}, roster, nil)
}

func work(id, title, doi string) map[string]any {
	return map[string]any{
		"id":               id,
		"title":            title,
		"doi":              doi,
		"publication_date": "2022-06-15",
		"authorships": []map[string]any{{
			"author":       map[string]any{"display_name": "Jane Researcher"},
			"institutions": []map[string]any{{"display_name": "Example Institute"}},
		}},
	}
}

func TestGraphFetchPaginatesUntilEmptyPage(t *testing.T) {
	ts := fakeGraph(t, [][]map[string]any{
		{work("W1", "Paper One", "https://doi.org/10.1/ONE"), work("W2", "Paper Two", "")},
		{work("W3", "Paper Three", "")},
		{}, // page 3 empty: source exhausted
	})
	defer ts.Close()

	res, err := graphAdapter(ts, []Researcher{{FirstName: "Jane", LastName: "Researcher"}}).
		Fetch(context.Background(), 0)
	require.NoError(t, err)

	require.Len(t, res.Records, 3)
	assert.Equal(t, "Paper One", res.Records[0].Title)
	assert.Equal(t, "10.1/one", res.Records[0].DOI, "DOI canonicalized")
	assert.Equal(t, types.SourceGraphAPI, res.Records[0].Source)
	assert.Equal(t, "0000-0001-2345-6789", res.Records[0].ExternalIDs["orcid"])
	assert.Equal(t, []string{"Example Institute"}, res.Records[0].Affiliations)
	assert.Equal(t, types.Date{Year: 2022, Month: time.June, Day: 15}, res.Records[0].Date)
}

func TestGraphFetchHonorsLimit(t *testing.T) {
	ts := fakeGraph(t, [][]map[string]any{
		{work("W1", "One", ""), work("W2", "Two", "")},
		{work("W3", "Three", ""), work("W4", "Four", "")},
	})
	defer ts.Close()

	res, err := graphAdapter(ts, []Researcher{{FirstName: "Jane", LastName: "Researcher"}}).
		Fetch(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
}

func TestGraphFetchDeduplicatesByWorkID(t *testing.T) {
	// The same work appears on both pages, as can happen when the
	// upstream ordering shifts between requests.
	ts := fakeGraph(t, [][]map[string]any{
		{work("W1", "One", ""), work("W2", "Two", "")},
		{work("W2", "Two again", ""), work("W3", "Three", "")},
		{},
	})
	defer ts.Close()

	res, err := graphAdapter(ts, []Researcher{{FirstName: "Jane", LastName: "Researcher"}}).
		Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
}

func TestGraphFetchCountsInvalidRecords(t *testing.T) {
	ts := fakeGraph(t, [][]map[string]any{
		{work("W1", "", ""), work("W2", "Valid", "")},
		{},
	})
	defer ts.Close()

	res, err := graphAdapter(ts, []Researcher{{FirstName: "Jane", LastName: "Researcher"}}).
		Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
	assert.Equal(t, 1, res.Invalid)
}

func TestGraphFetchFatalOnAuthFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	_, err := graphAdapter(ts, []Researcher{{FirstName: "Jane", LastName: "Researcher"}}).
		Fetch(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, isTerminal(err))
}

func TestReconstructAbstract(t *testing.T) {
	inverted := map[string][]int{
		"systems": {1},
		"Health":  {0},
		"in":      {2},
		"crisis":  {3},
	}
	assert.Equal(t, "Health systems in crisis", reconstructAbstract(inverted))
	assert.Equal(t, "", reconstructAbstract(nil))
}
