// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/content-aggregator/internal/fetch"
	"github.com/pdiddy/content-aggregator/pkg/types"
)

const (
	defaultRegistryBaseURL  = "https://pub.orcid.org/v3.0"
	defaultRegistryTokenURL = "https://orcid.org/oauth/token"
)

// ErrNoCredentials is returned when the registry adapter runs without a
// client ID/secret pair. The engine treats it as that source failing,
// never as a pipeline abort.
var ErrNoCredentials = fmt.Errorf("registry credentials not configured")

// RegistryAdapter harvests works from the researcher-identity registry.
// It does not know its researcher IDs up front: the engine hands it the
// baseline output and the adapter collects the registry IDs attached to
// those records.
type RegistryAdapter struct {
	Client *fetch.Client
	Config types.RegistryConfig
	Logger *zap.Logger

	ids   []string
	token string
}

// NewRegistryAdapter wires the registry adapter.
func NewRegistryAdapter(client *fetch.Client, cfg types.RegistryConfig, logger *zap.Logger) *RegistryAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryAdapter{Client: client, Config: cfg, Logger: logger}
}

func (a *RegistryAdapter) Name() string         { return "orcid" }
func (a *RegistryAdapter) Source() types.Source { return types.SourceRegistry }

// ConsumeBaseline collects the distinct registry IDs present in the
// baseline records' external identifiers, capped by MaxResearchers.
func (a *RegistryAdapter) ConsumeBaseline(records []types.UnifiedRecord) {
	seen := make(map[string]struct{})
	for _, r := range records {
		id := r.ExternalIDs["orcid"]
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		a.ids = append(a.ids, id)
		if a.Config.MaxResearchers > 0 && len(a.ids) >= a.Config.MaxResearchers {
			break
		}
	}
	a.Logger.Info("registry IDs discovered from baseline", zap.Int("count", len(a.ids)))
}

// Fetch authenticates, then walks each researcher's works: the summary
// listing yields identity fields, a per-work detail request fills in
// contributors, keywords, and the abstract. One researcher failing never
// aborts the rest.
func (a *RegistryAdapter) Fetch(ctx context.Context, limit int) (Result, error) {
	var res Result
	if a.Config.ClientID == "" || a.Config.ClientSecret == "" {
		return res, ErrNoCredentials
	}
	if err := a.authenticate(ctx); err != nil {
		return res, err
	}

	seen := make(seenSet)
	for i, id := range a.ids {
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

		if err := a.fetchResearcherWorks(ctx, id, limit, seen, &res); err != nil {
			if isTerminal(err) {
				return res, err
			}
			a.Logger.Warn("skipping registry researcher", zap.String("id", id), zap.Error(err))
		}
	}
	return res, nil
}

// authenticate performs the client-credentials exchange for read-public
// scope. An auth failure is fatal for this source.
func (a *RegistryAdapter) authenticate(ctx context.Context) error {
	form := url.Values{
		"client_id":     {a.Config.ClientID},
		"client_secret": {a.Config.ClientSecret},
		"grant_type":    {"client_credentials"},
		"scope":         {"/read-public"},
	}
	header := http.Header{"Accept": {"application/json"}}

	resp, err := a.Client.PostForm(ctx, a.tokenURL(), form, header)
	if err != nil {
		return fmt.Errorf("registry token exchange: %w", err)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body, &tok); err != nil {
		return fmt.Errorf("parsing token response: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("registry token response missing access_token")
	}
	a.token = tok.AccessToken
	return nil
}

func (a *RegistryAdapter) header() http.Header {
	return http.Header{
		"Accept":        {"application/json"},
		"Authorization": {"Bearer " + a.token},
	}
}

// fetchResearcherWorks lists one researcher's work summaries and enriches
// each through the detail endpoint.
func (a *RegistryAdapter) fetchResearcherWorks(ctx context.Context, id string, limit int, seen seenSet, res *Result) error {
	resp, err := a.Client.Get(ctx, a.baseURL()+"/"+id+"/works", nil, a.header())
	if err != nil {
		return err
	}

	var works registryWorksResponse
	if err := json.Unmarshal(resp.Body, &works); err != nil {
		return fmt.Errorf("parsing works listing: %w", err)
	}

	for _, group := range works.Groups {
		if res.full(limit) {
			return nil
		}
		if len(group.WorkSummaries) == 0 {
			continue
		}
		summary := group.WorkSummaries[0]
		originID := fmt.Sprintf("%s/%d", id, summary.PutCode)
		if !seen.add(originID) {
			continue
		}

		if err := fetch.Wait(ctx, a.requestDelay()); err != nil {
			return err
		}

		detail, err := a.fetchWorkDetail(ctx, id, summary.PutCode)
		if err != nil {
			if isTerminal(err) {
				return err
			}
			// Parse-level failure on one work: summary fields alone.
			a.Logger.Warn("work detail unavailable",
				zap.String("origin", originID), zap.Error(err))
			detail = registryWorkDetail{}
		}

		res.add(a.normalize(summary, detail, id, originID))
	}
	return nil
}

func (a *RegistryAdapter) fetchWorkDetail(ctx context.Context, id string, putCode int64) (registryWorkDetail, error) {
	var detail registryWorkDetail
	resp, err := a.Client.Get(ctx, fmt.Sprintf("%s/%s/work/%d", a.baseURL(), id, putCode), nil, a.header())
	if err != nil {
		return detail, err
	}
	if err := json.Unmarshal(resp.Body, &detail); err != nil {
		return detail, fmt.Errorf("parsing work detail: %w", err)
	}
	return detail, nil
}

// normalize converts a registry work summary plus detail into the
// unified schema.
func (a *RegistryAdapter) normalize(summary registryWorkSummary, detail registryWorkDetail, researcherID, originID string) types.UnifiedRecord {
	rec := types.UnifiedRecord{
		Title:       summary.Title.Title.Value,
		Abstract:    detail.ShortDescription,
		Source:      types.SourceRegistry,
		ContentType: types.TypePublication,
		Journal:     summary.JournalTitle.Value,
		OriginID:    originID,
		ExternalIDs: map[string]string{"orcid": researcherID},
	}

	for _, ext := range summary.ExternalIDs.ExternalID {
		if ext.Type == "" || ext.Value == "" {
			continue
		}
		switch ext.Type {
		case "doi":
			rec.DOI = ext.Value
		case "url":
			rec.URL = ext.Value
		default:
			rec.ExternalIDs[ext.Type] = ext.Value
		}
	}

	if d := summary.PublicationDate; d != nil {
		rec.Date = types.Date{Year: d.Year.Int()}
		if m := d.Month.Int(); m >= 1 && m <= 12 {
			rec.Date.Month = time.Month(m)
		}
		rec.Date.Day = d.Day.Int()
	}

	var affiliations []string
	for _, c := range detail.Contributors.Contributor {
		name := c.CreditName.Value
		if name != "" {
			// Names sometimes carry a parenthesized affiliation.
			if idx := strings.Index(name, "("); idx > 0 {
				aff := strings.TrimSuffix(strings.TrimSpace(name[idx+1:]), ")")
				if aff != "" {
					affiliations = append(affiliations, aff)
				}
				name = strings.TrimSpace(name[:idx])
			}
			rec.Authors = append(rec.Authors, name)
		}
		if c.Organization.Name != "" {
			affiliations = append(affiliations, c.Organization.Name)
		}
	}
	rec.Authors = uniqueStrings(rec.Authors)
	rec.Affiliations = uniqueStrings(affiliations)

	for _, kw := range detail.Keywords.Keyword {
		if kw.Content != "" {
			rec.Keywords = append(rec.Keywords, kw.Content)
		}
	}
	rec.Keywords = uniqueStrings(rec.Keywords)

	return rec
}

func (a *RegistryAdapter) baseURL() string {
	if a.Config.BaseURL != "" {
		return strings.TrimSuffix(a.Config.BaseURL, "/")
	}
	return defaultRegistryBaseURL
}

func (a *RegistryAdapter) tokenURL() string {
	if a.Config.TokenURL != "" {
		return a.Config.TokenURL
	}
	return defaultRegistryTokenURL
}

func (a *RegistryAdapter) requestDelay() time.Duration {
	if a.Config.RequestDelay > 0 {
		return a.Config.RequestDelay
	}
	return time.Second
}

// Registry API JSON structures. The registry nests every scalar inside a
// value object.
type registryWorksResponse struct {
	Groups []registryWorkGroup `json:"group"`
}

type registryWorkGroup struct {
	WorkSummaries []registryWorkSummary `json:"work-summary"`
}

type registryWorkSummary struct {
	PutCode         int64               `json:"put-code"`
	Title           registryTitleWrap   `json:"title"`
	JournalTitle    registryValue       `json:"journal-title"`
	ExternalIDs     registryExternalIDs `json:"external-ids"`
	PublicationDate *registryDate       `json:"publication-date"`
	Type            string              `json:"type"`
}

type registryTitleWrap struct {
	Title registryValue `json:"title"`
}

type registryValue struct {
	Value string `json:"value"`
}

type registryExternalIDs struct {
	ExternalID []registryExternalID `json:"external-id"`
}

type registryExternalID struct {
	Type  string `json:"external-id-type"`
	Value string `json:"external-id-value"`
}

type registryDate struct {
	Year  registryIntValue `json:"year"`
	Month registryIntValue `json:"month"`
	Day   registryIntValue `json:"day"`
}

// registryIntValue tolerates the registry serializing numbers as strings.
type registryIntValue struct {
	Value string `json:"value"`
}

func (v registryIntValue) Int() int {
	n := 0
	fmt.Sscanf(v.Value, "%d", &n)
	return n
}

type registryWorkDetail struct {
	ShortDescription string               `json:"short-description"`
	Contributors     registryContributors `json:"contributors"`
	Keywords         registryKeywords     `json:"keywords"`
}

type registryContributors struct {
	Contributor []registryContributor `json:"contributor"`
}

type registryContributor struct {
	CreditName   registryValue        `json:"credit-name"`
	Organization registryOrganization `json:"organization"`
}

type registryOrganization struct {
	Name string `json:"name"`
}

type registryKeywords struct {
	Keyword []registryKeyword `json:"keyword"`
}

type registryKeyword struct {
	Content string `json:"content"`
}
