// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/research-briefing/internal/httputil"
	"github.com/pdiddy/research-briefing/pkg/types"
)

// Details API endpoints, vars so tests can substitute an httptest server.
var (
	biorxivAPIBase = "https://api.biorxiv.org/details"
	medrxivAPIBase = "https://api.medrxiv.org/details"
)

const (
	// preprintPageSize is the fixed page size of the details API.
	preprintPageSize = 100

	defaultMaxPreprints = 1000
)

// PreprintSource pages through the bioRxiv or medRxiv details API.
type PreprintSource struct {
	Platform   types.Platform
	Client     *http.Client
	Categories []string
	MaxPapers  int
	UserAgent  string
	Limiter    *rate.Limiter
}

// Name returns the platform name.
func (s *PreprintSource) Name() string { return string(s.Platform) }

// Fetch pages through each category. No categories means the whole server.
func (s *PreprintSource) Fetch(ctx context.Context, w Window) ([]types.Paper, error) {
	categories := s.Categories
	if len(categories) == 0 {
		categories = []string{""}
	}

	var papers []types.Paper
	var errs []error
	for _, cat := range categories {
		got, err := s.fetchCategory(ctx, cat, w)
		papers = append(papers, got...)
		if err != nil {
			errs = append(errs, fmt.Errorf("category %q: %w", cat, err))
			if ctx.Err() != nil {
				break
			}
		}
	}
	return papers, errors.Join(errs...)
}

// fetchCategory follows the cursor until a short page or the paper cap.
// Pages fetched before an error are returned with it.
func (s *PreprintSource) fetchCategory(ctx context.Context, category string, w Window) ([]types.Paper, error) {
	limit := s.MaxPapers
	if limit <= 0 {
		limit = defaultMaxPreprints
	}

	var papers []types.Paper
	for cursor := 0; len(papers) < limit; cursor += preprintPageSize {
		page, err := s.fetchPage(ctx, category, w, cursor)
		if err != nil {
			return papers, err
		}
		for _, e := range page.Collection {
			if p, ok := e.paper(s.Platform); ok {
				papers = append(papers, p)
			}
		}
		if len(page.Messages) == 0 || len(page.Collection) < preprintPageSize {
			break
		}
	}
	if len(papers) > limit {
		papers = papers[:limit]
	}
	return papers, nil
}

func (s *PreprintSource) fetchPage(ctx context.Context, category string, w Window, cursor int) (*detailsResponse, error) {
	if err := wait(ctx, s.Limiter); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/%s/%s/%s/%d/json", s.apiBase(), s.Platform,
		w.From.Format(time.DateOnly), w.To.Format(time.DateOnly), cursor)
	if category != "" {
		u += "?category=" + url.QueryEscape(category)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%s API request: %w", s.Platform, err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(string(s.Platform), resp); err != nil {
		return nil, err
	}

	var page detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", s.Platform, err)
	}
	return &page, nil
}

func (s *PreprintSource) apiBase() string {
	if s.Platform == types.PlatformMedrxiv {
		return medrxivAPIBase
	}
	return biorxivAPIBase
}

// Details API JSON structures.
type detailsResponse struct {
	Messages   []json.RawMessage `json:"messages"`
	Collection []detailsEntry    `json:"collection"`
}

type detailsEntry struct {
	DOI      string `json:"doi"`
	Title    string `json:"title"`
	Authors  string `json:"authors"`
	Date     string `json:"date"`
	Version  string `json:"version"`
	Category string `json:"category"`
	Abstract string `json:"abstract"`
}

func (e detailsEntry) paper(platform types.Platform) (types.Paper, bool) {
	doi := strings.TrimSpace(e.DOI)
	if doi == "" {
		return types.Paper{}, false
	}

	p := types.Paper{
		ID:       types.CanonicalID(platform, doi),
		Title:    collapseSpace(e.Title),
		Abstract: collapseSpace(strings.NewReplacer("<p>", " ", "</p>", " ").Replace(e.Abstract)),
		Platform: platform,
		URL:      landingPage(platform, doi, e.Version),
	}
	for _, a := range strings.Split(e.Authors, ";") {
		if a = strings.TrimSpace(a); a != "" {
			p.Authors = append(p.Authors, a)
		}
	}
	if c := strings.TrimSpace(e.Category); c != "" {
		p.Categories = []string{c}
	}
	if t, err := time.Parse(time.DateOnly, strings.TrimSpace(e.Date)); err == nil {
		p.PublishedDate = t
	}
	return p, true
}

// landingPage builds the article URL; version 1 has no suffix.
func landingPage(platform types.Platform, doi, version string) string {
	u := fmt.Sprintf("https://www.%s.org/content/%s", platform, doi)
	if v := strings.TrimSpace(version); v != "" && v != "1" {
		u += "v" + v
	}
	return u
}
