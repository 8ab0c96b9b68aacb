// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/research-briefing/internal/httputil"
	"github.com/pdiddy/research-briefing/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

const defaultArxivMaxResults = 100

// ArxivSource lists recent submissions per arXiv category.
type ArxivSource struct {
	Client     *http.Client
	Categories []string
	MaxResults int
	UserAgent  string
	Limiter    *rate.Limiter
}

// Name returns the source identifier.
func (s *ArxivSource) Name() string { return string(types.PlatformArxiv) }

// Fetch queries each category in turn. A failed category is reported in
// the joined error; the others still contribute papers.
func (s *ArxivSource) Fetch(ctx context.Context, w Window) ([]types.Paper, error) {
	var papers []types.Paper
	var errs []error
	for _, cat := range s.Categories {
		got, err := s.fetchCategory(ctx, cat, w)
		if err != nil {
			errs = append(errs, fmt.Errorf("category %s: %w", cat, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		papers = append(papers, got...)
	}
	return papers, errors.Join(errs...)
}

func (s *ArxivSource) fetchCategory(ctx context.Context, category string, w Window) ([]types.Paper, error) {
	if err := wait(ctx, s.Limiter); err != nil {
		return nil, err
	}

	maxResults := s.MaxResults
	if maxResults <= 0 {
		maxResults = defaultArxivMaxResults
	}
	params := url.Values{}
	params.Set("search_query", buildArxivQuery(category, w))
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus("arXiv", resp); err != nil {
		return nil, err
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	papers := make([]types.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if p, ok := entry.paper(); ok {
			papers = append(papers, p)
		}
	}
	return papers, nil
}

// buildArxivQuery restricts a category to the submission window, e.g.
// "cat:cs.AI AND submittedDate:[202601010000 TO 202601022359]".
func buildArxivQuery(category string, w Window) string {
	return fmt.Sprintf("cat:%s AND submittedDate:[%s0000 TO %s2359]",
		category, w.From.Format("20060102"), w.To.Format("20060102"))
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	Authors    []arxivAuthor   `xml:"author"`
	Links      []arxivLink     `xml:"link"`
	Categories []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

func (e arxivEntry) paper() (types.Paper, bool) {
	native := extractArxivID(e.ID)
	if native == "" {
		return types.Paper{}, false
	}
	p := types.Paper{
		ID:       types.CanonicalID(types.PlatformArxiv, native),
		Title:    collapseSpace(e.Title),
		Abstract: collapseSpace(e.Summary),
		Platform: types.PlatformArxiv,
		URL:      strings.TrimSpace(e.ID),
	}
	for _, a := range e.Authors {
		p.Authors = append(p.Authors, strings.TrimSpace(a.Name))
	}
	for _, l := range e.Links {
		if l.Rel == "alternate" && l.Href != "" {
			p.URL = l.Href
			break
		}
	}
	for _, c := range e.Categories {
		if c.Term != "" {
			p.Categories = append(p.Categories, c.Term)
		}
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		p.PublishedDate = t
	}
	return p, true
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041v1"). The
// version is stripped by types.CanonicalID.
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(idURL[idx+len(prefix):])
}

// collapseSpace joins the line-wrapped text of Atom fields.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
