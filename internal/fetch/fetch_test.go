// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-briefing/internal/observability"
	"github.com/pdiddy/research-briefing/pkg/types"
)

var testDay = time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC)

// --- window ---

func TestNewWindow(t *testing.T) {
	w := NewWindow(testDay, 1)
	assert.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), w.From)
	assert.Equal(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), w.To)
	assert.Equal(t, "2026-02-09..2026-02-10", w.String())

	w = NewWindow(testDay, 0)
	assert.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), w.From)
}

// --- arXiv ---

const arxivFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2602.11111v2</id>
    <published>2026-02-10T18:00:00Z</published>
    <title>AutoNumerics: An Autonomous,
      Multi-Agent Pipeline for Scientific Computing</title>
    <summary>  We present a multi-agent
pipeline for scientific computing.</summary>
    <author><name>Ada Lovelace</name></author>
    <author><name> Alan Turing </name></author>
    <link href="http://arxiv.org/abs/2602.11111v2" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2602.11111v2" rel="related" type="application/pdf"/>
    <category term="cs.AI" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.MA" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
  <entry>
    <id>not-an-arxiv-url</id>
    <title>Broken entry</title>
    <summary>No usable identifier.</summary>
  </entry>
</feed>`

func TestArxivSourceFetch(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		gotUA = r.Header.Get("User-Agent")
		assert.Equal(t, "submittedDate", r.URL.Query().Get("sortBy"))
		assert.Equal(t, "50", r.URL.Query().Get("max_results"))
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, arxivFeedXML)
	}))
	defer srv.Close()

	orig := arxivAPIBase
	arxivAPIBase = srv.URL
	defer func() { arxivAPIBase = orig }()

	s := &ArxivSource{Client: srv.Client(), Categories: []string{"cs.AI"}, MaxResults: 50, UserAgent: "test-agent"}
	papers, err := s.Fetch(context.Background(), NewWindow(testDay, 1))
	require.NoError(t, err)

	assert.Equal(t, "cat:cs.AI AND submittedDate:[202602090000 TO 202602102359]", gotQuery)
	assert.Equal(t, "test-agent", gotUA)

	require.Len(t, papers, 1)
	p := papers[0]
	assert.Equal(t, "arxiv:2602.11111", p.ID)
	assert.Equal(t, "AutoNumerics: An Autonomous, Multi-Agent Pipeline for Scientific Computing", p.Title)
	assert.Equal(t, "We present a multi-agent pipeline for scientific computing.", p.Abstract)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, p.Authors)
	assert.Equal(t, "http://arxiv.org/abs/2602.11111v2", p.URL)
	assert.Equal(t, []string{"cs.AI", "cs.MA"}, p.Categories)
	assert.Equal(t, types.PlatformArxiv, p.Platform)
	assert.Equal(t, time.Date(2026, 2, 10, 18, 0, 0, 0, time.UTC), p.PublishedDate)
}

func TestArxivSourceKeepsGoodCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("search_query"), "cs.BAD") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, arxivFeedXML)
	}))
	defer srv.Close()

	orig := arxivAPIBase
	arxivAPIBase = srv.URL
	defer func() { arxivAPIBase = orig }()

	s := &ArxivSource{Client: srv.Client(), Categories: []string{"cs.BAD", "cs.AI"}}
	papers, err := s.Fetch(context.Background(), NewWindow(testDay, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cs.BAD")
	assert.Len(t, papers, 1)
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://arxiv.org/abs/2301.07041v1", "2301.07041v1"},
		{"http://arxiv.org/abs/hep-th/9901001v2", "hep-th/9901001v2"},
		{"https://example.org/other", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractArxivID(tt.in), tt.in)
	}
}

// --- bioRxiv / medRxiv ---

func detailsPage(start, n int) detailsResponse {
	page := detailsResponse{Messages: []json.RawMessage{json.RawMessage(`{"status":"ok"}`)}}
	for i := range n {
		page.Collection = append(page.Collection, detailsEntry{
			DOI:      fmt.Sprintf("10.1101/2026.02.09.%06d", start+i),
			Title:    fmt.Sprintf("Paper %d", start+i),
			Authors:  "Smith, J.; Doe, A.;",
			Date:     "2026-02-09",
			Version:  "1",
			Category: "bioinformatics",
			Abstract: "<p>An agent for protein design.</p>",
		})
	}
	return page
}

func TestPreprintSourcePagesWithCursor(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "bioinformatics", r.URL.Query().Get("category"))
		var page detailsResponse
		switch {
		case strings.HasSuffix(r.URL.Path, "/0/json"):
			page = detailsPage(0, preprintPageSize)
		case strings.HasSuffix(r.URL.Path, "/100/json"):
			page = detailsPage(100, 3)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	orig := biorxivAPIBase
	biorxivAPIBase = srv.URL
	defer func() { biorxivAPIBase = orig }()

	s := &PreprintSource{Platform: types.PlatformBiorxiv, Client: srv.Client(), Categories: []string{"bioinformatics"}}
	papers, err := s.Fetch(context.Background(), NewWindow(testDay, 1))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/biorxiv/2026-02-09/2026-02-10/0/json",
		"/biorxiv/2026-02-09/2026-02-10/100/json",
	}, paths)
	require.Len(t, papers, 103)

	p := papers[0]
	assert.Equal(t, "biorxiv:10.1101/2026.02.09.000000", p.ID)
	assert.Equal(t, "An agent for protein design.", p.Abstract)
	assert.Equal(t, []string{"Smith, J.", "Doe, A."}, p.Authors)
	assert.Equal(t, "https://www.biorxiv.org/content/10.1101/2026.02.09.000000", p.URL)
	assert.Equal(t, []string{"bioinformatics"}, p.Categories)
	assert.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), p.PublishedDate)
}

func TestPreprintSourceStopsAtCap(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		json.NewEncoder(w).Encode(detailsPage(0, preprintPageSize))
	}))
	defer srv.Close()

	orig := medrxivAPIBase
	medrxivAPIBase = srv.URL
	defer func() { medrxivAPIBase = orig }()

	s := &PreprintSource{Platform: types.PlatformMedrxiv, Client: srv.Client(), MaxPapers: 150}
	papers, err := s.Fetch(context.Background(), NewWindow(testDay, 1))
	require.NoError(t, err)
	assert.Len(t, papers, 150)
	assert.Equal(t, int32(2), requests.Load())
	assert.True(t, strings.HasPrefix(papers[0].ID, "medrxiv:"))
}

func TestLandingPage(t *testing.T) {
	assert.Equal(t, "https://www.biorxiv.org/content/10.1101/x", landingPage(types.PlatformBiorxiv, "10.1101/x", "1"))
	assert.Equal(t, "https://www.medrxiv.org/content/10.1101/xv3", landingPage(types.PlatformMedrxiv, "10.1101/x", "3"))
	assert.Equal(t, "https://www.biorxiv.org/content/10.1101/x", landingPage(types.PlatformBiorxiv, "10.1101/x", ""))
}

// --- fan-out ---

type stubSource struct {
	name   string
	papers []types.Paper
	err    error
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Fetch(context.Context, Window) ([]types.Paper, error) {
	return s.papers, s.err
}

func TestFetchAllMergesAndDeduplicates(t *testing.T) {
	a := types.Paper{ID: "arxiv:2602.00001v1", Title: "A", Abstract: "a"}
	aAgain := types.Paper{ID: "arXiv:2602.00001v2", Title: "A again", Abstract: "a"}
	noAbstract := types.Paper{ID: "arxiv:2602.00002", Title: "B"}
	c := types.Paper{ID: "biorxiv:10.1101/C", Title: "C", Abstract: "c"}

	sources := []Source{
		stubSource{name: "arxiv", papers: []types.Paper{a, aAgain, noAbstract}},
		stubSource{name: "biorxiv", papers: []types.Paper{c}, err: errors.New("page 2 failed")},
		stubSource{name: "medrxiv", err: errors.New("unreachable")},
	}
	m := observability.NewMetrics()
	out := FetchAll(context.Background(), sources, NewWindow(testDay, 1), zerolog.Nop(), m)

	require.Len(t, out.Papers, 2)
	assert.Equal(t, "arxiv:2602.00001", out.Papers[0].ID)
	assert.Equal(t, "A", out.Papers[0].Title)
	assert.Equal(t, "biorxiv:10.1101/c", out.Papers[1].ID)
	assert.Equal(t, 1, out.DupsRemoved)
	assert.Equal(t, 1, out.Invalid)
	assert.Equal(t, map[string]int{"arxiv": 3, "biorxiv": 1, "medrxiv": 0}, out.PerSource)
	assert.Len(t, out.SourceErrors, 2)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PapersFetched.WithLabelValues("arxiv")))
}

func TestNewSources(t *testing.T) {
	cfg := types.SourcesConfig{
		Arxiv:   types.ArxivSourceConfig{Enabled: true, Categories: []string{"cs.AI"}},
		Biorxiv: types.PreprintSourceConfig{Enabled: false},
		Medrxiv: types.PreprintSourceConfig{Enabled: true},
	}
	sources := NewSources(cfg, http.DefaultClient)
	require.Len(t, sources, 2)
	assert.Equal(t, "arxiv", sources[0].Name())
	assert.Equal(t, "medrxiv", sources[1].Name())
	assert.Equal(t, DefaultUserAgent, sources[0].(*ArxivSource).UserAgent)
}
