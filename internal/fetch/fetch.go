// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch collects newly posted papers from the preprint servers and
// returns them as one deduplicated batch.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/research-briefing/internal/observability"
	"github.com/pdiddy/research-briefing/pkg/types"
)

// DefaultUserAgent is sent when the config leaves user_agent empty.
const DefaultUserAgent = "research-briefing/1.0 (+https://github.com/pdiddy/research-briefing)"

// Source fetches papers posted within a window from one server. Each
// server (arXiv, bioRxiv, medRxiv) implements this interface.
type Source interface {
	Name() string
	Fetch(ctx context.Context, w Window) ([]types.Paper, error)
}

// Window is an inclusive range of posting dates.
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow returns the window ending on date and reaching daysBack days
// before it.
func NewWindow(date time.Time, daysBack int) Window {
	if daysBack < 1 {
		daysBack = 1
	}
	to := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return Window{From: to.AddDate(0, 0, -daysBack), To: to}
}

func (w Window) String() string {
	return w.From.Format(time.DateOnly) + ".." + w.To.Format(time.DateOnly)
}

// Output holds the merged papers and per-source statistics.
type Output struct {
	Papers       []types.Paper
	PerSource    map[string]int
	DupsRemoved  int
	Invalid      int
	SourceErrors []string
}

// FetchAll queries every source concurrently and merges the results in
// source order. A failing source is logged and skipped; papers it returned
// before failing are kept.
func FetchAll(ctx context.Context, sources []Source, w Window, logger zerolog.Logger, metrics *observability.Metrics) Output {
	type sourceResult struct {
		papers []types.Paper
		err    error
	}

	results := make([]sourceResult, len(sources))
	var wg sync.WaitGroup
	for i, s := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			papers, err := s.Fetch(ctx, w)
			results[i] = sourceResult{papers: papers, err: err}
		}()
	}
	wg.Wait()

	out := Output{PerSource: make(map[string]int, len(sources))}
	var all []types.Paper
	for i, r := range results {
		name := sources[i].Name()
		if r.err != nil {
			out.SourceErrors = append(out.SourceErrors, fmt.Sprintf("%s: %v", name, r.err))
			logger.Warn().Err(r.err).Str("source", name).Msg("source failed")
		}
		out.PerSource[name] = len(r.papers)
		metrics.RecordFetched(name, len(r.papers))
		logger.Info().Str("source", name).Int("papers", len(r.papers)).Str("window", w.String()).Msg("fetched")
		all = append(all, r.papers...)
	}

	out.Papers, out.DupsRemoved, out.Invalid = deduplicate(all)
	return out
}

// deduplicate drops papers without an ID, title or abstract and keeps the
// first paper for each normalized ID.
func deduplicate(papers []types.Paper) (kept []types.Paper, dups, invalid int) {
	seen := make(map[string]bool, len(papers))
	for _, p := range papers {
		if !valid(p) {
			invalid++
			continue
		}
		key := p.Key()
		if seen[key] {
			dups++
			continue
		}
		seen[key] = true
		p.ID = key
		kept = append(kept, p)
	}
	return kept, dups, invalid
}

func valid(p types.Paper) bool {
	return p.Key() != "" && p.Title != "" && p.Abstract != ""
}

// NewSources builds the enabled sources from cfg.
func NewSources(cfg types.SourcesConfig, client *http.Client) []Source {
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	var sources []Source
	if cfg.Arxiv.Enabled {
		sources = append(sources, &ArxivSource{
			Client:     client,
			Categories: cfg.Arxiv.Categories,
			MaxResults: cfg.Arxiv.MaxResults,
			UserAgent:  ua,
			// arXiv asks for one request every three seconds.
			Limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
		})
	}
	for _, pp := range []struct {
		platform types.Platform
		cfg      types.PreprintSourceConfig
	}{
		{types.PlatformBiorxiv, cfg.Biorxiv},
		{types.PlatformMedrxiv, cfg.Medrxiv},
	} {
		if !pp.cfg.Enabled {
			continue
		}
		sources = append(sources, &PreprintSource{
			Platform:   pp.platform,
			Client:     client,
			Categories: pp.cfg.Categories,
			MaxPapers:  pp.cfg.MaxPapers,
			UserAgent:  ua,
			Limiter:    rate.NewLimiter(rate.Every(time.Second), 2),
		})
	}
	return sources
}

// wait blocks on an optional limiter.
func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
