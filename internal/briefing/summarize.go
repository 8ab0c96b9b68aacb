// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package briefing summarizes accepted papers and assembles, saves, and
// prints the daily briefing.
package briefing

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-briefing/internal/judge"
	"github.com/pdiddy/research-briefing/internal/observability"
	"github.com/pdiddy/research-briefing/pkg/types"
)

const (
	DefaultLanguage    = "zh-CN"
	DefaultMaxLength   = 300
	DefaultTimeout     = 10 * time.Minute
	DefaultConcurrency = 2

	// maxPromptAuthors limits the author list in the prompt.
	maxPromptAuthors = 3
)

var summaryPromptTmpl = template.Must(template.New("summary").Parse(
	`Summarize the following paper in {{.Language}}. Cover:
1. The research problem and motivation
2. The main method and what is new about it
3. The key results

Title: {{.Title}}
Authors: {{.Authors}}
Abstract: {{.Abstract}}

Keep the summary under {{.MaxLength}} characters. Reply with the summary text only.
`))

// Summarizer writes short summaries of accepted papers through an Oracle.
// A nil oracle, or any failure, falls back to the truncated abstract.
type Summarizer struct {
	oracle    judge.Oracle
	language  string
	maxLength int
	timeout   time.Duration
	workers   int
	logger    zerolog.Logger
}

// NewSummarizer builds a Summarizer from cfg. Pass a nil oracle to skip
// summarization and always use the abstract.
func NewSummarizer(oracle judge.Oracle, cfg types.SummarizerConfig, logger zerolog.Logger) *Summarizer {
	s := &Summarizer{
		oracle:    oracle,
		language:  cfg.Language,
		maxLength: cfg.MaxLength,
		timeout:   cfg.Timeout,
		workers:   cfg.Concurrency,
		logger:    logger,
	}
	if s.language == "" {
		s.language = DefaultLanguage
	}
	if s.maxLength <= 0 {
		s.maxLength = DefaultMaxLength
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.workers <= 0 || s.workers > types.MaxJudgeConcurrency {
		// Summaries go to the same external service as the judge.
		s.workers = DefaultConcurrency
	}
	return s
}

// Summarize fills Summary on every entry, in place, and returns entries.
func (s *Summarizer) Summarize(ctx context.Context, entries []types.BriefingEntry) []types.BriefingEntry {
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range entries {
		g.Go(func() error {
			e := &entries[i]
			summary, err := s.summarizeOne(ctx, e.Paper)
			if err != nil {
				logger := observability.WithPaper(s.logger, e.Paper.ID)
				logger.Warn().Err(err).Msg("summary failed, using abstract")
				e.Summary = truncate(e.Paper.Abstract, s.maxLength)
				e.SummaryFallback = true
				return nil
			}
			e.Summary = summary
			return nil
		})
	}
	_ = g.Wait()
	return entries
}

func (s *Summarizer) summarizeOne(ctx context.Context, p types.Paper) (string, error) {
	if s.oracle == nil {
		return "", fmt.Errorf("summarizer disabled")
	}

	prompt, err := s.prompt(p)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.oracle.Complete(callCtx, prompt)
	if err != nil {
		return "", err
	}
	out = stripCodeFence(out)
	if out == "" {
		return "", fmt.Errorf("empty summary")
	}
	if len([]rune(out)) > s.maxLength {
		out = truncate(out, s.maxLength) + "..."
	}
	return out, nil
}

func (s *Summarizer) prompt(p types.Paper) (string, error) {
	authors := p.Authors
	if len(authors) > maxPromptAuthors {
		authors = authors[:maxPromptAuthors]
	}
	var buf bytes.Buffer
	err := summaryPromptTmpl.Execute(&buf, struct {
		Language  string
		Title     string
		Authors   string
		Abstract  string
		MaxLength int
	}{s.language, p.Title, strings.Join(authors, ", "), p.Abstract, s.maxLength})
	if err != nil {
		return "", fmt.Errorf("rendering summary prompt: %w", err)
	}
	return buf.String(), nil
}

// stripCodeFence removes a Markdown code fence wrapped around the answer.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
