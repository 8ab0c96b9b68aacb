// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package briefing

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-briefing/pkg/types"
)

// --- fake oracle ---

type fakeOracle struct {
	mu      sync.Mutex
	prompts []string
	answer  func(prompt string) (string, error)
}

func (f *fakeOracle) Name() string { return "fake" }

func (f *fakeOracle) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.answer(prompt)
}

func entry(id, title, abstract string) types.BriefingEntry {
	return types.BriefingEntry{
		Paper: types.Paper{
			ID:       id,
			Title:    title,
			Abstract: abstract,
			Authors:  []string{"A. One", "B. Two", "C. Three", "D. Four"},
			Platform: types.PlatformArxiv,
		},
		Verdict: types.Verdict{PaperID: id, Relevant: true, State: types.StateAccepted, Stage: types.StageJudgeYes},
	}
}

// --- summarizer ---

func TestSummarizeUsesOracle(t *testing.T) {
	oracle := &fakeOracle{answer: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Broken") {
			return "", errors.New("exit status 1")
		}
		return "```\nAn agent that runs experiments.\n```", nil
	}}
	s := NewSummarizer(oracle, types.SummarizerConfig{Language: "en", MaxLength: 20}, zerolog.Nop())

	entries := []types.BriefingEntry{
		entry("arxiv:1", "Good paper", "Agents for chemistry."),
		entry("arxiv:2", "Broken paper", "This abstract is longer than twenty characters."),
	}
	got := s.Summarize(context.Background(), entries)

	assert.Equal(t, "An agent that runs e...", got[0].Summary)
	assert.False(t, got[0].SummaryFallback)
	assert.Equal(t, "This abstract is lon", got[1].Summary)
	assert.True(t, got[1].SummaryFallback)

	require.Len(t, oracle.prompts, 2)
	for _, p := range oracle.prompts {
		assert.Contains(t, p, "in en.")
		assert.Contains(t, p, "A. One, B. Two, C. Three\n")
		assert.NotContains(t, p, "D. Four")
	}
}

func TestSummarizeWithoutOracleFallsBack(t *testing.T) {
	s := NewSummarizer(nil, types.SummarizerConfig{}, zerolog.Nop())
	got := s.Summarize(context.Background(), []types.BriefingEntry{entry("arxiv:1", "T", "Short abstract.")})
	assert.Equal(t, "Short abstract.", got[0].Summary)
	assert.True(t, got[0].SummaryFallback)
}

func TestNewSummarizerDefaults(t *testing.T) {
	s := NewSummarizer(nil, types.SummarizerConfig{Concurrency: 8}, zerolog.Nop())
	assert.Equal(t, DefaultLanguage, s.language)
	assert.Equal(t, DefaultMaxLength, s.maxLength)
	assert.Equal(t, DefaultTimeout, s.timeout)
	assert.Equal(t, DefaultConcurrency, s.workers)
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"```\nfenced\n```", "fenced"},
		{"```markdown\nline one\nline two\n```\n", "line one\nline two"},
		{"```\nunterminated", "unterminated"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripCodeFence(tt.in))
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "智能体", truncate("智能体科学发现", 3))
	assert.Equal(t, "abc", truncate("abc", 10))
}

// --- build and save ---

func TestBuildAndSaveRoundTrip(t *testing.T) {
	date := time.Date(2026, 2, 10, 9, 0, 0, 0, time.Local)
	now := time.Date(2026, 2, 11, 7, 0, 0, 0, time.UTC)
	entries := []types.BriefingEntry{entry("arxiv:1", "Agents", "abs")}
	entries[0].Summary = "summary"
	summary := types.RunSummary{RunID: "run-1", Input: 3, Accepted: 1, Rejected: 2, AcceptedIDs: []string{"arxiv:1"}}

	b := Build(date, []string{"medrxiv", "arxiv"}, entries, summary, now)
	assert.Equal(t, "2026-02-10", b.DateKey())
	assert.Equal(t, []string{"arxiv", "medrxiv"}, b.Platforms)

	for _, format := range []types.OutputFormat{types.FormatJSON, types.FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			dir := t.TempDir()
			path, err := Save(b, filepath.Join(dir, "out"), format)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "out", FileName("2026-02-10", format)), path)

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, "run-1", loaded.Summary.RunID)
			require.Len(t, loaded.Entries, 1)
			assert.Equal(t, "summary", loaded.Entries[0].Summary)
			assert.Equal(t, types.StageJudgeYes, loaded.Entries[0].Verdict.Stage)
			assert.True(t, loaded.Date.Equal(b.Date))

			leftovers, err := filepath.Glob(filepath.Join(dir, "out", ".briefing-*.tmp"))
			require.NoError(t, err)
			assert.Empty(t, leftovers)
		})
	}
}

func TestBuildPlatformsFromEntries(t *testing.T) {
	e1 := entry("biorxiv:10.1101/x", "B", "b")
	e1.Paper.Platform = types.PlatformBiorxiv
	e2 := entry("arxiv:1", "A", "a")
	b := Build(time.Now(), nil, []types.BriefingEntry{e1, e2}, types.RunSummary{}, time.Now())
	assert.Equal(t, []string{"arxiv", "biorxiv"}, b.Platforms)
}

func TestBuildEmptyEntries(t *testing.T) {
	b := Build(time.Now(), []string{"arxiv"}, nil, types.RunSummary{}, time.Now())
	assert.NotNil(t, b.Entries)
	assert.Empty(t, b.Entries)
}

func TestSaveRejectsUnknownFormat(t *testing.T) {
	_, err := Save(types.Briefing{}, t.TempDir(), "xml")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// --- report ---

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, types.RunSummary{
		RunID:             "run-1",
		Mode:              types.ModeHybrid,
		RubricVersion:     "1.0",
		Input:             5,
		Accepted:          1,
		Rejected:          2,
		ExcludedRetryable: 1,
		AlreadyProcessed:  1,
		JudgeTimeouts:     1,
	})
	out := buf.String()
	assert.Contains(t, out, "mode hybrid, rubric 1.0")
	assert.Contains(t, out, "excluded (retry next run)")
	assert.Contains(t, out, "judge timeouts")
	assert.NotContains(t, out, "judge parse errors")
}

func TestWriteVerdicts(t *testing.T) {
	score := 0.4917
	var buf bytes.Buffer
	WriteVerdicts(&buf,
		[]types.Paper{{ID: "arxiv:1", Title: strings.Repeat("x", 80)}},
		[]types.Verdict{{PaperID: "arxiv:1", State: types.StateRejected, Stage: types.StageEmbeddingReject, Score: &score}},
	)
	out := buf.String()
	assert.Contains(t, out, "0.4917")
	assert.Contains(t, out, "embedding-reject")
	assert.Contains(t, out, strings.Repeat("x", 57)+"...")
}

func TestWriteBriefingAndStats(t *testing.T) {
	e := entry("arxiv:1", "Agents for Science", "abs")
	e.Summary = "A short summary."
	e.Verdict.Reasoning = "Multi-agent system."
	e.Verdict.Confidence = types.ConfidenceHigh

	var buf bytes.Buffer
	WriteBriefing(&buf, Build(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), []string{"arxiv"}, []types.BriefingEntry{e}, types.RunSummary{}, time.Now()))
	out := buf.String()
	assert.Contains(t, out, "Research briefing 2026-02-10 (arxiv)")
	assert.Contains(t, out, "1. Agents for Science")
	assert.Contains(t, out, "Why: Multi-agent system. (HIGH)")

	buf.Reset()
	WriteStats(&buf, types.LedgerStats{
		TotalPapers:    4,
		RelevantPapers: 1,
		ByPlatform:     map[string]int{"arxiv": 3, "biorxiv": 1},
		ByStage:        map[string]int{"keyword-reject": 3},
	})
	out = buf.String()
	assert.Contains(t, out, "by platform")
	assert.Less(t, strings.Index(out, "arxiv"), strings.Index(out, "biorxiv"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]int{"accepted": 1}))
	assert.Equal(t, "{\n  \"accepted\": 1\n}\n", buf.String())
}
