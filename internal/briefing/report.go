// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package briefing

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/research-briefing/pkg/types"
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSummary prints the run summary as a two-column table. Zero failure
// counts are omitted.
func WriteSummary(w io.Writer, s types.RunSummary) {
	fmt.Fprintf(w, "Run %s (mode %s", s.RunID, s.Mode)
	if s.RubricVersion != "" {
		fmt.Fprintf(w, ", rubric %s", s.RubricVersion)
	}
	fmt.Fprintf(w, ") took %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, strings.Repeat("-", 40))

	row := func(label string, n int) {
		fmt.Fprintf(w, "%-26s  %6d\n", label, n)
	}
	row("input", s.Input)
	row("accepted", s.Accepted)
	row("rejected", s.Rejected)
	row("excluded (retry next run)", s.ExcludedRetryable)
	row("already processed", s.AlreadyProcessed)

	for _, f := range []struct {
		label string
		n     int
	}{
		{"  invalid", s.Invalid},
		{"  deferred", s.Deferred},
		{"  embedding errors", s.EmbeddingErrors},
		{"  judge invocation errors", s.JudgeInvocationErrors},
		{"  judge timeouts", s.JudgeTimeouts},
		{"  judge parse errors", s.JudgeParseErrors},
		{"  judge heuristic answers", s.JudgeFallbacks},
		{"  ledger write errors", s.LedgerErrors},
	} {
		if f.n > 0 {
			row(f.label, f.n)
		}
	}
}

// WriteVerdicts prints one line per verdict.
func WriteVerdicts(w io.Writer, papers []types.Paper, verdicts []types.Verdict) {
	fmt.Fprintf(w, "%-19s  %-24s  %-6s  %s\n", "State", "Stage", "Score", "Paper")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for i, v := range verdicts {
		score := "-"
		if v.Score != nil {
			score = fmt.Sprintf("%.4f", *v.Score)
		}
		title := papers[i].Title
		if len([]rune(title)) > 60 {
			title = truncate(title, 57) + "..."
		}
		fmt.Fprintf(w, "%-19s  %-24s  %-6s  %s %s\n", v.State, v.Stage, score, v.PaperID, title)
	}
}

// WriteBriefing prints a briefing for reading in a terminal.
func WriteBriefing(w io.Writer, b types.Briefing) {
	fmt.Fprintf(w, "Research briefing %s (%s)\n", b.DateKey(), strings.Join(b.Platforms, ", "))
	fmt.Fprintf(w, "%d relevant paper(s)\n\n", len(b.Entries))
	for i, e := range b.Entries {
		fmt.Fprintf(w, "%d. %s\n", i+1, e.Paper.Title)
		if len(e.Paper.Authors) > 0 {
			fmt.Fprintf(w, "   %s\n", strings.Join(e.Paper.Authors, ", "))
		}
		fmt.Fprintf(w, "   %s  %s\n", e.Paper.ID, e.Paper.URL)
		if e.Verdict.Reasoning != "" {
			fmt.Fprintf(w, "   Why: %s (%s)\n", e.Verdict.Reasoning, e.Verdict.Confidence)
		}
		fmt.Fprintf(w, "   %s\n\n", e.Summary)
	}
}

// WriteStats prints ledger statistics.
func WriteStats(w io.Writer, s types.LedgerStats) {
	fmt.Fprintf(w, "%-20s  %d\n", "papers", s.TotalPapers)
	fmt.Fprintf(w, "%-20s  %d\n", "relevant", s.RelevantPapers)
	fmt.Fprintf(w, "%-20s  %d\n", "briefings", s.Briefings)
	if !s.Oldest.IsZero() {
		fmt.Fprintf(w, "%-20s  %s\n", "oldest", s.Oldest.Format(time.RFC3339))
		fmt.Fprintf(w, "%-20s  %s\n", "newest", s.Newest.Format(time.RFC3339))
	}
	writeCounts(w, "by platform", s.ByPlatform)
	writeCounts(w, "by stage", s.ByStage)
}

func writeCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", title)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-24s  %d\n", k, counts[k])
	}
}
