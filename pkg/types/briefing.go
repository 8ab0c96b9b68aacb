// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// BriefingEntry is one accepted paper with its summary.
type BriefingEntry struct {
	Paper   Paper   `json:"paper" yaml:"paper"`
	Verdict Verdict `json:"verdict" yaml:"verdict"`

	// Summary is the generated summary, or the truncated abstract when
	// summarization failed or was disabled.
	Summary string `json:"summary" yaml:"summary"`

	// SummaryFallback is true when Summary is the truncated abstract.
	SummaryFallback bool `json:"summary_fallback,omitempty" yaml:"summary_fallback,omitempty"`
}

// Briefing is the daily output document.
type Briefing struct {
	// Date is the run date the briefing covers.
	Date time.Time `json:"date" yaml:"date"`

	// GeneratedAt is the time the briefing was assembled.
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`

	// Platforms lists the sources that contributed papers.
	Platforms []string `json:"platforms" yaml:"platforms"`

	Entries []BriefingEntry `json:"entries" yaml:"entries"`
	Summary RunSummary      `json:"summary" yaml:"summary"`
}

// DateKey returns the briefing's storage key (YYYY-MM-DD).
func (b Briefing) DateKey() string {
	return b.Date.Format(time.DateOnly)
}
