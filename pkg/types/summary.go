// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ProcessedRecord is one ledger entry. Records are append-only: the first
// write for a paper ID wins and later writes are no-ops.
type ProcessedRecord struct {
	// PaperID is the normalized paper identifier (primary key).
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// FirstSeen is the run date on which the paper was first decided.
	FirstSeen time.Time `json:"first_seen" yaml:"first_seen"`

	// Relevant is the recorded decision.
	Relevant bool `json:"relevant" yaml:"relevant"`

	// Stage is the stage that decided the paper.
	Stage Stage `json:"stage" yaml:"stage"`

	// ProcessedAt is the wall-clock time the record was written.
	ProcessedAt time.Time `json:"processed_at" yaml:"processed_at"`

	// RubricVersion identifies the rubric in force when the paper was judged.
	RubricVersion string `json:"rubric_version,omitempty" yaml:"rubric_version,omitempty"`

	// Platform is the source server.
	Platform Platform `json:"platform,omitempty" yaml:"platform,omitempty"`

	// Title is kept for human inspection of the ledger.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// RunSummary aggregates the verdicts of one pipeline run.
type RunSummary struct {
	RunID         string        `json:"run_id" yaml:"run_id"`
	Mode          FilterMode    `json:"mode" yaml:"mode"`
	RubricVersion string        `json:"rubric_version,omitempty" yaml:"rubric_version,omitempty"`
	StartedAt     time.Time     `json:"started_at" yaml:"started_at"`
	Duration      time.Duration `json:"duration" yaml:"duration"`

	// Input is the number of papers handed to the pipeline.
	Input int `json:"input" yaml:"input"`

	Accepted          int `json:"accepted" yaml:"accepted"`
	Rejected          int `json:"rejected" yaml:"rejected"`
	ExcludedRetryable int `json:"excluded_retryable" yaml:"excluded_retryable"`
	AlreadyProcessed  int `json:"already_processed" yaml:"already_processed"`

	// Failure categories. A paper counted here is also counted in exactly one
	// terminal state above.
	Invalid               int `json:"invalid" yaml:"invalid"`
	EmbeddingErrors       int `json:"embedding_errors" yaml:"embedding_errors"`
	JudgeInvocationErrors int `json:"judge_invocation_errors" yaml:"judge_invocation_errors"`
	JudgeTimeouts         int `json:"judge_timeouts" yaml:"judge_timeouts"`
	JudgeParseErrors      int `json:"judge_parse_errors" yaml:"judge_parse_errors"`
	JudgeFallbacks        int `json:"judge_fallbacks" yaml:"judge_fallbacks"`
	Deferred              int `json:"deferred" yaml:"deferred"`
	LedgerErrors          int `json:"ledger_errors" yaml:"ledger_errors"`

	// AcceptedIDs lists accepted papers in input order.
	AcceptedIDs []string `json:"accepted_ids" yaml:"accepted_ids"`

	// RetryableIDs lists excluded-retryable papers in input order.
	RetryableIDs []string `json:"retryable_ids" yaml:"retryable_ids"`
}

// Total returns the number of papers that reached a terminal state.
func (s RunSummary) Total() int {
	return s.Accepted + s.Rejected + s.ExcludedRetryable + s.AlreadyProcessed
}

// HasRetryable reports whether any paper must be retried in a later run.
func (s RunSummary) HasRetryable() bool {
	return s.ExcludedRetryable > 0
}

// LedgerStats describes the contents of the dedup ledger.
type LedgerStats struct {
	TotalPapers    int            `json:"total_papers" yaml:"total_papers"`
	RelevantPapers int            `json:"relevant_papers" yaml:"relevant_papers"`
	ByPlatform     map[string]int `json:"by_platform" yaml:"by_platform"`
	ByStage        map[string]int `json:"by_stage" yaml:"by_stage"`
	Briefings      int            `json:"briefings" yaml:"briefings"`
	Oldest         time.Time      `json:"oldest,omitempty" yaml:"oldest,omitempty"`
	Newest         time.Time      `json:"newest,omitempty" yaml:"newest,omitempty"`
}
