// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// FilterMode selects which stages the filter pipeline runs.
type FilterMode string

const (
	ModeKeywords  FilterMode = "keywords"
	ModeEmbedding FilterMode = "embedding"
	ModeJudge     FilterMode = "judge"
	ModeHybrid    FilterMode = "hybrid"
)

// ParseFilterMode accepts the canonical mode names plus the long-form
// aliases ("keywords-only", "embedding-only", "judge-only", "claude").
func ParseFilterMode(s string) (FilterMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keywords", "keyword", "keywords-only":
		return ModeKeywords, true
	case "embedding", "embedding-only":
		return ModeEmbedding, true
	case "judge", "judge-only", "claude":
		return ModeJudge, true
	case "hybrid":
		return ModeHybrid, true
	}
	return "", false
}

// UsesEmbedding reports whether the mode runs the embedding stage.
func (m FilterMode) UsesEmbedding() bool {
	return m == ModeEmbedding || m == ModeHybrid
}

// UsesJudge reports whether the mode runs the judge stage.
func (m FilterMode) UsesJudge() bool {
	return m == ModeJudge || m == ModeHybrid
}

// EmbeddingErrorPolicy decides what happens to a paper whose embedding
// call failed.
type EmbeddingErrorPolicy string

const (
	// EmbeddingErrorRetry excludes the paper without recording it.
	EmbeddingErrorRetry EmbeddingErrorPolicy = "retry"
	// EmbeddingErrorPass lets the paper continue as if it had passed.
	EmbeddingErrorPass EmbeddingErrorPolicy = "pass"
	// EmbeddingErrorDrop rejects and records the paper.
	EmbeddingErrorDrop EmbeddingErrorPolicy = "drop"
)

// AmbiguityLean is the direction the judge leans on borderline papers.
type AmbiguityLean string

const (
	LeanInclude AmbiguityLean = "include"
	LeanExclude AmbiguityLean = "exclude"
)

// MaxJudgeConcurrency is the hard ceiling on simultaneous judge calls.
// The external judge is slow and rate-limited; more parallelism only
// produces failures.
const MaxJudgeConcurrency = 2

// MaxEmbeddingConcurrency bounds the embedding worker pool.
const MaxEmbeddingConcurrency = 16

// Config is the full application configuration.
type Config struct {
	Filter     FilterConfig     `json:"filter" yaml:"filter" mapstructure:"filter"`
	Sources    SourcesConfig    `json:"sources" yaml:"sources" mapstructure:"sources"`
	Summarizer SummarizerConfig `json:"summarizer" yaml:"summarizer" mapstructure:"summarizer"`
	Ledger     LedgerConfig     `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
	Output     OutputConfig     `json:"output" yaml:"output" mapstructure:"output"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging" mapstructure:"logging"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

// FilterConfig holds settings for the relevance-filtering pipeline.
type FilterConfig struct {
	// Mode selects the stages to run (default hybrid).
	Mode FilterMode `json:"mode" yaml:"mode" mapstructure:"mode"`

	// Keywords is the prefilter keyword list. Matching is a case-insensitive
	// substring test on title and abstract.
	Keywords []string `json:"keywords" yaml:"keywords" mapstructure:"keywords"`

	// MaxCandidates caps how many keyword-passing papers continue to the
	// expensive stages in one run. Zero means unlimited.
	MaxCandidates int `json:"max_candidates" yaml:"max_candidates" mapstructure:"max_candidates"`

	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding" mapstructure:"embedding"`
	Judge     JudgeConfig     `json:"judge" yaml:"judge" mapstructure:"judge"`
}

// EmbeddingConfig holds settings for the embedding scorer.
type EmbeddingConfig struct {
	// Provider is one of "openai", "zhipu", "ollama".
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the embedding model name; empty selects the provider default.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// APIKey is loaded from secrets or the environment, never from the
	// config file.
	APIKey string `json:"-" yaml:"-" mapstructure:"-"`

	// Query is the topic description compared against every paper.
	Query string `json:"query" yaml:"query" mapstructure:"query"`

	// Threshold is the inclusive pass threshold (default 0.50).
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`

	// Concurrency is the embedding worker pool size (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// Timeout bounds one embedding call (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// RateLimit is the sustained requests per second (default 5).
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`

	// ErrorPolicy decides the fate of papers whose embedding failed
	// (default retry).
	ErrorPolicy EmbeddingErrorPolicy `json:"error_policy" yaml:"error_policy" mapstructure:"error_policy"`

	// Dimensions is the expected vector length; zero accepts whatever the
	// provider returns for the topic query.
	Dimensions int `json:"dimensions" yaml:"dimensions" mapstructure:"dimensions"`
}

// JudgeConfig holds settings for the relevance judge.
type JudgeConfig struct {
	// Backend is "cli" (subprocess) or "api" (HTTP Messages API).
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// CLIPath is the judge executable; empty searches PATH for "claude".
	CLIPath string `json:"cli_path" yaml:"cli_path" mapstructure:"cli_path"`

	// Model is the model name for the API backend.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is loaded from secrets or the environment.
	APIKey string `json:"-" yaml:"-" mapstructure:"-"`

	// RubricPath is the Markdown rubric file.
	RubricPath string `json:"rubric_path" yaml:"rubric_path" mapstructure:"rubric_path"`

	// Concurrency is the judge pool size, 1 or 2 (default 2).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// Timeout bounds one judge call (default 2m).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// HeuristicFallback lets the parser recover a decision from free text
	// when no decision line is present. Recovered decisions are flagged
	// degraded with LOW confidence.
	HeuristicFallback bool `json:"heuristic_fallback" yaml:"heuristic_fallback" mapstructure:"heuristic_fallback"`

	// AmbiguityLean tells the judge which way to decide borderline papers
	// (default exclude).
	AmbiguityLean AmbiguityLean `json:"ambiguity_lean" yaml:"ambiguity_lean" mapstructure:"ambiguity_lean"`

	// MaxFullTextChars truncates full text included in the prompt
	// (default 8000).
	MaxFullTextChars int `json:"max_full_text_chars" yaml:"max_full_text_chars" mapstructure:"max_full_text_chars"`
}

// SourcesConfig holds settings for the fetch stage.
type SourcesConfig struct {
	// DaysBack is the size of the submission window ending at the run date.
	DaysBack int `json:"days_back" yaml:"days_back" mapstructure:"days_back"`

	// UserAgent is sent with every source request.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// Timeout bounds one source request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	Arxiv   ArxivSourceConfig    `json:"arxiv" yaml:"arxiv" mapstructure:"arxiv"`
	Biorxiv PreprintSourceConfig `json:"biorxiv" yaml:"biorxiv" mapstructure:"biorxiv"`
	Medrxiv PreprintSourceConfig `json:"medrxiv" yaml:"medrxiv" mapstructure:"medrxiv"`
}

// ArxivSourceConfig configures the arXiv fetcher.
type ArxivSourceConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Categories []string `json:"categories" yaml:"categories" mapstructure:"categories"`
	MaxResults int      `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// PreprintSourceConfig configures a bioRxiv or medRxiv fetcher.
type PreprintSourceConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Categories []string `json:"categories" yaml:"categories" mapstructure:"categories"`
	MaxPapers  int      `json:"max_papers" yaml:"max_papers" mapstructure:"max_papers"`
}

// SummarizerConfig holds settings for summarizing accepted papers.
type SummarizerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Language is the summary language (e.g. "en", "zh-CN").
	Language string `json:"language" yaml:"language" mapstructure:"language"`

	// MaxLength is the target summary length in characters.
	MaxLength int `json:"max_length" yaml:"max_length" mapstructure:"max_length"`

	Timeout     time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	Concurrency int           `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// LedgerConfig locates the dedup ledger.
type LedgerConfig struct {
	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// RetainDays is the retention window applied by the cleanup command.
	RetainDays int `json:"retain_days" yaml:"retain_days" mapstructure:"retain_days"`
}

// OutputFormat selects the briefing file encoding.
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

// OutputConfig controls where briefings are written.
type OutputConfig struct {
	Dir    string       `json:"dir" yaml:"dir" mapstructure:"dir"`
	Format OutputFormat `json:"format" yaml:"format" mapstructure:"format"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
	Output string `json:"output" yaml:"output" mapstructure:"output"`
}

// MetricsConfig controls run metrics export.
type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Textfile, when set, receives the run metrics in Prometheus text format
	// for the node exporter textfile collector.
	Textfile string `json:"textfile" yaml:"textfile" mapstructure:"textfile"`
}
