// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads and validates the research-briefing configuration.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/research-briefing/internal/embedding"
	"github.com/pdiddy/research-briefing/internal/observability"
	"github.com/pdiddy/research-briefing/internal/secrets"
	"github.com/pdiddy/research-briefing/pkg/types"
)

// EnvPrefix prefixes every environment override (RESEARCH_BRIEFING_FILTER_MODE).
const EnvPrefix = "RESEARCH_BRIEFING"

// FileName is the config file name without extension.
const FileName = "research-briefing"

// Judge backends.
const (
	BackendCLI = "cli"
	BackendAPI = "api"
)

// DefaultKeywords is the keyword prefilter used when none are configured.
var DefaultKeywords = []string{
	"agent",
	"multi-agent",
	"autonomous",
	"scientific discovery",
	"research automation",
	"ai scientist",
	"llm",
	"large language model",
	"tool use",
	"laboratory automation",
	"self-driving lab",
	"hypothesis generation",
}

// Load applies defaults and environment overrides to v, reads the config
// file if v has one configured, and returns the validated configuration.
// API keys come from loaded (the secrets directory and .env file) with the
// process environment taking precedence.
func Load(v *viper.Viper, loaded map[string]string) (*types.Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	loadSecrets(&cfg, loaded)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadSecrets fills the API key fields, which are never read from the
// config file.
func loadSecrets(cfg *types.Config, loaded map[string]string) {
	switch strings.ToLower(cfg.Filter.Embedding.Provider) {
	case embedding.ProviderOpenAI:
		cfg.Filter.Embedding.APIKey = secrets.Lookup(loaded, secrets.OpenAIAPIKey)
	case embedding.ProviderZhipu:
		cfg.Filter.Embedding.APIKey = secrets.Lookup(loaded, secrets.ZhipuAPIKey)
	}
	cfg.Filter.Judge.APIKey = secrets.Lookup(loaded, secrets.AnthropicAPIKey)
}

func setDefaults(v *viper.Viper) {
	// Filter
	v.SetDefault("filter.mode", string(types.ModeHybrid))
	v.SetDefault("filter.keywords", DefaultKeywords)
	v.SetDefault("filter.max_candidates", 0)

	v.SetDefault("filter.embedding.provider", embedding.ProviderZhipu)
	v.SetDefault("filter.embedding.model", "")
	v.SetDefault("filter.embedding.base_url", "")
	v.SetDefault("filter.embedding.query", embedding.DefaultQuery)
	v.SetDefault("filter.embedding.threshold", embedding.DefaultThreshold)
	v.SetDefault("filter.embedding.concurrency", 4)
	v.SetDefault("filter.embedding.timeout", embedding.DefaultTimeout)
	v.SetDefault("filter.embedding.rate_limit", embedding.DefaultRateLimit)
	v.SetDefault("filter.embedding.error_policy", string(types.EmbeddingErrorRetry))
	v.SetDefault("filter.embedding.dimensions", 0)

	v.SetDefault("filter.judge.backend", BackendCLI)
	v.SetDefault("filter.judge.cli_path", "")
	v.SetDefault("filter.judge.model", "")
	v.SetDefault("filter.judge.rubric_path", "skills/paper-relevance-judge/SKILL.md")
	v.SetDefault("filter.judge.concurrency", types.MaxJudgeConcurrency)
	v.SetDefault("filter.judge.timeout", "2m")
	v.SetDefault("filter.judge.heuristic_fallback", false)
	v.SetDefault("filter.judge.ambiguity_lean", string(types.LeanExclude))
	v.SetDefault("filter.judge.max_full_text_chars", 8000)

	// Sources
	v.SetDefault("sources.days_back", 1)
	v.SetDefault("sources.user_agent", "")
	v.SetDefault("sources.timeout", "60s")
	v.SetDefault("sources.arxiv.enabled", true)
	v.SetDefault("sources.arxiv.categories", []string{"cs.AI", "cs.MA", "cs.CL", "cs.LG"})
	v.SetDefault("sources.arxiv.max_results", 100)
	v.SetDefault("sources.biorxiv.enabled", true)
	v.SetDefault("sources.biorxiv.categories", []string{"bioinformatics", "synthetic biology", "systems biology"})
	v.SetDefault("sources.biorxiv.max_papers", 1000)
	v.SetDefault("sources.medrxiv.enabled", false)
	v.SetDefault("sources.medrxiv.categories", []string{"health informatics"})
	v.SetDefault("sources.medrxiv.max_papers", 1000)

	// Summarizer
	v.SetDefault("summarizer.enabled", true)
	v.SetDefault("summarizer.language", "zh-CN")
	v.SetDefault("summarizer.max_length", 300)
	v.SetDefault("summarizer.timeout", "10m")
	v.SetDefault("summarizer.concurrency", 2)

	// Ledger
	v.SetDefault("ledger.path", "data/papers.db")
	v.SetDefault("ledger.retain_days", 90)

	// Output
	v.SetDefault("output.dir", "data/briefings")
	v.SetDefault("output.format", string(types.FormatJSON))

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")

	// Metrics
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile", "")
}

// Validate checks cfg for fatal problems and returns every one found,
// joined. Each is a *types.ConfigError, so errors.Is(err, types.ErrConfig)
// holds. Mode aliases are normalized in place.
func Validate(cfg *types.Config) error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, types.NewConfigError(field, format, args...))
	}

	mode, ok := types.ParseFilterMode(string(cfg.Filter.Mode))
	if !ok {
		add("filter.mode", "unknown mode %q (want keywords, embedding, judge, or hybrid)", cfg.Filter.Mode)
	} else {
		cfg.Filter.Mode = mode
	}

	emb := cfg.Filter.Embedding
	switch strings.ToLower(emb.Provider) {
	case embedding.ProviderOpenAI, embedding.ProviderZhipu, embedding.ProviderOllama:
	default:
		if mode.UsesEmbedding() {
			add("filter.embedding.provider", "unknown provider %q (want openai, zhipu, or ollama)", emb.Provider)
		}
	}
	if emb.Threshold < -1 || emb.Threshold > 1 {
		add("filter.embedding.threshold", "must be between -1 and 1, got %v", emb.Threshold)
	}
	if emb.Concurrency < 0 || emb.Concurrency > types.MaxEmbeddingConcurrency {
		add("filter.embedding.concurrency", "must be between 1 and %d, got %d", types.MaxEmbeddingConcurrency, emb.Concurrency)
	}
	if emb.RateLimit < 0 {
		add("filter.embedding.rate_limit", "must not be negative")
	}
	switch emb.ErrorPolicy {
	case types.EmbeddingErrorRetry, types.EmbeddingErrorPass, types.EmbeddingErrorDrop, "":
	default:
		add("filter.embedding.error_policy", "unknown policy %q (want retry, pass, or drop)", emb.ErrorPolicy)
	}

	jc := cfg.Filter.Judge
	if jc.Concurrency < 0 || jc.Concurrency > types.MaxJudgeConcurrency {
		add("filter.judge.concurrency", "must be 1 or %d, got %d", types.MaxJudgeConcurrency, jc.Concurrency)
	}
	switch jc.Backend {
	case BackendCLI, BackendAPI:
	default:
		add("filter.judge.backend", "unknown backend %q (want cli or api)", jc.Backend)
	}
	switch jc.AmbiguityLean {
	case types.LeanInclude, types.LeanExclude, "":
	default:
		add("filter.judge.ambiguity_lean", "unknown lean %q (want include or exclude)", jc.AmbiguityLean)
	}
	if mode.UsesJudge() && jc.RubricPath == "" {
		add("filter.judge.rubric_path", "required when the judge stage runs")
	}
	if cfg.Filter.MaxCandidates < 0 {
		add("filter.max_candidates", "must not be negative")
	}

	if cfg.Sources.DaysBack < 0 {
		add("sources.days_back", "must not be negative")
	}
	if cfg.Ledger.Path == "" {
		add("ledger.path", "required")
	}
	if cfg.Ledger.RetainDays < 0 {
		add("ledger.retain_days", "must not be negative")
	}
	switch cfg.Output.Format {
	case types.FormatJSON, types.FormatYAML:
	default:
		add("output.format", "unknown format %q (want json or yaml)", cfg.Output.Format)
	}
	if !observability.ValidLevel(cfg.Logging.Level) {
		add("logging.level", "unknown level %q", cfg.Logging.Level)
	}

	return errors.Join(errs...)
}

// ValidateCredentials checks that the API keys needed by the configured
// mode are present. Commands that only read the ledger skip it.
func ValidateCredentials(cfg *types.Config) error {
	var errs []error
	emb := cfg.Filter.Embedding
	if cfg.Filter.Mode.UsesEmbedding() && emb.APIKey == "" {
		switch strings.ToLower(emb.Provider) {
		case embedding.ProviderOpenAI, embedding.ProviderZhipu:
			key := providerKey(emb.Provider)
			errs = append(errs, types.NewConfigError("filter.embedding.provider",
				"%s requires an API key (%s or .secrets/%s)", emb.Provider, secrets.EnvVar(key), key))
		}
	}
	if cfg.Filter.Mode.UsesJudge() && cfg.Filter.Judge.Backend == BackendAPI && cfg.Filter.Judge.APIKey == "" {
		errs = append(errs, types.NewConfigError("filter.judge.backend",
			"api requires an API key (%s or .secrets/%s)", secrets.EnvVar(secrets.AnthropicAPIKey), secrets.AnthropicAPIKey))
	}
	return errors.Join(errs...)
}

func providerKey(provider string) string {
	if strings.EqualFold(provider, embedding.ProviderOpenAI) {
		return secrets.OpenAIAPIKey
	}
	return secrets.ZhipuAPIKey
}
