// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embedding scores papers by cosine similarity between their
// embedding and a fixed topic-query embedding.
package embedding

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/research-briefing/pkg/types"
)

// Provider turns text into a vector. One provider serves a whole run, so
// every vector the scorer compares lives in the same space.
type Provider interface {
	// Name identifies the provider and model (e.g. "openai/text-embedding-3-small").
	Name() string

	// Embed returns the embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider names accepted in configuration.
const (
	ProviderOpenAI = "openai"
	ProviderZhipu  = "zhipu"
	ProviderOllama = "ollama"
)

// DefaultHTTPTimeout is the client-level timeout for provider requests.
// The scorer applies its own per-call deadline on top.
const DefaultHTTPTimeout = 60 * time.Second

// options configures an HTTP-backed provider.
type options struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

// Option configures a provider.
type Option func(*options)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(url, "/") }
}

// WithModel sets the embedding model.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

func buildOptions(baseURL, model string, opts []Option) options {
	o := options{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewProvider builds the provider named in cfg. Unknown providers and
// missing credentials are configuration errors.
func NewProvider(cfg types.EmbeddingConfig) (Provider, error) {
	var opts []Option
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, WithModel(cfg.Model))
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, types.NewConfigError("filter.embedding.provider", "openai requires an API key (OPENAI_API_KEY or .secrets/openai-api-key)")
		}
		return NewOpenAIProvider(append(opts, WithAPIKey(cfg.APIKey))...), nil
	case ProviderZhipu:
		if cfg.APIKey == "" {
			return nil, types.NewConfigError("filter.embedding.provider", "zhipu requires an API key (ZHIPU_API_KEY or .secrets/zhipu-api-key)")
		}
		return NewZhipuProvider(append(opts, WithAPIKey(cfg.APIKey))...), nil
	case ProviderOllama:
		return NewOllamaProvider(opts...), nil
	}
	return nil, types.NewConfigError("filter.embedding.provider", "unknown provider %q (want openai, zhipu, or ollama)", cfg.Provider)
}
