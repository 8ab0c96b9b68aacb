// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/research-briefing/pkg/types"
)

const (
	// DefaultThreshold is the inclusive similarity pass mark.
	DefaultThreshold = 0.50

	// DefaultTimeout bounds one embedding call.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the sustained provider request rate per second.
	DefaultRateLimit = 5.0
)

// DefaultQuery describes the research topic papers are compared against.
const DefaultQuery = "AI agents and multi-agent systems for scientific research, " +
	"autonomous research assistants, LLM-powered scientific tools, " +
	"machine learning agents for discovery and automation"

// ErrEmptyText is returned for a paper with no title or abstract text.
var ErrEmptyText = errors.New("paper has no text to embed")

// DimensionError reports a vector whose length differs from the query
// vector, which would mean two embedding spaces are being compared.
type DimensionError struct {
	Got, Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension %d does not match query dimension %d", e.Got, e.Want)
}

// Scorer compares papers against a topic query. The query is embedded
// once at construction; Score is safe for concurrent use.
type Scorer struct {
	provider  Provider
	query     []float32
	threshold float64
	timeout   time.Duration
	limiter   *rate.Limiter
	observe   func(time.Duration)
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithCallTimeout sets the per-call deadline.
func WithCallTimeout(d time.Duration) ScorerOption {
	return func(s *Scorer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRateLimit sets the sustained request rate and burst. A non-positive
// rate disables limiting.
func WithRateLimit(perSecond float64, burst int) ScorerOption {
	return func(s *Scorer) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithObserver registers a callback receiving each call's latency.
func WithObserver(fn func(time.Duration)) ScorerOption {
	return func(s *Scorer) { s.observe = fn }
}

// NewScorer embeds query with provider and returns a ready Scorer. A
// failure to embed the query makes the whole stage unusable and is
// reported as a configuration error. When wantDims is positive the query
// vector must have exactly that length.
func NewScorer(ctx context.Context, provider Provider, query string, threshold float64, wantDims int, opts ...ScorerOption) (*Scorer, error) {
	if provider == nil {
		return nil, types.NewConfigError("filter.embedding.provider", "no embedding provider configured")
	}
	if threshold < -1 || threshold > 1 {
		return nil, types.NewConfigError("filter.embedding.threshold", "%.3f is outside [-1, 1]", threshold)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		query = DefaultQuery
	}

	s := &Scorer{
		provider:  provider,
		threshold: threshold,
		timeout:   DefaultTimeout,
		limiter:   rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, types.NewConfigError("filter.embedding.query", "embedding topic query with %s: %v", provider.Name(), err)
	}
	if wantDims > 0 && len(vec) != wantDims {
		return nil, types.NewConfigError("filter.embedding.dimensions", "%s returned %d dimensions, configured %d", provider.Name(), len(vec), wantDims)
	}
	s.query = vec
	return s, nil
}

// Provider returns the provider name the query was embedded with.
func (s *Scorer) Provider() string { return s.provider.Name() }

// Threshold returns the inclusive pass mark.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Passes reports whether score meets the threshold (inclusive).
func (s *Scorer) Passes(score float64) bool { return score >= s.threshold }

// Score returns the cosine similarity between the paper's title+abstract
// and the topic query.
func (s *Scorer) Score(ctx context.Context, p types.Paper) (float64, error) {
	text := strings.TrimSpace(p.Text())
	if text == "" {
		return 0, ErrEmptyText
	}
	vec, err := s.embed(ctx, text)
	if err != nil {
		return 0, err
	}
	if len(vec) != len(s.query) {
		return 0, &DimensionError{Got: len(vec), Want: len(s.query)}
	}
	return Cosine(vec, s.query), nil
}

func (s *Scorer) embed(ctx context.Context, text string) ([]float32, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	vec, err := s.provider.Embed(callCtx, text)
	if s.observe != nil {
		s.observe(time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.provider.Name(), err)
	}
	return vec, nil
}
