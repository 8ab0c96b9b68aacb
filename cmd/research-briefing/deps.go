// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-briefing/internal/briefing"
	"github.com/pdiddy/research-briefing/internal/config"
	"github.com/pdiddy/research-briefing/internal/embedding"
	"github.com/pdiddy/research-briefing/internal/judge"
	"github.com/pdiddy/research-briefing/internal/keyword"
	"github.com/pdiddy/research-briefing/internal/ledger"
	"github.com/pdiddy/research-briefing/internal/observability"
	"github.com/pdiddy/research-briefing/internal/pipeline"
	"github.com/pdiddy/research-briefing/pkg/types"
)

// app bundles what a command needs for one invocation. The ledger is
// opened here and closed by Close.
type app struct {
	cfg     *types.Config
	logger  zerolog.Logger
	metrics *observability.Metrics
	ledger  *ledger.Ledger
}

// newApp opens the ledger at ledgerPath, or at the configured path when
// ledgerPath is empty.
func newApp(ctx context.Context, cfg *types.Config, ledgerPath string) (*app, error) {
	if ledgerPath == "" {
		ledgerPath = cfg.Ledger.Path
	}
	logger := observability.NewLogger(cfg.Logging)

	l, err := ledger.Open(ctx, ledgerPath)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("path", ledgerPath).Msg("ledger opened")

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		ledger:  l,
	}, nil
}

func (a *app) Close() {
	if err := a.ledger.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("closing ledger")
	}
}

// newOracle builds the judge backend named in the config.
func (a *app) newOracle() (judge.Oracle, error) {
	jc := a.cfg.Filter.Judge
	switch jc.Backend {
	case config.BackendAPI:
		if jc.APIKey == "" {
			return nil, types.NewConfigError("filter.judge.backend", "api backend has no API key")
		}
		return &judge.APIOracle{
			APIKey: jc.APIKey,
			Model:  jc.Model,
			Client: &http.Client{Timeout: jc.Timeout},
		}, nil
	default:
		o, err := judge.NewCLIOracle(jc.CLIPath, jc.Model)
		if err != nil {
			return nil, err
		}
		return o, nil
	}
}

// newPipeline wires the stages the configured mode needs. The returned
// oracle is nil when the judge stage is off.
func (a *app) newPipeline(ctx context.Context) (*pipeline.Pipeline, judge.Oracle, error) {
	fc := a.cfg.Filter
	deps := pipeline.Deps{
		Screen:  keyword.New(fc.Keywords),
		Ledger:  a.ledger,
		Logger:  a.logger,
		Metrics: a.metrics,
	}

	if fc.Mode.UsesEmbedding() {
		provider, err := embedding.NewProvider(fc.Embedding)
		if err != nil {
			return nil, nil, err
		}
		scorer, err := embedding.NewScorer(ctx, provider, fc.Embedding.Query, fc.Embedding.Threshold, fc.Embedding.Dimensions,
			embedding.WithCallTimeout(fc.Embedding.Timeout),
			embedding.WithRateLimit(fc.Embedding.RateLimit, fc.Embedding.Concurrency),
			embedding.WithObserver(a.metrics.ObserveEmbedding),
		)
		if err != nil {
			return nil, nil, err
		}
		a.logger.Info().
			Str("provider", scorer.Provider()).
			Float64("threshold", scorer.Threshold()).
			Msg("embedding scorer ready")
		deps.Scorer = scorer
	}

	var oracle judge.Oracle
	if fc.Mode.UsesJudge() {
		var err error
		oracle, err = a.newOracle()
		if err != nil {
			return nil, nil, err
		}
		rubric, err := judge.LoadRubric(fc.Judge.RubricPath)
		if err != nil {
			return nil, nil, err
		}
		j, err := judge.New(oracle, rubric,
			judge.WithTimeout(fc.Judge.Timeout),
			judge.WithAmbiguityLean(fc.Judge.AmbiguityLean),
			judge.WithHeuristicFallback(fc.Judge.HeuristicFallback),
			judge.WithMaxFullText(fc.Judge.MaxFullTextChars),
		)
		if err != nil {
			return nil, nil, err
		}
		a.logger.Info().
			Str("oracle", oracle.Name()).
			Str("rubric", rubric.Name).
			Str("rubric_version", rubric.Version).
			Msg("relevance judge ready")
		deps.Judge = j
	}

	p, err := pipeline.New(fc, deps)
	if err != nil {
		return nil, nil, err
	}
	return p, oracle, nil
}

// newSummarizer reuses the judge oracle when there is one. Otherwise it
// tries to build one and falls back to abstracts if that fails.
func (a *app) newSummarizer(oracle judge.Oracle) *briefing.Summarizer {
	if !a.cfg.Summarizer.Enabled {
		return briefing.NewSummarizer(nil, a.cfg.Summarizer, a.logger)
	}
	if oracle == nil {
		o, err := a.newOracle()
		if err != nil {
			a.logger.Warn().Err(err).Msg("no summarizer backend, using abstracts")
		} else {
			oracle = o
		}
	}
	return briefing.NewSummarizer(oracle, a.cfg.Summarizer, a.logger)
}

// writeMetrics exports the run metrics when a textfile is configured.
func (a *app) writeMetrics() {
	mc := a.cfg.Metrics
	if !mc.Enabled || mc.Textfile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(mc.Textfile); err != nil {
		a.logger.Warn().Err(err).Str("path", mc.Textfile).Msg("writing metrics")
		return
	}
	a.logger.Debug().Str("path", mc.Textfile).Msg("metrics written")
}
