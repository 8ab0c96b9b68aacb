// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs papers through the relevance stages: ledger
// lookup, keyword screen, embedding score and judge, according to the
// configured mode.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-briefing/internal/judge"
	"github.com/pdiddy/research-briefing/internal/observability"
	"github.com/pdiddy/research-briefing/pkg/types"
)

// DefaultEmbeddingConcurrency is the embedding pool size when unset.
const DefaultEmbeddingConcurrency = 4

// Screen is the keyword prefilter.
type Screen interface {
	Passes(p types.Paper) bool
}

// Scorer is the embedding similarity stage.
type Scorer interface {
	Score(ctx context.Context, p types.Paper) (float64, error)
	Passes(score float64) bool
}

// RelevanceOracle is the judge stage.
type RelevanceOracle interface {
	Judge(ctx context.Context, p types.Paper) (judge.Judgment, error)
	RubricVersion() string
}

// Ledger is the cross-run record of decided papers.
type Ledger interface {
	Seen(ctx context.Context, ids []string) (map[string]bool, error)
	Record(ctx context.Context, rec types.ProcessedRecord) (bool, error)
}

// Deps are the collaborators a Pipeline drives. Scorer and Judge are only
// required when the mode uses them.
type Deps struct {
	Screen  Screen
	Scorer  Scorer
	Judge   RelevanceOracle
	Ledger  Ledger
	Logger  zerolog.Logger
	Metrics *observability.Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Pipeline filters batches of papers. A Pipeline may run several batches
// but not concurrently with itself against the same ledger.
type Pipeline struct {
	mode          types.FilterMode
	maxCandidates int
	embedWorkers  int
	judgeWorkers  int
	policy        types.EmbeddingErrorPolicy

	screen  Screen
	scorer  Scorer
	judge   RelevanceOracle
	ledger  Ledger
	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// New validates cfg and deps. Every failure is a *types.ConfigError, so a
// misconfigured run stops before any paper is touched.
func New(cfg types.FilterConfig, deps Deps) (*Pipeline, error) {
	mode, ok := types.ParseFilterMode(string(cfg.Mode))
	if !ok {
		return nil, types.NewConfigError("filter.mode", "unknown mode %q (want keywords, embedding, judge or hybrid)", cfg.Mode)
	}

	p := &Pipeline{
		mode:          mode,
		maxCandidates: cfg.MaxCandidates,
		embedWorkers:  cfg.Embedding.Concurrency,
		judgeWorkers:  cfg.Judge.Concurrency,
		policy:        cfg.Embedding.ErrorPolicy,
		screen:        deps.Screen,
		scorer:        deps.Scorer,
		judge:         deps.Judge,
		ledger:        deps.Ledger,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		now:           deps.Now,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.embedWorkers == 0 {
		p.embedWorkers = DefaultEmbeddingConcurrency
	}
	if p.judgeWorkers == 0 {
		p.judgeWorkers = types.MaxJudgeConcurrency
	}
	if p.policy == "" {
		p.policy = types.EmbeddingErrorRetry
	}

	switch {
	case p.screen == nil:
		return nil, types.NewConfigError("filter.keywords", "no keyword screen configured")
	case p.ledger == nil:
		return nil, types.NewConfigError("ledger.path", "no ledger configured")
	case mode.UsesEmbedding() && p.scorer == nil:
		return nil, types.NewConfigError("filter.embedding.provider", "mode %s needs an embedding scorer", mode)
	case mode.UsesJudge() && p.judge == nil:
		return nil, types.NewConfigError("filter.judge.backend", "mode %s needs a relevance judge", mode)
	case p.maxCandidates < 0:
		return nil, types.NewConfigError("filter.max_candidates", "must not be negative, got %d", p.maxCandidates)
	case p.embedWorkers < 1 || p.embedWorkers > types.MaxEmbeddingConcurrency:
		return nil, types.NewConfigError("filter.embedding.concurrency", "must be between 1 and %d, got %d", types.MaxEmbeddingConcurrency, p.embedWorkers)
	case p.judgeWorkers < 1 || p.judgeWorkers > types.MaxJudgeConcurrency:
		return nil, types.NewConfigError("filter.judge.concurrency", "must be between 1 and %d, got %d", types.MaxJudgeConcurrency, p.judgeWorkers)
	}
	switch p.policy {
	case types.EmbeddingErrorRetry, types.EmbeddingErrorPass, types.EmbeddingErrorDrop:
	default:
		return nil, types.NewConfigError("filter.embedding.error_policy", "unknown policy %q (want retry, pass or drop)", p.policy)
	}
	return p, nil
}

// Mode returns the resolved filter mode.
func (p *Pipeline) Mode() types.FilterMode { return p.mode }

// Result is the outcome of one Run. Papers and Verdicts are parallel
// slices in input order.
//
// Rejected papers are already in the ledger. Accepted papers are held
// until Commit, so a caller that fails to publish them leaves them
// unrecorded and the next run picks them up again.
type Result struct {
	Papers   []types.Paper
	Verdicts []types.Verdict
	Summary  types.RunSummary

	pipeline *Pipeline
	pending  []types.ProcessedRecord
}

// Pending returns the IDs of accepted papers not yet committed.
func (r *Result) Pending() []string {
	ids := make([]string, len(r.pending))
	for i, rec := range r.pending {
		ids[i] = rec.PaperID
	}
	return ids
}

// Commit records the accepted papers in the ledger. Call it once they
// have been published. Failed writes are counted in Summary.LedgerErrors
// and returned joined; the rest are still recorded. A second Commit is a
// no-op.
func (r *Result) Commit(ctx context.Context) error {
	if r.pipeline == nil {
		return nil
	}
	var errs []error
	for _, rec := range r.pending {
		if err := r.pipeline.record(ctx, rec); err != nil {
			r.Summary.LedgerErrors++
			errs = append(errs, fmt.Errorf("recording %s: %w", rec.PaperID, err))
		}
	}
	r.pending = nil
	return errors.Join(errs...)
}

// Accepted returns the accepted papers with their verdicts, in input order.
func (r *Result) Accepted() []types.BriefingEntry {
	var out []types.BriefingEntry
	for i, v := range r.Verdicts {
		if v.State == types.StateAccepted {
			out = append(out, types.BriefingEntry{Paper: r.Papers[i], Verdict: v})
		}
	}
	return out
}

// Run filters papers and returns exactly one verdict per input paper.
// Paper-local failures become verdicts; only a cancelled context before
// work starts or a failed ledger lookup returns an error.
func (p *Pipeline) Run(ctx context.Context, papers []types.Paper) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := p.now()
	runID := uuid.NewString()
	r := &run{
		p:             p,
		logger:        observability.WithRun(p.logger, runID, p.mode),
		papers:        papers,
		runDate:       start.UTC().Truncate(24 * time.Hour),
		scores:        make([]*float64, len(papers)),
		passedOnError: make([]bool, len(papers)),
		verdicts:      make([]types.Verdict, len(papers)),
	}
	r.summary = types.RunSummary{
		RunID:     runID,
		Mode:      p.mode,
		StartedAt: start,
		Input:     len(papers),
	}
	if p.mode.UsesJudge() {
		r.summary.RubricVersion = p.judge.RubricVersion()
	}

	r.logger.Info().
		Int("papers", len(papers)).
		Str("rubric_version", r.summary.RubricVersion).
		Msg("filter run started")

	candidates, err := r.screen(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Info().Int("candidates", len(candidates)).Msg("keyword screen finished")

	if p.mode.UsesEmbedding() {
		candidates = r.embed(ctx, candidates)
		r.logger.Info().Int("candidates", len(candidates)).Msg("embedding stage finished")
	}
	if p.mode.UsesJudge() {
		r.judgeAll(ctx, candidates)
	}

	summary := r.finish()
	r.logger.Info().
		Int("accepted", summary.Accepted).
		Int("rejected", summary.Rejected).
		Int("excluded_retryable", summary.ExcludedRetryable).
		Int("already_processed", summary.AlreadyProcessed).
		Int("ledger_errors", summary.LedgerErrors).
		Dur("duration", summary.Duration).
		Msg("filter run finished")

	return &Result{
		Papers:   papers,
		Verdicts: r.verdicts,
		Summary:  summary,
		pipeline: p,
		pending:  r.pending,
	}, nil
}

// run is the state of one Run. Each index of scores and passedOnError is
// written by at most one worker before the next stage starts; verdicts,
// pending and ledgerErrors are written only under mu.
type run struct {
	p       *Pipeline
	logger  zerolog.Logger
	papers  []types.Paper
	runDate time.Time
	summary types.RunSummary

	scores        []*float64
	passedOnError []bool

	mu           sync.Mutex
	verdicts     []types.Verdict
	pending      []types.ProcessedRecord
	ledgerErrors int
}

// screen settles invalid, already-processed and keyword-rejected papers
// synchronously and returns the indexes that go on to the expensive stages.
func (r *run) screen(ctx context.Context) ([]int, error) {
	ids := make([]string, len(r.papers))
	lookup := make([]string, 0, len(r.papers))
	for i, paper := range r.papers {
		ids[i] = paper.Key()
		if ids[i] != "" {
			lookup = append(lookup, ids[i])
		}
	}

	seen, err := r.p.ledger.Seen(ctx, lookup)
	if err != nil {
		return nil, fmt.Errorf("checking ledger: %w", err)
	}

	inRun := make(map[string]bool, len(lookup))
	var candidates []int
	for i, paper := range r.papers {
		id := ids[i]
		switch {
		case id == "":
			r.finalize(ctx, i, types.Verdict{
				State: types.StateRejected,
				Stage: types.StageInvalid,
				Error: "paper has no identifier",
			})
			continue
		case seen[id]:
			r.finalize(ctx, i, types.Verdict{PaperID: id, State: types.StateAlreadyProcessed, Stage: types.StageLedger})
			continue
		case inRun[id]:
			r.finalize(ctx, i, types.Verdict{
				PaperID: id,
				State:   types.StateAlreadyProcessed,
				Stage:   types.StageLedger,
				Error:   "duplicate of an earlier paper in this batch",
			})
			continue
		}
		inRun[id] = true

		switch {
		case !r.p.screen.Passes(paper):
			r.finalize(ctx, i, types.Verdict{PaperID: id, State: types.StateRejected, Stage: types.StageKeywordReject})
		case r.p.mode == types.ModeKeywords:
			r.finalize(ctx, i, types.Verdict{PaperID: id, Relevant: true, State: types.StateAccepted, Stage: types.StageKeywordPass})
		default:
			candidates = append(candidates, i)
		}
	}

	if limit := r.p.maxCandidates; limit > 0 && len(candidates) > limit {
		for _, i := range candidates[limit:] {
			r.finalize(ctx, i, types.Verdict{
				PaperID: ids[i],
				State:   types.StateExcludedRetryable,
				Stage:   types.StageDeferred,
				Error:   fmt.Sprintf("over the %d candidate limit", limit),
			})
		}
		r.logger.Info().Int("deferred", len(candidates)-limit).Msg("candidate limit reached")
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// embed scores candidates on the embedding pool and returns the indexes
// that continue to the judge.
func (r *run) embed(ctx context.Context, candidates []int) []int {
	next := make([]bool, len(candidates))

	var g errgroup.Group
	g.SetLimit(r.p.embedWorkers)
	for n, i := range candidates {
		g.Go(func() error {
			next[n] = r.embedOne(ctx, i)
			return nil
		})
	}
	_ = g.Wait()

	var out []int
	for n, i := range candidates {
		if next[n] {
			out = append(out, i)
		}
	}
	return out
}

func (r *run) embedOne(ctx context.Context, i int) bool {
	paper := r.papers[i]
	id := paper.Key()
	if err := ctx.Err(); err != nil {
		r.finalize(ctx, i, cancelled(id, err))
		return false
	}

	score, err := r.p.scorer.Score(ctx, paper)
	if err != nil {
		return r.embeddingFailed(ctx, i, id, err)
	}

	if !r.p.scorer.Passes(score) {
		r.finalize(ctx, i, types.Verdict{PaperID: id, State: types.StateRejected, Stage: types.StageEmbeddingReject, Score: &score})
		return false
	}
	if r.p.mode.UsesJudge() {
		r.scores[i] = &score
		return true
	}
	r.finalize(ctx, i, types.Verdict{
		PaperID:  id,
		Relevant: true,
		State:    types.StateAccepted,
		Stage:    types.StageEmbeddingPassShortcut,
		Score:    &score,
	})
	return false
}

// embeddingFailed applies the configured error policy and reports whether
// the paper continues to the judge.
func (r *run) embeddingFailed(ctx context.Context, i int, id string, err error) bool {
	if ctx.Err() != nil {
		r.finalize(ctx, i, cancelled(id, ctx.Err()))
		return false
	}

	logger := observability.WithPaper(r.logger, id)
	logger.Warn().
		Err(err).
		Str("policy", string(r.p.policy)).
		Msg("embedding failed")

	v := types.Verdict{
		PaperID:   id,
		Stage:     types.StageEmbeddingError,
		ErrorKind: types.ErrorKindEmbedding,
		Error:     err.Error(),
	}
	switch r.p.policy {
	case types.EmbeddingErrorPass:
		if r.p.mode.UsesJudge() {
			r.passedOnError[i] = true
			return true
		}
		v.Relevant = true
		v.State = types.StateAccepted
	case types.EmbeddingErrorDrop:
		v.State = types.StateRejected
	default:
		v.State = types.StateExcludedRetryable
	}
	r.finalize(ctx, i, v)
	return false
}

// judgeAll runs the judge over candidates on a pool no wider than the
// judge ceiling.
func (r *run) judgeAll(ctx context.Context, candidates []int) {
	var g errgroup.Group
	g.SetLimit(r.p.judgeWorkers)
	for _, i := range candidates {
		g.Go(func() error {
			r.judgeOne(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *run) judgeOne(ctx context.Context, i int) {
	paper := r.papers[i]
	id := paper.Key()
	if err := ctx.Err(); err != nil {
		r.finalize(ctx, i, cancelled(id, err))
		return
	}
	logger := observability.WithPaper(r.logger, id)

	done := r.p.metrics.JudgeStarted()
	j, err := r.p.judge.Judge(ctx, paper)
	done()

	v := types.Verdict{PaperID: id, Score: r.scores[i]}
	if err != nil && ctx.Err() != nil {
		// The run was cancelled under the call; that is not a judge failure.
		r.finalize(ctx, i, cancelled(id, ctx.Err()))
		return
	}
	if err != nil {
		v.State = types.StateExcludedRetryable
		v.Stage = types.StageJudgeError
		v.ErrorKind = judgeErrorKind(err)
		v.Error = err.Error()
		logger.Warn().Err(err).Str("kind", string(v.ErrorKind)).Msg("judge failed, paper left for a later run")
		r.finalize(ctx, i, v)
		return
	}

	v.Relevant = j.Relevant
	v.Reasoning = j.Reasoning
	v.Confidence = j.Confidence
	v.Degraded = j.Degraded
	v.State = types.StateRejected
	if j.Relevant {
		v.State = types.StateAccepted
	}
	switch {
	case j.Degraded:
		v.Stage = types.StageJudgeErrorFallback
	case j.Relevant:
		v.Stage = types.StageJudgeYes
	default:
		v.Stage = types.StageJudgeNo
	}
	logger.Debug().
		Bool("relevant", v.Relevant).
		Str("confidence", string(v.Confidence)).
		Bool("degraded", v.Degraded).
		Msg("judged")
	r.finalize(ctx, i, v)
}

func judgeErrorKind(err error) types.ErrorKind {
	var inv *judge.InvocationError
	switch {
	case errors.As(err, &inv) && inv.Timeout:
		return types.ErrorKindJudgeTimeout
	case errors.Is(err, judge.ErrParse):
		return types.ErrorKindJudgeParse
	}
	return types.ErrorKindJudgeInvocation
}

func cancelled(id string, err error) types.Verdict {
	return types.Verdict{
		PaperID: id,
		State:   types.StateExcludedRetryable,
		Stage:   types.StageDeferred,
		Error:   fmt.Sprintf("run cancelled: %v", err),
	}
}

// finalize fixes the verdict for paper i. Rejected papers are written to
// the ledger now and accepted ones are queued for Result.Commit. A failed
// write is logged and counted but leaves the verdict alone, so the paper
// is simply decided again next run.
func (r *run) finalize(ctx context.Context, i int, v types.Verdict) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v.State.Recordable() && v.PaperID != "" {
		paper := r.papers[i]
		rec := types.ProcessedRecord{
			PaperID:       v.PaperID,
			FirstSeen:     r.runDate,
			Relevant:      v.Relevant,
			Stage:         v.Stage,
			ProcessedAt:   r.p.now().UTC(),
			RubricVersion: r.summary.RubricVersion,
			Platform:      paper.Platform,
			Title:         paper.Title,
		}
		if v.State == types.StateAccepted {
			r.pending = append(r.pending, rec)
		} else if err := r.p.record(ctx, rec); err != nil {
			r.ledgerErrors++
		}
	}

	r.verdicts[i] = v
	r.p.metrics.RecordVerdict(v)
}

// record writes rec to the ledger, even if ctx is being cancelled.
func (p *Pipeline) record(ctx context.Context, rec types.ProcessedRecord) error {
	if _, err := p.ledger.Record(context.WithoutCancel(ctx), rec); err != nil {
		p.metrics.RecordLedgerError()
		logger := observability.WithPaper(p.logger, rec.PaperID)
		logger.Error().Err(err).Msg("recording verdict in ledger")
		return err
	}
	return nil
}

// finish tallies the verdicts once every worker has returned.
func (r *run) finish() types.RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.summary
	s.LedgerErrors = r.ledgerErrors
	for i, v := range r.verdicts {
		switch v.State {
		case types.StateAccepted:
			s.Accepted++
			s.AcceptedIDs = append(s.AcceptedIDs, v.PaperID)
		case types.StateRejected:
			s.Rejected++
		case types.StateExcludedRetryable:
			s.ExcludedRetryable++
			s.RetryableIDs = append(s.RetryableIDs, v.PaperID)
		case types.StateAlreadyProcessed:
			s.AlreadyProcessed++
		}

		switch v.ErrorKind {
		case types.ErrorKindEmbedding:
			s.EmbeddingErrors++
		case types.ErrorKindJudgeInvocation:
			s.JudgeInvocationErrors++
		case types.ErrorKindJudgeTimeout:
			s.JudgeTimeouts++
		case types.ErrorKindJudgeParse:
			s.JudgeParseErrors++
		}
		if r.passedOnError[i] {
			s.EmbeddingErrors++
		}

		switch v.Stage {
		case types.StageInvalid:
			s.Invalid++
		case types.StageDeferred:
			s.Deferred++
		}
		if v.Degraded {
			s.JudgeFallbacks++
		}
	}

	finished := r.p.now()
	s.Duration = finished.Sub(s.StartedAt)
	r.p.metrics.RecordRun(s.Duration, finished)
	return s
}
