// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package judge asks an external language model whether a paper meets the
// relevance rubric and parses its labelled answer.
package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/research-briefing/pkg/types"
)

const (
	// DefaultTimeout bounds one judge call.
	DefaultTimeout = 2 * time.Minute

	// DefaultMaxFullTextChars truncates full text in the prompt.
	DefaultMaxFullTextChars = 8000
)

// Sentinels for errors.Is on judge failures.
var (
	ErrInvocation = errors.New("judge invocation failed")
	ErrParse      = errors.New("judge answer unparseable")
)

// InvocationError is a failed or timed-out oracle call.
type InvocationError struct {
	Oracle  string
	Timeout bool
	Err     error
}

func (e *InvocationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("judge %s timed out: %v", e.Oracle, e.Err)
	}
	return fmt.Sprintf("judge %s failed: %v", e.Oracle, e.Err)
}

// Unwrap exposes both ErrInvocation and the underlying cause.
func (e *InvocationError) Unwrap() []error {
	return []error{ErrInvocation, e.Err}
}

// ParseError is an answer with no recoverable decision.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing judge answer: %s: %q", e.Reason, e.Raw)
}

// Unwrap returns ErrParse.
func (e *ParseError) Unwrap() error { return ErrParse }

func newParseError(raw, reason string) *ParseError {
	raw = strings.TrimSpace(raw)
	if len(raw) > maxRawInError {
		raw = truncateRunes(raw, maxRawInError) + "..."
	}
	return &ParseError{Reason: reason, Raw: raw}
}

// Judge applies a rubric to papers through an Oracle. It holds no
// per-call state and is safe for concurrent use.
type Judge struct {
	oracle      Oracle
	rubric      Rubric
	timeout     time.Duration
	lean        types.AmbiguityLean
	heuristic   bool
	maxFullText int
}

// Option configures a Judge.
type Option func(*Judge)

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(j *Judge) {
		if d > 0 {
			j.timeout = d
		}
	}
}

// WithAmbiguityLean sets which way borderline papers are decided.
func WithAmbiguityLean(lean types.AmbiguityLean) Option {
	return func(j *Judge) { j.lean = lean }
}

// WithHeuristicFallback enables recovery of unlabelled answers.
func WithHeuristicFallback(enabled bool) Option {
	return func(j *Judge) { j.heuristic = enabled }
}

// WithMaxFullText sets the full-text excerpt length in the prompt.
func WithMaxFullText(n int) Option {
	return func(j *Judge) {
		if n > 0 {
			j.maxFullText = n
		}
	}
}

// New builds a Judge.
func New(oracle Oracle, rubric Rubric, opts ...Option) (*Judge, error) {
	if oracle == nil {
		return nil, types.NewConfigError("filter.judge.backend", "no judge oracle configured")
	}
	if strings.TrimSpace(rubric.Body) == "" {
		return nil, types.NewConfigError("filter.judge.rubric_path", "rubric is empty")
	}
	j := &Judge{
		oracle:      oracle,
		rubric:      rubric,
		timeout:     DefaultTimeout,
		lean:        types.LeanExclude,
		maxFullText: DefaultMaxFullTextChars,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.lean != types.LeanInclude && j.lean != types.LeanExclude {
		return nil, types.NewConfigError("filter.judge.ambiguity_lean", "%q is not include or exclude", j.lean)
	}
	return j, nil
}

// RubricVersion identifies the policy used for every judgment.
func (j *Judge) RubricVersion() string { return j.rubric.Version }

// Prompt renders the prompt for p.
func (j *Judge) Prompt(p types.Paper) (string, error) {
	return renderPrompt(j.rubric, p, j.lean, j.maxFullText)
}

// Judge asks the oracle about one paper. Failures are *InvocationError or
// *ParseError; no call is retried here.
func (j *Judge) Judge(ctx context.Context, p types.Paper) (Judgment, error) {
	prompt, err := j.Prompt(p)
	if err != nil {
		return Judgment{}, fmt.Errorf("rendering judge prompt: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	raw, err := j.oracle.Complete(callCtx, prompt)
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) ||
			(errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil)
		return Judgment{}, &InvocationError{Oracle: j.oracle.Name(), Timeout: timedOut, Err: err}
	}

	return ParseResponse(raw, j.heuristic)
}
