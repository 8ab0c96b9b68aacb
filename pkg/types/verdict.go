// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// VerdictState is the terminal state of a paper within one run.
type VerdictState string

const (
	StateAccepted          VerdictState = "accepted"
	StateRejected          VerdictState = "rejected"
	StateExcludedRetryable VerdictState = "excluded-retryable"
	StateAlreadyProcessed  VerdictState = "already-processed"
)

// Recordable reports whether a paper in this state goes into the ledger.
// Retryable exclusions stay out so the next run picks them up again.
func (s VerdictState) Recordable() bool {
	return s == StateAccepted || s == StateRejected
}

// Stage names the pipeline stage that produced a verdict.
type Stage string

const (
	StageLedger                Stage = "ledger"
	StageInvalid               Stage = "invalid"
	StageKeywordReject         Stage = "keyword-reject"
	StageKeywordPass           Stage = "keyword-pass"
	StageDeferred              Stage = "deferred"
	StageEmbeddingReject       Stage = "embedding-reject"
	StageEmbeddingPassShortcut Stage = "embedding-pass-shortcut"
	StageEmbeddingError        Stage = "embedding-error"
	StageJudgeYes              Stage = "judge-yes"
	StageJudgeNo               Stage = "judge-no"
	StageJudgeError            Stage = "judge-error"
	StageJudgeErrorFallback    Stage = "judge-error-fallback"
)

// Confidence is the judge's self-reported certainty.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// ErrorKind classifies a paper-local failure for the run summary.
type ErrorKind string

const (
	ErrorKindNone            ErrorKind = ""
	ErrorKindEmbedding       ErrorKind = "embedding"
	ErrorKindJudgeInvocation ErrorKind = "judge-invocation"
	ErrorKindJudgeTimeout    ErrorKind = "judge-timeout"
	ErrorKindJudgeParse      ErrorKind = "judge-parse"
)

// Verdict is the single per-run outcome for one input paper.
type Verdict struct {
	// PaperID is the normalized paper identifier.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// Relevant is the final decision. Only meaningful for accepted and
	// rejected states.
	Relevant bool `json:"relevant" yaml:"relevant"`

	// State is the terminal state.
	State VerdictState `json:"state" yaml:"state"`

	// Stage is the stage that produced the verdict.
	Stage Stage `json:"stage" yaml:"stage"`

	// Score is the embedding similarity, present when the embedding stage ran
	// and succeeded.
	Score *float64 `json:"score,omitempty" yaml:"score,omitempty"`

	// Reasoning is the judge's one-sentence rationale.
	Reasoning string `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`

	// Confidence is the judge's certainty.
	Confidence Confidence `json:"confidence,omitempty" yaml:"confidence,omitempty"`

	// Degraded marks a decision recovered by the heuristic fallback parser.
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`

	// ErrorKind classifies the failure, if any.
	ErrorKind ErrorKind `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`

	// Error holds the failure message, if any.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}
