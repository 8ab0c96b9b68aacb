// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-briefing/pkg/types"
)

// --- fake oracle ---

type fakeOracle struct {
	answer     string
	err        error
	delay      time.Duration
	lastPrompt string
}

func (f *fakeOracle) Name() string { return "fake" }

func (f *fakeOracle) Complete(ctx context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.answer, f.err
}

func testRubric() Rubric {
	return Rubric{Name: "test", Version: "v1", Body: "RUBRIC BODY: include agents, exclude statistics."}
}

func testPaper() types.Paper {
	return types.Paper{
		ID:       "arxiv:2401.00001",
		Title:    "An Autonomous Agent for Chemistry",
		Abstract: "We build an LLM agent that plans and runs experiments.",
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, testRubric())
	assert.ErrorIs(t, err, types.ErrConfig)

	_, err = New(&fakeOracle{}, Rubric{})
	assert.ErrorIs(t, err, types.ErrConfig)

	_, err = New(&fakeOracle{}, testRubric(), WithAmbiguityLean("sideways"))
	assert.ErrorIs(t, err, types.ErrConfig)
}

func TestJudgeYes(t *testing.T) {
	o := &fakeOracle{answer: "**Decision**: YES\nReasoning: Agent for chemistry.\nConfidence: HIGH"}
	j, err := New(o, testRubric())
	require.NoError(t, err)

	got, err := j.Judge(context.Background(), testPaper())
	require.NoError(t, err)
	assert.True(t, got.Relevant)
	assert.Equal(t, types.ConfidenceHigh, got.Confidence)
	assert.Equal(t, "v1", j.RubricVersion())
}

func TestPromptContents(t *testing.T) {
	o := &fakeOracle{answer: "Decision: NO"}
	j, err := New(o, testRubric())
	require.NoError(t, err)

	_, err = j.Judge(context.Background(), testPaper())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(o.lastPrompt, "RUBRIC BODY"), "rubric is passed verbatim first")
	assert.Contains(t, o.lastPrompt, "Title: An Autonomous Agent for Chemistry")
	assert.Contains(t, o.lastPrompt, "We build an LLM agent")
	assert.Contains(t, o.lastPrompt, "answer NO", "default lean excludes")
	assert.Contains(t, o.lastPrompt, "Decision: YES or NO")
	assert.NotContains(t, o.lastPrompt, "Full text")
}

func TestPromptLeanIncludeAndFullText(t *testing.T) {
	j, err := New(&fakeOracle{}, testRubric(), WithAmbiguityLean(types.LeanInclude), WithMaxFullText(10))
	require.NoError(t, err)

	p := testPaper()
	p.FullText = "0123456789ABCDEFGHIJ"
	prompt, err := j.Prompt(p)
	require.NoError(t, err)
	assert.Contains(t, prompt, "answer YES")
	assert.Contains(t, prompt, "Full text (excerpt):\n0123456789\n")
	assert.NotContains(t, prompt, "ABCDEF")
}

func TestJudgeInvocationError(t *testing.T) {
	o := &fakeOracle{err: errors.New("exit status 1")}
	j, err := New(o, testRubric())
	require.NoError(t, err)

	_, err = j.Judge(context.Background(), testPaper())
	var ie *InvocationError
	require.True(t, errors.As(err, &ie))
	assert.False(t, ie.Timeout)
	assert.ErrorIs(t, err, ErrInvocation)
}

func TestJudgeTimeout(t *testing.T) {
	o := &fakeOracle{answer: "Decision: YES", delay: time.Second}
	j, err := New(o, testRubric(), WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	_, err = j.Judge(context.Background(), testPaper())
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	var ie *InvocationError
	require.True(t, errors.As(err, &ie))
	assert.True(t, ie.Timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJudgeParseError(t *testing.T) {
	j, err := New(&fakeOracle{answer: "I cannot decide."}, testRubric())
	require.NoError(t, err)

	_, err = j.Judge(context.Background(), testPaper())
	assert.ErrorIs(t, err, ErrParse)
}

func TestJudgeHeuristicFallback(t *testing.T) {
	j, err := New(&fakeOracle{answer: "Yes - clearly an agent paper."}, testRubric(), WithHeuristicFallback(true))
	require.NoError(t, err)

	got, err := j.Judge(context.Background(), testPaper())
	require.NoError(t, err)
	assert.True(t, got.Relevant)
	assert.True(t, got.Degraded)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abcdef", 2))
	s := "aé" // 'é' is two bytes
	assert.Equal(t, "a", truncateRunes(s, 2))
}
