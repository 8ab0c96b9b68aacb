// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"strings"
	"unicode"

	"github.com/pdiddy/research-briefing/pkg/types"
)

// maxRawInError bounds how much of an unparseable answer is kept.
const maxRawInError = 300

// Judgment is a parsed judge answer.
type Judgment struct {
	Relevant   bool
	Reasoning  string
	Confidence types.Confidence

	// Degraded is set when the decision came from the heuristic fallback
	// rather than a labelled decision line.
	Degraded bool
}

// ParseResponse extracts the decision, reasoning, and confidence from a
// judge answer. Labels are matched case-insensitively and surrounding
// Markdown is ignored, so "**Decision**: YES", "decision - no" and
// "Final decision: Yes." all parse, while "my decision: there is no ..."
// does not.
//
// When no labelled decision is found and allowHeuristic is set, the first
// word and then unambiguous yes/relevant or no/not-relevant words decide;
// such judgments are Degraded with LOW confidence. Otherwise the answer is
// a *ParseError: the parser never guesses.
func ParseResponse(raw string, allowHeuristic bool) (Judgment, error) {
	lines := strings.Split(raw, "\n")

	decision, found := labelledDecision(lines)
	if !found {
		if !allowHeuristic {
			return Judgment{}, newParseError(raw, "no decision line")
		}
		decision, found = heuristicDecision(raw)
		if !found {
			return Judgment{}, newParseError(raw, "no decision line and no unambiguous yes/no")
		}
		return Judgment{
			Relevant:   decision,
			Reasoning:  labelledText(lines, "reasoning"),
			Confidence: types.ConfidenceLow,
			Degraded:   true,
		}, nil
	}

	conf := labelledConfidence(lines)
	if conf == "" {
		conf = types.ConfidenceLow
	}
	return Judgment{
		Relevant:   decision,
		Reasoning:  labelledText(lines, "reasoning"),
		Confidence: conf,
	}, nil
}

// words lowercases s and splits it on anything that is not a letter or
// digit, which discards Markdown emphasis, colons, and punctuation.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func indexOf(ws []string, target string) int {
	for i, w := range ws {
		if w == target {
			return i
		}
	}
	return -1
}

// labelledDecision finds the first decision label whose value comes
// right after it: "decision" followed directly by yes or no, or a bare
// "decision" heading followed by a line that starts with yes or no. Only
// punctuation and markup may sit between label and value, so prose that
// merely mentions a decision is skipped.
func labelledDecision(lines []string) (relevant, found bool) {
	for i, line := range lines {
		ws := words(line)
		for at, w := range ws {
			if w != "decision" {
				continue
			}
			if at+1 < len(ws) {
				if v, ok := yesNo(ws[at+1]); ok {
					return v, true
				}
				continue
			}
			if next := words(nextNonBlank(lines, i+1)); len(next) > 0 {
				if v, ok := yesNo(next[0]); ok {
					return v, true
				}
			}
		}
	}
	return false, false
}

func yesNo(w string) (relevant, ok bool) {
	switch w {
	case "yes":
		return true, true
	case "no":
		return false, true
	}
	return false, false
}

func nextNonBlank(lines []string, from int) string {
	for _, l := range lines[from:] {
		if strings.TrimSpace(l) != "" {
			return l
		}
	}
	return ""
}

// labelledConfidence returns the level on the first confidence line.
func labelledConfidence(lines []string) types.Confidence {
	for _, line := range lines {
		ws := words(line)
		at := indexOf(ws, "confidence")
		if at < 0 {
			continue
		}
		for _, w := range ws[at+1:] {
			switch w {
			case "high":
				return types.ConfidenceHigh
			case "medium", "moderate":
				return types.ConfidenceMedium
			case "low":
				return types.ConfidenceLow
			}
		}
	}
	return ""
}

// labelledText returns the text following label on the first line whose
// first word is label. An empty remainder takes the next non-blank line.
func labelledText(lines []string, label string) string {
	for i, line := range lines {
		ws := words(line)
		if len(ws) == 0 || ws[0] != label {
			continue
		}
		idx := strings.Index(strings.ToLower(line), label)
		rest := cleanLabelRemainder(line[idx+len(label):])
		if rest == "" {
			rest = cleanLabelRemainder(nextNonBlank(lines, i+1))
		}
		return rest
	}
	return ""
}

func cleanLabelRemainder(s string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "*_:：-–— "))
}

// heuristicDecision recovers a decision from free text: first the leading
// word, then a vote that only counts when one side is absent.
func heuristicDecision(raw string) (relevant, found bool) {
	ws := words(raw)
	if len(ws) == 0 {
		return false, false
	}
	switch ws[0] {
	case "yes":
		return true, true
	case "no":
		return false, true
	}

	var yes, no int
	for i, w := range ws {
		switch w {
		case "yes":
			yes++
		case "no", "irrelevant":
			no++
		case "relevant":
			if i > 0 && ws[i-1] == "not" {
				no++
			} else {
				yes++
			}
		}
	}
	switch {
	case yes > 0 && no == 0:
		return true, true
	case no > 0 && yes == 0:
		return false, true
	}
	return false, false
}
