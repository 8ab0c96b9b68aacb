// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/research-briefing/pkg/types"
)

// judgePromptTmpl wraps the rubric around one paper and pins the answer
// format to the three labelled lines the parser expects.
var judgePromptTmpl = template.Must(template.New("judge").Parse(`{{.Rubric}}

---

Evaluate the following paper against the criteria above.

Title: {{.Title}}

Abstract:
{{.Abstract}}
{{- if .FullText}}

Full text (excerpt):
{{.FullText}}
{{- end}}

If the evidence is ambiguous after applying the exclusion and inclusion criteria, {{if .Include}}answer YES{{else}}answer NO{{end}}.

Respond with exactly these three lines and nothing else:
Decision: YES or NO
Reasoning: one sentence explaining the decision
Confidence: HIGH, MEDIUM, or LOW
`))

type promptData struct {
	Rubric   string
	Title    string
	Abstract string
	FullText string
	Include  bool
}

func renderPrompt(r Rubric, p types.Paper, lean types.AmbiguityLean, maxFullText int) (string, error) {
	fullText := p.FullText
	if maxFullText > 0 && len(fullText) > maxFullText {
		fullText = truncateRunes(fullText, maxFullText)
	}

	var buf bytes.Buffer
	err := judgePromptTmpl.Execute(&buf, promptData{
		Rubric:   r.Body,
		Title:    p.Title,
		Abstract: p.Abstract,
		FullText: fullText,
		Include:  lean == types.LeanInclude,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// truncateRunes cuts s to at most n bytes without splitting a UTF-8
// sequence.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}
