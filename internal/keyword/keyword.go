// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package keyword implements the cheap deterministic prefilter that runs
// ahead of the embedding and judge stages.
package keyword

import (
	"strings"

	"github.com/pdiddy/research-briefing/pkg/types"
)

// Screen matches papers against a fixed keyword list using
// case-insensitive substring containment. A Screen is immutable and safe
// for concurrent use.
type Screen struct {
	keywords []string
}

// New builds a Screen. Blank keywords are dropped and the rest are
// lowercased once up front.
func New(keywords []string) *Screen {
	s := &Screen{}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			s.keywords = append(s.keywords, kw)
		}
	}
	return s
}

// Len returns the number of active keywords.
func (s *Screen) Len() int { return len(s.keywords) }

// Match reports whether text contains any keyword. An empty keyword set
// matches everything.
func (s *Screen) Match(text string) bool {
	if len(s.keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range s.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Matches returns every keyword found in text, in configuration order.
func (s *Screen) Matches(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range s.keywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// Passes applies the screen to a paper's title and abstract.
func (s *Screen) Passes(p types.Paper) bool {
	return s.Match(p.Text())
}
