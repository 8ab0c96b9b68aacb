// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the data model shared by the fetch, filter, ledger,
// and briefing stages.
package types

import (
	"strconv"
	"strings"
	"time"
)

// Platform identifies the preprint server a paper came from.
type Platform string

const (
	PlatformArxiv   Platform = "arxiv"
	PlatformBiorxiv Platform = "biorxiv"
	PlatformMedrxiv Platform = "medrxiv"
)

// Paper is the unit of work for the filter pipeline. Only ID, Title, and
// Abstract are required; everything else is carried through to the briefing.
type Paper struct {
	// ID is platform-qualified (e.g. "arxiv:2301.07041",
	// "biorxiv:10.1101/2024.03.26.586795") and stable across fetches.
	ID string `json:"id" yaml:"id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// FullText is the extracted body text, when available.
	FullText string `json:"full_text,omitempty" yaml:"full_text,omitempty"`

	// Platform is the source server.
	Platform Platform `json:"platform" yaml:"platform"`

	// PublishedDate is the submission or posting date.
	PublishedDate time.Time `json:"published_date" yaml:"published_date"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// URL is the landing page.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Categories are the platform subject categories.
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// Key returns the normalized identifier used for deduplication.
func (p Paper) Key() string {
	return NormalizeID(p.ID)
}

// Text returns the title and abstract joined for keyword and embedding stages.
func (p Paper) Text() string {
	return p.Title + " " + p.Abstract
}

// CanonicalID builds a platform-qualified identifier from a platform's
// native ID. arXiv version suffixes are dropped so that revisions of the
// same preprint share one key.
func CanonicalID(platform Platform, nativeID string) string {
	id := strings.TrimSpace(nativeID)
	if id == "" {
		return ""
	}
	if platform == PlatformArxiv {
		id = stripArxivVersion(id)
	}
	return NormalizeID(string(platform) + ":" + id)
}

// NormalizeID lowercases the platform prefix and DOI-style identifiers and
// trims surrounding whitespace. arXiv IDs keep their case but lose any
// version suffix.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	prefix, rest, ok := strings.Cut(id, ":")
	if !ok {
		return id
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	rest = strings.TrimSpace(rest)
	if prefix == string(PlatformArxiv) {
		return prefix + ":" + stripArxivVersion(rest)
	}
	return prefix + ":" + strings.ToLower(rest)
}

// stripArxivVersion removes a trailing "vN" (e.g. "2301.07041v2" -> "2301.07041").
func stripArxivVersion(id string) string {
	vIdx := strings.LastIndex(id, "v")
	if vIdx <= 0 || vIdx == len(id)-1 {
		return id
	}
	if _, err := strconv.Atoi(id[vIdx+1:]); err != nil {
		return id
	}
	return id[:vIdx]
}
