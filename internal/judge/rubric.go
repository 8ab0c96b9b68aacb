// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-briefing/pkg/types"
)

// Rubric is the versioned decision policy handed to the judge verbatim.
type Rubric struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`

	// Body is the Markdown text after the frontmatter.
	Body string `yaml:"-"`
}

// LoadRubric reads a rubric file. A missing or empty rubric is a
// configuration error: the judge has no policy to apply.
func LoadRubric(path string) (Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rubric{}, types.NewConfigError("filter.judge.rubric_path", "reading rubric: %v", err)
	}
	r, err := ParseRubric(data)
	if err != nil {
		return Rubric{}, types.NewConfigError("filter.judge.rubric_path", "%s: %v", path, err)
	}
	return r, nil
}

// ParseRubric splits optional YAML frontmatter from the Markdown body.
// Without a frontmatter version the rubric is versioned by content hash,
// so any edit to the policy changes the recorded version.
func ParseRubric(data []byte) (Rubric, error) {
	var r Rubric
	body := data

	if front, rest, ok := splitFrontmatter(data); ok {
		if err := yaml.Unmarshal(front, &r); err != nil {
			return Rubric{}, fmt.Errorf("parsing rubric frontmatter: %w", err)
		}
		body = rest
	}

	r.Body = strings.TrimSpace(string(body))
	if r.Body == "" {
		return Rubric{}, fmt.Errorf("rubric body is empty")
	}
	if r.Version == "" {
		sum := sha256.Sum256([]byte(r.Body))
		r.Version = hex.EncodeToString(sum[:])[:12]
	}
	return r, nil
}

// splitFrontmatter returns the YAML between leading "---" fences and the
// remainder.
func splitFrontmatter(data []byte) (front, rest []byte, ok bool) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !bytes.HasPrefix(data, []byte("---")) {
		return nil, data, false
	}
	firstNL := bytes.IndexByte(data, '\n')
	if firstNL < 0 || strings.TrimSpace(string(data[:firstNL])) != "---" {
		return nil, data, false
	}
	after := data[firstNL+1:]
	for offset := 0; offset < len(after); {
		end := bytes.IndexByte(after[offset:], '\n')
		var line []byte
		next := len(after)
		if end >= 0 {
			line = after[offset : offset+end]
			next = offset + end + 1
		} else {
			line = after[offset:]
		}
		if strings.TrimSpace(string(line)) == "---" {
			return after[:offset], after[next:], true
		}
		offset = next
	}
	return nil, data, false
}
