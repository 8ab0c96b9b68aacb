// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package briefing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-briefing/pkg/types"
)

// Build assembles the briefing for date. Platforms are taken from the
// sources that were queried, falling back to the entries' platforms.
func Build(date time.Time, platforms []string, entries []types.BriefingEntry, summary types.RunSummary, now time.Time) types.Briefing {
	if len(platforms) == 0 {
		seen := make(map[string]bool)
		for _, e := range entries {
			p := string(e.Paper.Platform)
			if p != "" && !seen[p] {
				seen[p] = true
				platforms = append(platforms, p)
			}
		}
	}
	platforms = append([]string(nil), platforms...)
	sort.Strings(platforms)

	if entries == nil {
		entries = []types.BriefingEntry{}
	}
	return types.Briefing{
		Date:        time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		GeneratedAt: now,
		Platforms:   platforms,
		Entries:     entries,
		Summary:     summary,
	}
}

// FileName returns the briefing file name for a date and format.
func FileName(date string, format types.OutputFormat) string {
	ext := "json"
	if format == types.FormatYAML {
		ext = "yaml"
	}
	return fmt.Sprintf("briefing-%s.%s", date, ext)
}

// Save writes b to dir in the given format and returns the path. The file
// is written to a temporary name and renamed into place.
func Save(b types.Briefing, dir string, format types.OutputFormat) (string, error) {
	var data []byte
	var err error
	switch format {
	case types.FormatYAML:
		data, err = yaml.Marshal(b)
	case types.FormatJSON, "":
		data, err = json.MarshalIndent(b, "", "  ")
		data = append(data, '\n')
	default:
		return "", fmt.Errorf("unsupported output format %q: use json or yaml", format)
	}
	if err != nil {
		return "", fmt.Errorf("marshaling briefing: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, FileName(b.DateKey(), format))

	tmp, err := os.CreateTemp(dir, ".briefing-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing briefing: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return path, nil
}

// Load reads a briefing file written by Save. The format follows the
// file extension.
func Load(path string) (types.Briefing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Briefing{}, fmt.Errorf("reading briefing: %w", err)
	}
	var b types.Briefing
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &b)
	default:
		err = json.Unmarshal(data, &b)
	}
	if err != nil {
		return types.Briefing{}, fmt.Errorf("parsing briefing %s: %w", path, err)
	}
	return b, nil
}
