// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-briefing/internal/briefing"
	"github.com/pdiddy/research-briefing/internal/ledger"
	"github.com/pdiddy/research-briefing/pkg/types"
)

var filterCmd = &cobra.Command{
	Use:   "filter [file]",
	Short: "Filter papers from a YAML or JSON file",
	Long: `Filter runs a list of papers through the relevance pipeline without
fetching. The file holds a YAML or JSON list of papers (id, title,
abstract, and optionally platform, authors, url, full_text). Read from
stdin when no file is given or the file is "-".

With --dry-run the ledger is an in-memory copy, so nothing is recorded and
papers already in the real ledger are judged again.`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: bindModeFlag,
	RunE:    runFilter,
}

func runFilter(cmd *cobra.Command, args []string) error {
	path := "-"
	if len(args) == 1 {
		path = args[0]
	}
	papers, err := readPapers(path)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	ledgerPath := ""
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		ledgerPath = ledger.MemoryPath
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, ledgerPath)
	if err != nil {
		return err
	}
	defer a.Close()

	p, _, err := a.newPipeline(ctx)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx, papers)
	if err != nil {
		return fmt.Errorf("filtering papers: %w", err)
	}
	// No briefing is written here, so acceptances are recorded right away.
	if err := res.Commit(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("recording accepted papers in ledger")
	}
	a.writeMetrics()

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return briefing.WriteJSON(os.Stdout, res)
	}
	briefing.WriteVerdicts(os.Stdout, res.Papers, res.Verdicts)
	fmt.Println()
	briefing.WriteSummary(os.Stdout, res.Summary)
	return nil
}

// readPapers decodes a paper list. JSON is chosen by a .json extension
// or a leading '['; everything else is read as YAML.
func readPapers(path string) ([]types.Paper, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading papers: %w", err)
	}

	var papers []types.Paper
	trimmed := strings.TrimSpace(string(data))
	if strings.EqualFold(filepath.Ext(path), ".json") || strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(data, &papers)
	} else {
		err = yaml.Unmarshal(data, &papers)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing papers from %s: %w", path, err)
	}
	return papers, nil
}

func init() {
	filterCmd.Flags().String("mode", "", "filter mode: keywords, embedding, judge, or hybrid")
	filterCmd.Flags().Bool("dry-run", false, "use an in-memory ledger and record nothing")
	filterCmd.Flags().Bool("json", false, "output the result as JSON")

	rootCmd.AddCommand(filterCmd)
}
