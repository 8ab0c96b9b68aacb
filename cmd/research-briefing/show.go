// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-briefing/internal/briefing"
	"github.com/pdiddy/research-briefing/internal/ledger"
	"github.com/pdiddy/research-briefing/pkg/types"
)

var showCmd = &cobra.Command{
	Use:   "show [date]",
	Short: "Print a saved briefing",
	Long: `Show prints the briefing for date (YYYY-MM-DD), or the most recent one.
The ledger copy is used when present; otherwise the file in the output
directory is read.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer a.Close()

	var date string
	if len(args) == 1 {
		if _, err := time.Parse(time.DateOnly, args[0]); err != nil {
			return fmt.Errorf("invalid date %q: want YYYY-MM-DD", args[0])
		}
		date = args[0]
	} else {
		date, err = a.ledger.LatestBriefingDate(ctx)
		if err != nil {
			return err
		}
		if date == "" {
			fmt.Println("No briefings found.")
			return nil
		}
	}

	b, err := findBriefing(ctx, a.ledger, cfg.Output, date)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return briefing.WriteJSON(os.Stdout, b)
	}
	briefing.WriteBriefing(os.Stdout, b)
	return nil
}

// findBriefing looks in the ledger first and then in the output directory.
func findBriefing(ctx context.Context, l *ledger.Ledger, out types.OutputConfig, date string) (types.Briefing, error) {
	b, err := l.LoadBriefing(ctx, date)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return types.Briefing{}, err
	}

	for _, format := range []types.OutputFormat{out.Format, types.FormatJSON, types.FormatYAML} {
		path := filepath.Join(out.Dir, briefing.FileName(date, format))
		b, err := briefing.Load(path)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return types.Briefing{}, err
		}
	}
	return types.Briefing{}, fmt.Errorf("no briefing for %s", date)
}

func init() {
	showCmd.Flags().Bool("json", false, "output the briefing as JSON")

	rootCmd.AddCommand(showCmd)
}
