// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-briefing/internal/briefing"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger statistics",
	Long: `Stats reports how many papers the ledger holds, how many were relevant,
and counts by platform and deciding stage.`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
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

	stats, err := a.ledger.Stats(ctx)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return briefing.WriteJSON(os.Stdout, stats)
	}
	briefing.WriteStats(os.Stdout, stats)
	return nil
}

func init() {
	statsCmd.Flags().Bool("json", false, "output statistics as JSON")

	rootCmd.AddCommand(statsCmd)
}
