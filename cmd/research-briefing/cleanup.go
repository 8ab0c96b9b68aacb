// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge ledger records and briefings past the retention window",
	Long: `Cleanup deletes ledger records processed more than ledger.retain_days
ago, briefings dated before that, and the matching briefing files in the
output directory. The database is vacuumed afterwards.

Purged papers are no longer known to the ledger; a later fetch that
returns them again will process them again.`,
	RunE: runCleanup,
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	days := cfg.Ledger.RetainDays
	if d, _ := cmd.Flags().GetInt("retain-days"); d > 0 {
		days = d
	}
	if days <= 0 {
		return fmt.Errorf("retention must be positive, got %d days", days)
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer a.Close()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	papers, briefings, err := a.ledger.Purge(ctx, cutoff)
	if err != nil {
		return err
	}
	if err := a.ledger.Optimize(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("optimizing ledger")
	}

	files, err := removeOldBriefings(cfg.Output.Dir, cutoff)
	if err != nil {
		return err
	}

	fmt.Printf("Purged %d paper record(s), %d stored briefing(s), %d briefing file(s) older than %s\n",
		papers, briefings, files, cutoff.Format(time.DateOnly))
	return nil
}

// removeOldBriefings deletes briefing-YYYY-MM-DD.* files in dir dated
// before cutoff. A missing directory removes nothing.
func removeOldBriefings(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading output directory: %w", err)
	}

	day := cutoff.Format(time.DateOnly)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "briefing-") {
			continue
		}
		date := strings.TrimSuffix(strings.TrimPrefix(name, "briefing-"), filepath.Ext(name))
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			continue
		}
		if date >= day {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, fmt.Errorf("removing %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

func init() {
	cleanupCmd.Flags().Int("retain-days", 0, "override ledger.retain_days")

	rootCmd.AddCommand(cleanupCmd)
}
