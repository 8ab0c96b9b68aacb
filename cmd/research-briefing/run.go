// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-briefing/internal/briefing"
	"github.com/pdiddy/research-briefing/internal/fetch"
	"github.com/pdiddy/research-briefing/internal/judge"
	"github.com/pdiddy/research-briefing/internal/pipeline"
	"github.com/pdiddy/research-briefing/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, filter, and summarize new papers into a briefing",
	Long: `Run fetches papers posted in the window ending on --date from every
enabled source, filters them through the configured mode, summarizes the
accepted papers, and saves the briefing to the output directory and the
ledger.

Papers excluded because of a transient failure (judge timeout, embedding
outage) are not recorded and are retried on the next run. With
--fail-on-retryable the command exits non-zero when any exist, after the
briefing has been written.`,
	PreRunE: bindModeFlag,
	RunE:    runBriefing,
}

func runBriefing(cmd *cobra.Command, args []string) error {
	date, err := parseDate(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	if days, _ := cmd.Flags().GetInt("days-back"); days > 0 {
		cfg.Sources.DaysBack = days
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer a.Close()

	window := fetch.NewWindow(date, cfg.Sources.DaysBack)
	sources := fetch.NewSources(cfg.Sources, &http.Client{Timeout: cfg.Sources.Timeout})
	if len(sources) == 0 {
		return types.NewConfigError("sources", "no source is enabled")
	}
	platforms := make([]string, len(sources))
	for i, s := range sources {
		platforms[i] = s.Name()
	}

	res, oracle, err := a.fetchAndFilter(ctx, sources, window)
	if err != nil {
		return err
	}

	summarizer := briefing.NewSummarizer(nil, cfg.Summarizer, a.logger)
	if noSummary, _ := cmd.Flags().GetBool("no-summary"); !noSummary {
		summarizer = a.newSummarizer(oracle)
	}
	entries := summarizer.Summarize(ctx, res.Accepted())

	b := briefing.Build(date, platforms, entries, res.Summary, time.Now())
	path, err := a.publish(ctx, res, b)
	if err != nil {
		return err
	}
	a.writeMetrics()

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		if err := briefing.WriteJSON(os.Stdout, res.Summary); err != nil {
			return err
		}
	} else {
		briefing.WriteSummary(os.Stdout, res.Summary)
		fmt.Printf("\nBriefing written to %s\n", path)
	}

	if failOnRetry, _ := cmd.Flags().GetBool("fail-on-retryable"); failOnRetry && res.Summary.HasRetryable() {
		return fmt.Errorf("%d paper(s) excluded for retry", res.Summary.ExcludedRetryable)
	}
	return nil
}

// fetchAndFilter builds the filter stages, then fetches from sources and
// runs the papers through them. The stages come first so a bad rubric, a
// missing judge binary or a rejected query embedding stops the run before
// any source is queried.
func (a *app) fetchAndFilter(ctx context.Context, sources []fetch.Source, window fetch.Window) (*pipeline.Result, judge.Oracle, error) {
	p, oracle, err := a.newPipeline(ctx)
	if err != nil {
		return nil, nil, err
	}

	a.logger.Info().Str("window", window.String()).Int("sources", len(sources)).Msg("fetching papers")
	fetched := fetch.FetchAll(ctx, sources, window, a.logger, a.metrics)
	a.logger.Info().
		Int("papers", len(fetched.Papers)).
		Int("duplicates", fetched.DupsRemoved).
		Int("invalid", fetched.Invalid).
		Msg("fetch complete")
	if len(fetched.SourceErrors) == len(sources) {
		return nil, nil, fmt.Errorf("every source failed: %v", fetched.SourceErrors)
	}

	res, err := p.Run(ctx, fetched.Papers)
	if err != nil {
		return nil, nil, fmt.Errorf("filtering papers: %w", err)
	}
	return res, oracle, nil
}

// publish saves the briefing file and only then records the accepted
// papers in the ledger. When the save fails nothing is recorded, so the
// papers come back on the next run.
func (a *app) publish(ctx context.Context, res *pipeline.Result, b types.Briefing) (string, error) {
	path, err := briefing.Save(b, a.cfg.Output.Dir, a.cfg.Output.Format)
	if err != nil {
		a.logger.Error().Err(err).Strs("pending", res.Pending()).Msg("briefing not saved, accepted papers left unrecorded")
		return "", err
	}
	a.logger.Info().Str("path", path).Int("papers", len(b.Entries)).Msg("briefing saved")

	ctx = context.WithoutCancel(ctx)
	if err := res.Commit(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("recording accepted papers in ledger")
	}
	if err := a.ledger.SaveBriefing(ctx, b); err != nil {
		a.logger.Warn().Err(err).Msg("storing briefing in ledger")
	}
	return path, nil
}

// bindModeFlag binds the command's --mode flag to filter.mode. It runs
// per command because run and filter both define the flag.
func bindModeFlag(cmd *cobra.Command, args []string) error {
	return viper.BindPFlag("filter.mode", cmd.Flags().Lookup("mode"))
}

// parseDate reads --date, defaulting to yesterday.
func parseDate(cmd *cobra.Command) (time.Time, error) {
	s, _ := cmd.Flags().GetString("date")
	if s == "" {
		y := time.Now().AddDate(0, 0, -1)
		return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

func init() {
	runCmd.Flags().String("date", "", "last day of the fetch window, YYYY-MM-DD (default: yesterday)")
	runCmd.Flags().Int("days-back", 0, "days before --date to include (default: sources.days_back)")
	runCmd.Flags().String("mode", "", "filter mode: keywords, embedding, judge, or hybrid")
	runCmd.Flags().Bool("no-summary", false, "use abstracts instead of generated summaries")
	runCmd.Flags().Bool("json", false, "output the run summary as JSON")
	runCmd.Flags().Bool("fail-on-retryable", false, "exit non-zero when papers were excluded for retry")

	rootCmd.AddCommand(runCmd)
}
