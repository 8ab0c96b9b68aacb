// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-briefing CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-briefing/internal/config"
	"github.com/pdiddy/research-briefing/internal/secrets"
	"github.com/pdiddy/research-briefing/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ and .env at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the research-briefing CLI.
var rootCmd = &cobra.Command{
	Use:   "research-briefing",
	Short: "Daily briefing of new preprints on AI agents for science",
	Long: `research-briefing fetches new preprints from arXiv, bioRxiv, and medRxiv,
filters them for relevance (keyword screen, embedding similarity, and a
language-model judge applying a rubric), summarizes the accepted papers,
and writes a dated briefing.

Every decided paper is recorded in a SQLite ledger so later runs never
judge it again. Papers that failed transiently are left out of the ledger
and retried on the next run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.LoadAll(".secrets/", ".env")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-briefing.yaml or ~/.config/research-briefing/research-briefing.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("ledger", "", "ledger database path")

	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("ledger.path", rootCmd.PersistentFlags().Lookup("ledger"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		return
	}
	viper.SetConfigName(config.FileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "research-briefing"))
	}
}

// loadConfig reads and validates the configuration. Commands that call
// external services also check credentials.
func loadConfig(needCredentials bool) (*types.Config, error) {
	cfg, err := config.Load(viper.GetViper(), loadedSecrets)
	if err != nil {
		return nil, err
	}
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
	if needCredentials {
		if err := config.ValidateCredentials(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
