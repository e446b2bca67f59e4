// Package main implements the recalld CLI for episodic memory
// retrieval, feedback and utility learning.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/config"
	"github.com/fyrsmithlabs/recalld/internal/logging"
	"github.com/fyrsmithlabs/recalld/internal/oracle"
	"github.com/fyrsmithlabs/recalld/internal/retrieval"
	"github.com/fyrsmithlabs/recalld/internal/store"
)

var (
	// cfgPath overrides the default config file location.
	cfgPath string
	// jsonOut switches command output to JSON.
	jsonOut bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "recalld",
	Short: "Episodic memory with learned retrieval utility",
	Long: `recalld stores episodes of past work and retrieves the ones most
likely to help with the task at hand. Every retrieval is recorded, and
feedback on whether an episode actually helped feeds a background
learning cycle that raises the standing of useful episodes and lets
stale ones fade.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.config/recalld/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit JSON output")
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(propagateCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(serveCmd)
}

// app bundles the components wired for one command invocation.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   store.Store
	chromem *oracle.ChromemOracle // nil when the text provider is configured
}

// newApp loads configuration and wires the store and oracle.
func newApp() (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	fs, err := store.NewFileStore(cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening episode store: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, store: fs}
	if cfg.Oracle.Provider == "chromem" {
		embedder := oracle.NewHashingEmbedder(0)
		chr, err := oracle.NewChromemOracle(cfg.Oracle.Chromem, embedder, logger)
		if err != nil {
			return nil, fmt.Errorf("opening vector index: %w", err)
		}
		a.chromem = chr
	}
	return a, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// oracle returns the configured similarity oracle, or nil when ranking
// should use the text-overlap fallback.
func (a *app) oracle() oracle.Oracle {
	if a.chromem == nil {
		return nil
	}
	return a.chromem
}

func (a *app) ranker() (*retrieval.Ranker, error) {
	return retrieval.NewRanker(a.store, a.oracle(), a.cfg.Retrieval, a.logger)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
