package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/utility"
)

var (
	pruneMaxAgeDays int
	pruneMinUtility float64
	pruneDryRun     bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old or low-utility episodes",
	Long: `Prune deletes episodes that are older than a cutoff or score below a
utility floor. Episodes that ever received direct positive feedback are
always retained, whatever their age or score.

At least one of --max-age-days or --min-utility is required.

Examples:
  # Preview what would be removed
  recalld prune --max-age-days 180 --dry-run

  # Remove stale and useless episodes
  recalld prune --max-age-days 180 --min-utility 0.05`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().IntVar(&pruneMaxAgeDays, "max-age-days", 0, "remove episodes older than this many days")
	pruneCmd.Flags().Float64Var(&pruneMinUtility, "min-utility", 0, "remove episodes scoring below this utility")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "report candidates without deleting")
}

func runPrune(cmd *cobra.Command, args []string) error {
	opts := utility.PruneOptions{DryRun: pruneDryRun}
	if cmd.Flags().Changed("max-age-days") {
		opts.MaxAgeDays = &pruneMaxAgeDays
	}
	if cmd.Flags().Changed("min-utility") {
		opts.MinUtility = &pruneMinUtility
	}
	if opts.MaxAgeDays == nil && opts.MinUtility == nil {
		return fmt.Errorf("at least one of --max-age-days or --min-utility is required")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	pruner, err := utility.NewPruner(a.store, a.logger)
	if err != nil {
		return err
	}

	report, err := pruner.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if a.chromem != nil && !pruneDryRun && len(report.Candidates) > 0 {
		ids := make([]string, 0, len(report.Candidates))
		for _, c := range report.Candidates {
			ids = append(ids, c.ID)
		}
		if err := a.chromem.Remove(cmd.Context(), ids); err != nil {
			a.logger.Warn("failed to remove pruned episodes from index", zap.Error(err))
		}
	}

	if jsonOut {
		return printJSON(report)
	}
	if pruneDryRun {
		fmt.Printf("would prune %d episodes, retain %d\n", len(report.Candidates), report.Retained)
	} else {
		fmt.Printf("pruned %d episodes, retained %d\n", report.Pruned, report.Retained)
	}
	for _, c := range report.Candidates {
		fmt.Printf("  [%s] %s (%s)\n", c.ShortID, c.Intent, strings.Join(c.Reasons, ", "))
	}
	return nil
}
