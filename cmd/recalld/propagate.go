package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/recalld/internal/utility"
)

var propagateProject string

var propagateCmd = &cobra.Command{
	Use:   "propagate",
	Short: "Run one utility learning cycle",
	Long: `Propagate runs decay, similarity propagation and temporal credit
assignment over the episode collection. Decay lowers the standing of
inactive episodes, propagation pulls the scores of similar episodes
toward their proven neighbors, and temporal credit rewards episodes
retrieved shortly before a successful session.

Examples:
  # Learn over the whole collection
  recalld propagate

  # Restrict the cycle to one project
  recalld propagate --project billing`,
	Args: cobra.NoArgs,
	RunE: runPropagate,
}

func init() {
	propagateCmd.Flags().StringVar(&propagateProject, "project", "", "restrict the cycle to this project")
}

func runPropagate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	learner, err := utility.NewLearner(a.store, a.oracle(), a.cfg.Utility, a.logger)
	if err != nil {
		return err
	}

	report, err := learner.Run(cmd.Context(), propagateProject)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(report)
	}
	fmt.Printf("processed %d episodes in %s (%s propagation)\n",
		report.Processed, report.Duration.Round(time.Millisecond), report.PropagationMode)
	fmt.Printf("  decayed: %d  propagated: %d  credited: %d  net utility change: %+.3f\n",
		report.Decayed, report.Propagated, report.Credited, report.UtilityDelta)
	if report.UnreadableRecords > 0 {
		fmt.Printf("  warning: %d unreadable records skipped\n", report.UnreadableRecords)
	}
	return nil
}
