package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/recalld/internal/store"
)

var statsProject string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	Long: `Stats summarizes the episode collection: outcome distribution,
retrieval and feedback totals, average utility, project list and the
most common domain tags.

Examples:
  recalld stats
  recalld stats --project billing --json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsProject, "project", "", "restrict statistics to matching projects")
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := store.CollectStats(cmd.Context(), a.store, statsProject)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(stats)
	}

	fmt.Printf("episodes: %d (success %d, partial %d, failure %d)\n",
		stats.Total, stats.SuccessCount, stats.PartialCount, stats.FailureCount)
	fmt.Printf("retrievals: %d (helpful %d)\n", stats.TotalRetrievals, stats.TotalHelpful)
	fmt.Printf("average utility: %.2f\n", stats.AvgUtility)
	if len(stats.Projects) > 0 {
		fmt.Printf("projects: %s\n", strings.Join(stats.Projects, ", "))
	}
	if len(stats.TopTags) > 0 {
		parts := make([]string, 0, len(stats.TopTags))
		for _, t := range stats.TopTags {
			parts = append(parts, fmt.Sprintf("%s (%d)", t.Tag, t.Count))
		}
		fmt.Printf("top tags: %s\n", strings.Join(parts, ", "))
	}
	if stats.UnreadableRecords > 0 {
		fmt.Printf("warning: %d unreadable records\n", stats.UnreadableRecords)
	}
	return nil
}
