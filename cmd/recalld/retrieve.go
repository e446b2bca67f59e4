package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/recalld/internal/retrieval"
)

var (
	retrieveLimit   int
	retrieveProject string
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Retrieve episodes relevant to a task",
	Long: `Retrieve ranks stored episodes against the query, combining semantic
similarity with each episode's learned utility, and records the
retrieval so later feedback can be attributed.

Examples:
  # Top matches for a task description
  recalld retrieve "flaky integration test in the payments service"

  # Restrict to one project, return more results
  recalld retrieve "migrate config loading" --project billing --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().IntVar(&retrieveLimit, "limit", 0, "maximum results (default from config)")
	retrieveCmd.Flags().StringVar(&retrieveProject, "project", "", "restrict results to this project")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ranker, err := a.ranker()
	if err != nil {
		return err
	}

	results, err := ranker.Retrieve(cmd.Context(), retrieval.Request{
		Query:             args[0],
		Limit:             retrieveLimit,
		ProjectFilter:     retrieveProject,
		RequestingProject: retrieveProject,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(results)
	}

	if len(results) == 0 {
		fmt.Println("No matching episodes.")
		return nil
	}
	for i, r := range results {
		ep := r.Episode
		fmt.Printf("%d. [%s] %s\n", i+1, ep.ShortID(), ep.Title())
		fmt.Printf("   project: %s  similarity: %.2f  utility: %.2f  combined: %.2f\n",
			ep.Project, r.SimilarityScore, r.UtilityScore, r.CombinedScore)
		if len(ep.Intent.Domain) > 0 {
			fmt.Printf("   tags: %s\n", strings.Join(ep.Intent.Domain, ", "))
		}
	}
	return nil
}
