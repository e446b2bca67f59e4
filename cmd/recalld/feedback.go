package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	feedbackHelpful    bool
	feedbackNotHelpful bool
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <episode-id>...",
	Short: "Mark retrieved episodes as helpful or not",
	Long: `Feedback attributes a verdict to the most recent retrieval of each
episode. Helpful feedback raises the episode's utility and permanently
protects it from pruning. IDs may be 8-character prefixes.

Examples:
  # The first result actually helped
  recalld feedback a1b2c3d4 --helpful

  # Two results were noise
  recalld feedback a1b2c3d4 9f8e7d6c --not-helpful

  # Acknowledge without a verdict
  recalld feedback a1b2c3d4`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFeedback,
}

func init() {
	feedbackCmd.Flags().BoolVar(&feedbackHelpful, "helpful", false, "the episode helped with the task")
	feedbackCmd.Flags().BoolVar(&feedbackNotHelpful, "not-helpful", false, "the episode did not help")
	feedbackCmd.MarkFlagsMutuallyExclusive("helpful", "not-helpful")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var verdict *bool
	switch {
	case feedbackHelpful:
		v := true
		verdict = &v
	case feedbackNotHelpful:
		v := false
		verdict = &v
	}

	ranker, err := a.ranker()
	if err != nil {
		return err
	}

	results, err := ranker.ApplyFeedback(cmd.Context(), args, verdict)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(results)
	}
	for _, r := range results {
		if r.NotFound {
			fmt.Printf("not found: %s\n", r.ID)
			continue
		}
		fmt.Printf("recorded: [%s] %s\n", r.ID[:8], r.Title)
	}
	return nil
}
