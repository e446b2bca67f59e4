package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/episode"
)

var (
	recordProject string
	recordTags    []string
	recordOutcome string
)

var recordCmd = &cobra.Command{
	Use:   "record [file]",
	Short: "Record a session as an episode",
	Long: `Record stores a new episode. Pass a JSON episode document as a file
or on stdin with "-", or describe the session inline with flags and the
task text as the argument.

Examples:
  # Store a prepared episode document
  recalld record episode.json

  # From stdin
  session-exporter | recalld record -

  # Inline
  recalld record --project billing --outcome success \
    --tag auth --tag sql "fix login timeout against replica lag"`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVar(&recordProject, "project", "", "project the session belonged to")
	recordCmd.Flags().StringArrayVar(&recordTags, "tag", nil, "domain tag (repeatable)")
	recordCmd.Flags().StringVar(&recordOutcome, "outcome", "", "session outcome: success, partial or failure")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ep, err := buildEpisode(args[0])
	if err != nil {
		return err
	}
	if err := ep.Validate(); err != nil {
		return fmt.Errorf("invalid episode: %w", err)
	}

	if err := a.store.Save(cmd.Context(), ep); err != nil {
		return fmt.Errorf("saving episode: %w", err)
	}
	if a.chromem != nil {
		if err := a.chromem.Index(cmd.Context(), []*episode.Episode{ep}); err != nil {
			a.logger.Warn("episode stored but not indexed; run 'recalld index' to repair", zap.Error(err))
		}
	}

	if jsonOut {
		return printJSON(ep)
	}
	fmt.Printf("recorded: [%s] %s\n", ep.ShortID(), ep.Title())
	return nil
}

// buildEpisode interprets the argument as a JSON document path, stdin
// marker, or inline task text depending on the flags given.
func buildEpisode(arg string) (*episode.Episode, error) {
	if recordProject != "" {
		ep := episode.New(recordProject, arg)
		ep.Intent.Domain = recordTags
		if recordOutcome != "" {
			ep.Outcome.Status = episode.OutcomeStatus(strings.ToLower(recordOutcome))
		}
		return ep, nil
	}

	var data []byte
	var err error
	if arg == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return nil, fmt.Errorf("reading episode document: %w", err)
	}

	var ep episode.Episode
	if err := json.Unmarshal(data, &ep); err != nil {
		return nil, fmt.Errorf("parsing episode document: %w", err)
	}
	if ep.ID == "" {
		fresh := episode.New(ep.Project, ep.Intent.RawPrompt)
		ep.ID = fresh.ID
		if ep.TimestampStart.IsZero() {
			ep.TimestampStart = fresh.TimestampStart
			ep.TimestampEnd = fresh.TimestampEnd
		}
		if ep.Outcome.Status == "" {
			ep.Outcome.Status = episode.OutcomePartial
		}
		if ep.Intent.TaskType == "" {
			ep.Intent.TaskType = episode.TaskUnknown
		}
	}
	return &ep, nil
}
