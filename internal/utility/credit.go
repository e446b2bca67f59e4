package utility

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/episode"
	"github.com/fyrsmithlabs/recalld/internal/store"
)

const (
	// creditLookback is how far back, in wall time, a success reaches
	// when crediting earlier episodes.
	creditLookback = time.Hour

	// creditStepPenalty reduces credit per ordinal step of distance.
	creditStepPenalty = 0.2

	// creditBase is the maximum undiscounted credit per episode, so one
	// pass nudges a score by at most creditBase * gamma.
	creditBase = 0.1
)

// CreditEngine retroactively rewards episodes that immediately preceded
// a successful outcome, on the theory that they contributed to it even
// though they individually received no feedback. Proximate causes earn
// more than distant ones, and the total bump per run stays small: the
// engine nudges, it never dominates.
type CreditEngine struct {
	store  store.Store
	params Params
	logger *zap.Logger
}

// NewCreditEngine creates a temporal credit engine.
func NewCreditEngine(s store.Store, params Params, logger *zap.Logger) (*CreditEngine, error) {
	if s == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreditEngine{store: s, params: params, logger: logger}, nil
}

// Run assigns credit across the episode timeline, optionally restricted
// to one project (exact match, case-insensitive). Returns the number of
// episodes whose score was raised.
func (e *CreditEngine) Run(ctx context.Context, project string) (int, error) {
	listing, err := e.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing episodes: %w", err)
	}

	episodes := listing.Episodes
	if project != "" {
		var filtered []*episode.Episode
		for _, ep := range episodes {
			if strings.EqualFold(ep.Project, project) {
				filtered = append(filtered, ep)
			}
		}
		episodes = filtered
	}

	sort.Slice(episodes, func(i, j int) bool {
		return episodes[i].TimestampStart.Before(episodes[j].TimestampStart)
	})

	if len(episodes) < 2 {
		return 0, nil
	}

	updated := 0
	for i := 1; i < len(episodes); i++ {
		current := episodes[i]
		if current.Outcome.Status != episode.OutcomeSuccess {
			continue
		}

		for j := i - 1; j >= 0; j-- {
			prev := episodes[j]

			// The scan stops at the first candidate outside the window;
			// everything earlier is older still.
			if current.TimestampStart.Sub(prev.TimestampEnd) > creditLookback {
				break
			}

			related := prev.Project == current.Project || prev.SharesTag(current)
			if !related {
				continue
			}

			old := 0.5
			if prev.Utility.Score != nil {
				old = *prev.Utility.Score
			}

			timeFactor := 1.0 - float64(i-j)*creditStepPenalty
			credit := e.params.DiscountFactor * timeFactor * creditBase
			next := math.Min(old+credit, 1.0)

			if next <= old+minScoreChange {
				continue
			}

			prev.Utility.SetScore(next)
			if err := e.store.Update(ctx, prev); err != nil {
				if skippableWrite(err) {
					e.logger.Warn("credit write skipped",
						zap.String("id", prev.ShortID()), zap.Error(err))
					continue
				}
				return updated, fmt.Errorf("persisting credited episode %s: %w", prev.ShortID(), err)
			}

			updated++
			EpisodesTouched.WithLabelValues("credit").Inc()
		}
	}

	e.logger.Debug("temporal credit pass completed", zap.Int("credited", updated))
	return updated, nil
}
