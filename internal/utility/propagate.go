package utility

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/episode"
	"github.com/fyrsmithlabs/recalld/internal/oracle"
	"github.com/fyrsmithlabs/recalld/internal/store"
)

// Propagation modes reported by PropagationReport.Mode.
const (
	// ModeVector means value flowed along similarity-oracle edges.
	ModeVector = "vector"

	// ModeTagGroups means the degraded tag-grouping path ran because no
	// similarity oracle was available.
	ModeTagGroups = "tag-groups"
)

// PropagationReport summarizes one propagation pass.
type PropagationReport struct {
	// Propagated is the number of target records whose score moved.
	Propagated int

	// UtilityDelta is the net score change across all targets.
	UtilityDelta float64

	// Mode records which propagation path ran.
	Mode string
}

// PropagationEngine spreads utility from episodes with demonstrated
// direct feedback onto semantically close episodes that have not yet
// accumulated feedback of their own. This is how sparse human
// judgments generalize across the collection.
//
// The update is a one-step temporal-difference rule where the
// "successor state" is a semantic neighbor rather than a future time
// step: value flows along similarity edges, discounted by gamma and by
// the edge's similarity.
type PropagationEngine struct {
	store  store.Store
	oracle oracle.Oracle
	params Params
	logger *zap.Logger
}

// NewPropagationEngine creates a propagation engine. The oracle may be
// nil; the engine then always takes the tag-grouping path.
func NewPropagationEngine(s store.Store, o oracle.Oracle, params Params, logger *zap.Logger) (*PropagationEngine, error) {
	if s == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PropagationEngine{store: s, oracle: o, params: params, logger: logger}, nil
}

// Run executes one propagation pass, optionally restricted to episodes
// whose project name contains project (case-insensitive).
func (e *PropagationEngine) Run(ctx context.Context, project string) (PropagationReport, error) {
	listing, err := e.store.List(ctx)
	if err != nil {
		return PropagationReport{}, fmt.Errorf("listing episodes: %w", err)
	}

	episodes := filterByProject(listing.Episodes, project)

	if e.oracle != nil && e.oracle.Available(ctx) {
		return e.runVector(ctx, episodes, project)
	}
	e.logger.Info("similarity oracle unavailable, using tag-group propagation")
	return e.runTagGroups(ctx, episodes)
}

// runVector propagates along similarity edges from the oracle.
func (e *PropagationEngine) runVector(ctx context.Context, episodes []*episode.Episode, project string) (PropagationReport, error) {
	report := PropagationReport{Mode: ModeVector}

	sources := selectSources(episodes)
	if len(sources) == 0 {
		return report, nil
	}
	e.logger.Debug("propagation sources selected", zap.Int("count", len(sources)))

	for _, source := range sources {
		matches, err := e.oracle.Search(ctx, source.SearchText(), propagationNeighbors, project)
		if err != nil {
			// A failing oracle mid-pass degrades, it does not abort.
			e.logger.Warn("neighbor search failed, skipping source",
				zap.String("id", source.ShortID()), zap.Error(err))
			continue
		}

		// Decay runs earlier in the cycle, so the cached score already
		// reflects aging.
		sourceScore := source.Utility.EffectiveScore()

		for _, match := range matches {
			if match.ID == source.ID {
				continue
			}
			if match.Similarity < e.params.PropagationThreshold {
				continue
			}

			target, err := e.store.Load(ctx, match.ID)
			if err != nil {
				// Stale index entries resolve to nothing; keep going.
				continue
			}

			old := 0.5
			if target.Utility.Score != nil {
				old = *target.Utility.Score
			}

			tdError := e.params.DiscountFactor*sourceScore*match.Similarity - old
			next := clampScore(old + e.params.LearningRate*tdError)

			if math.Abs(next-old) <= minScoreChange {
				continue
			}

			target.Utility.SetScore(next)
			if err := e.store.Update(ctx, target); err != nil {
				if skippableWrite(err) {
					e.logger.Warn("propagation write skipped",
						zap.String("id", target.ShortID()), zap.Error(err))
					continue
				}
				return report, fmt.Errorf("persisting propagated episode %s: %w", target.ShortID(), err)
			}

			report.Propagated++
			report.UtilityDelta += next - old
			EpisodesTouched.WithLabelValues("propagation").Inc()
		}
	}

	e.logger.Debug("vector propagation completed",
		zap.Int("propagated", report.Propagated),
		zap.Float64("utility_delta", report.UtilityDelta))
	return report, nil
}

// runTagGroups is the fallback path: within each shared tag (or task
// type) group, records scoring below the group average are pulled
// partway toward it. Precision traded for availability.
func (e *PropagationEngine) runTagGroups(ctx context.Context, episodes []*episode.Episode) (PropagationReport, error) {
	report := PropagationReport{Mode: ModeTagGroups}

	groups := make(map[string][]*episode.Episode)
	for _, ep := range episodes {
		for _, tag := range ep.Intent.Domain {
			key := strings.ToLower(tag)
			groups[key] = append(groups[key], ep)
		}
		key := strings.ToLower(string(ep.Intent.TaskType))
		groups[key] = append(groups[key], ep)
	}

	// An episode may sit below average in several groups; write each
	// record at most once per pass so CAS versions stay coherent.
	written := make(map[string]bool)

	for _, group := range groups {
		if len(group) < 2 {
			continue
		}

		var sum float64
		for _, ep := range group {
			sum += ep.Utility.CalculateScore()
		}
		avg := sum / float64(len(group))

		for _, ep := range group {
			if written[ep.ID] {
				continue
			}
			current := ep.Utility.CalculateScore()
			if current >= avg-0.1 {
				continue
			}

			next := clampScore(current + e.params.LearningRate*(avg-current))
			if math.Abs(next-current) <= minScoreChange {
				continue
			}

			ep.Utility.SetScore(next)
			if err := e.store.Update(ctx, ep); err != nil {
				if skippableWrite(err) {
					continue
				}
				return report, fmt.Errorf("persisting episode %s: %w", ep.ShortID(), err)
			}

			written[ep.ID] = true
			report.Propagated++
			report.UtilityDelta += next - current
			EpisodesTouched.WithLabelValues("propagation").Inc()
		}
	}

	e.logger.Debug("tag-group propagation completed",
		zap.Int("propagated", report.Propagated),
		zap.Float64("utility_delta", report.UtilityDelta))
	return report, nil
}

// selectSources picks episodes trustworthy enough to propagate from:
// a majority-helpful ratio over at least two retrievals. Records below
// this bar are excluded regardless of similarity.
func selectSources(episodes []*episode.Episode) []*episode.Episode {
	var sources []*episode.Episode
	for _, ep := range episodes {
		retrievals := ep.Utility.RetrievalCount
		if retrievals < 2 {
			continue
		}
		ratio := float64(ep.Utility.HelpfulCount) / math.Max(float64(retrievals), 1)
		if ratio > 0.5 {
			sources = append(sources, ep)
		}
	}
	return sources
}

func filterByProject(episodes []*episode.Episode, project string) []*episode.Episode {
	if project == "" {
		return episodes
	}
	needle := strings.ToLower(project)
	var out []*episode.Episode
	for _, ep := range episodes {
		if strings.Contains(strings.ToLower(ep.Project), needle) {
			out = append(out, ep)
		}
	}
	return out
}

func clampScore(v float64) float64 {
	return math.Min(math.Max(v, 0.0), 1.0)
}
