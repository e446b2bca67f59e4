package utility

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/store"
)

// decayNegligible is the factor above which decay is skipped: a day or
// two of inactivity at the default rate is not worth a write.
const decayNegligible = 0.99

// DecayReport summarizes one decay pass.
type DecayReport struct {
	// Decayed is the number of records whose score was reduced.
	Decayed int

	// UtilityDelta is the net score change across all records (negative).
	UtilityDelta float64
}

// DecayEngine ages utility scores downward with inactivity.
//
// Inactivity is measured in whole days since the later of the episode's
// end and its most recent retrieval, which makes a pass idempotent
// within a day: running twice produces no further change because
// days_inactive does not advance.
type DecayEngine struct {
	store  store.Store
	params Params
	logger *zap.Logger
	now    func() time.Time
}

// NewDecayEngine creates a decay engine.
func NewDecayEngine(s store.Store, params Params, logger *zap.Logger) (*DecayEngine, error) {
	if s == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecayEngine{store: s, params: params, logger: logger, now: time.Now}, nil
}

// Run applies decay to every episode and persists the ones that moved.
// Decay is monotonically non-increasing per run.
func (e *DecayEngine) Run(ctx context.Context) (DecayReport, error) {
	var report DecayReport

	listing, err := e.store.List(ctx)
	if err != nil {
		return report, fmt.Errorf("listing episodes: %w", err)
	}

	now := e.now()
	for _, ep := range listing.Episodes {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		daysInactive := math.Max(0, math.Floor(now.Sub(ep.LastActivity()).Hours()/24))
		factor := math.Pow(1-e.params.DecayRate, daysInactive)
		if factor >= decayNegligible {
			continue
		}

		oldScore := ep.Utility.EffectiveScore()
		newScore := oldScore * factor
		ep.Utility.SetScore(newScore)

		if err := e.store.Update(ctx, ep); err != nil {
			if skippableWrite(err) {
				e.logger.Warn("decay write skipped",
					zap.String("id", ep.ShortID()), zap.Error(err))
				continue
			}
			return report, fmt.Errorf("persisting decayed episode %s: %w", ep.ShortID(), err)
		}

		report.Decayed++
		report.UtilityDelta += newScore - oldScore
		EpisodesTouched.WithLabelValues("decay").Inc()
	}

	e.logger.Debug("decay pass completed",
		zap.Int("decayed", report.Decayed),
		zap.Float64("utility_delta", report.UtilityDelta))
	return report, nil
}

// skippableWrite reports whether a failed write should be skipped so
// the batch can continue: records deleted or concurrently rewritten
// mid-pass are picked up by the next cycle.
func skippableWrite(err error) bool {
	if errors.Is(err, store.ErrVersionConflict) {
		WriteConflicts.Inc()
		return true
	}
	return errors.Is(err, store.ErrNotFound)
}
