package utility

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/episode"
	"github.com/fyrsmithlabs/recalld/internal/oracle"
	"github.com/fyrsmithlabs/recalld/internal/store"
)

// Indexer is implemented by oracles that maintain their own copy of
// episode metadata and want it refreshed after a learning cycle.
type Indexer interface {
	Index(ctx context.Context, episodes []*episode.Episode) error
}

// LearnReport aggregates the results of one full learning cycle.
type LearnReport struct {
	// Processed is the number of episodes in the collection at the
	// start of the cycle.
	Processed int `json:"processed"`

	// Decayed, Propagated and Credited are per-pass mutation counts.
	Decayed    int `json:"decayed"`
	Propagated int `json:"propagated"`
	Credited   int `json:"credited"`

	// UtilityDelta is the net score change across decay and propagation.
	UtilityDelta float64 `json:"utility_delta"`

	// PropagationMode records whether the vector or the tag-group path ran.
	PropagationMode string `json:"propagation_mode"`

	// UnreadableRecords is the number of persisted records skipped
	// because they failed to parse.
	UnreadableRecords int `json:"unreadable_records"`

	// Duration is the wall time of the cycle.
	Duration time.Duration `json:"duration"`
}

// Learner orchestrates the full learning cycle:
// decay, then propagation, then temporal credit.
//
// Decay must run before propagation because propagation reads the
// cached score decay may have just rewritten. After the passes, oracles
// that keep their own metadata copy are re-synced.
type Learner struct {
	store     store.Store
	oracle    oracle.Oracle
	decay     *DecayEngine
	propagate *PropagationEngine
	credit    *CreditEngine
	logger    *zap.Logger
}

// NewLearner wires the three engines over a shared store and oracle.
// The oracle may be nil; propagation then uses its fallback path.
func NewLearner(s store.Store, o oracle.Oracle, params Params, logger *zap.Logger) (*Learner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	decay, err := NewDecayEngine(s, params, logger)
	if err != nil {
		return nil, fmt.Errorf("creating decay engine: %w", err)
	}
	propagate, err := NewPropagationEngine(s, o, params, logger)
	if err != nil {
		return nil, fmt.Errorf("creating propagation engine: %w", err)
	}
	credit, err := NewCreditEngine(s, params, logger)
	if err != nil {
		return nil, fmt.Errorf("creating credit engine: %w", err)
	}

	return &Learner{
		store:     s,
		oracle:    o,
		decay:     decay,
		propagate: propagate,
		credit:    credit,
		logger:    logger,
	}, nil
}

// Run executes one learning cycle, optionally restricted to a project.
func (l *Learner) Run(ctx context.Context, project string) (*LearnReport, error) {
	start := time.Now()
	report := &LearnReport{}

	listing, err := l.store.List(ctx)
	if err != nil {
		LearningRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("listing episodes: %w", err)
	}
	report.Processed = len(listing.Episodes)
	report.UnreadableRecords = len(listing.Errors)
	if report.Processed == 0 {
		LearningRunsTotal.WithLabelValues("success").Inc()
		return report, nil
	}

	decayReport, err := l.decay.Run(ctx)
	if err != nil {
		LearningRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decay pass: %w", err)
	}
	report.Decayed = decayReport.Decayed
	report.UtilityDelta += decayReport.UtilityDelta

	propReport, err := l.propagate.Run(ctx, project)
	if err != nil {
		LearningRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("propagation pass: %w", err)
	}
	report.Propagated = propReport.Propagated
	report.PropagationMode = propReport.Mode
	report.UtilityDelta += propReport.UtilityDelta

	credited, err := l.credit.Run(ctx, project)
	if err != nil {
		LearningRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("credit pass: %w", err)
	}
	report.Credited = credited

	l.syncIndex(ctx)

	report.Duration = time.Since(start)
	LearningRunsTotal.WithLabelValues("success").Inc()
	LearningRunDuration.Observe(report.Duration.Seconds())

	l.logger.Info("learning cycle completed",
		zap.Int("processed", report.Processed),
		zap.Int("decayed", report.Decayed),
		zap.Int("propagated", report.Propagated),
		zap.Int("credited", report.Credited),
		zap.String("propagation_mode", report.PropagationMode),
		zap.Float64("utility_delta", report.UtilityDelta),
		zap.Int("unreadable_records", report.UnreadableRecords),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// syncIndex pushes refreshed utility metadata back into the oracle's
// index. Best effort: a failed sync only leaves the index copy stale.
func (l *Learner) syncIndex(ctx context.Context) {
	indexer, ok := l.oracle.(Indexer)
	if !ok {
		return
	}

	listing, err := l.store.List(ctx)
	if err != nil {
		l.logger.Warn("index sync skipped", zap.Error(err))
		return
	}
	if err := indexer.Index(ctx, listing.Episodes); err != nil {
		l.logger.Warn("index sync failed", zap.Error(err))
	}
}
