package utility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/store"
)

// PruneOptions controls a pruning run. A nil threshold disables that
// criterion.
type PruneOptions struct {
	// MaxAgeDays marks episodes older than this as candidates.
	MaxAgeDays *int

	// MinUtility marks episodes scoring below this as candidates.
	MinUtility *float64

	// DryRun reports candidates without deleting anything.
	DryRun bool
}

// PruneCandidate describes one episode slated for removal and why.
type PruneCandidate struct {
	ID      string   `json:"id"`
	ShortID string   `json:"short_id"`
	Intent  string   `json:"intent"`
	Reasons []string `json:"reasons"`
}

// PruneReport is the outcome of a pruning run.
type PruneReport struct {
	Candidates []PruneCandidate `json:"candidates"`
	Pruned     int              `json:"pruned"`
	Retained   int              `json:"retained"`
}

// Pruner decides retention using age and utility, with one hard veto:
// any episode that has ever received direct positive feedback is
// retained regardless of how old or low-scoring it is.
type Pruner struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewPruner creates a pruner.
func NewPruner(s store.Store, logger *zap.Logger) (*Pruner, error) {
	if s == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pruner{store: s, logger: logger, now: time.Now}, nil
}

// Run classifies every episode and, unless opts.DryRun is set, deletes
// the candidates. Reasons accumulate when both thresholds apply.
func (p *Pruner) Run(ctx context.Context, opts PruneOptions) (*PruneReport, error) {
	listing, err := p.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing episodes: %w", err)
	}

	report := &PruneReport{}
	now := p.now()

	for _, ep := range listing.Episodes {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var reasons []string

		if opts.MaxAgeDays != nil {
			ageDays := int(now.Sub(ep.TimestampStart).Hours() / 24)
			if ageDays > *opts.MaxAgeDays {
				reasons = append(reasons, fmt.Sprintf("age: %d days", ageDays))
			}
		}

		if opts.MinUtility != nil {
			score := ep.Utility.EffectiveScore()
			if score < *opts.MinUtility {
				reasons = append(reasons, fmt.Sprintf("utility: %.0f%%", score*100))
			}
		}

		// Direct positive feedback is a hard veto on deletion.
		if ep.Utility.HelpfulCount > 0 {
			reasons = nil
		}

		if len(reasons) == 0 {
			report.Retained++
			continue
		}

		intent := ep.Intent.RawPrompt
		if runes := []rune(intent); len(runes) > 50 {
			intent = string(runes[:50])
		}
		report.Candidates = append(report.Candidates, PruneCandidate{
			ID:      ep.ID,
			ShortID: ep.ShortID(),
			Intent:  intent,
			Reasons: reasons,
		})

		if opts.DryRun {
			continue
		}

		if err := p.store.Delete(ctx, ep.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return report, fmt.Errorf("deleting episode %s: %w", ep.ShortID(), err)
		}
		report.Pruned++
		EpisodesPruned.Inc()
	}

	p.logger.Info("prune run completed",
		zap.Int("candidates", len(report.Candidates)),
		zap.Int("pruned", report.Pruned),
		zap.Int("retained", report.Retained),
		zap.Bool("dry_run", opts.DryRun))
	return report, nil
}
