package retrieval

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/store"
)

// FeedbackResult reports one feedback application.
type FeedbackResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Applied  bool   `json:"applied"`
	NotFound bool   `json:"not_found,omitempty"`
}

// ApplyFeedback marks the most recent retrieval of each episode as
// helpful or not and recomputes the cached utility score. A nil verdict
// only clears staleness, it does not change counters. IDs may be
// 8-character prefixes. Unknown IDs are reported, not fatal.
func (r *Ranker) ApplyFeedback(ctx context.Context, ids []string, helpful *bool) ([]FeedbackResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no episode IDs given")
	}

	results := make([]FeedbackResult, 0, len(ids))
	for _, id := range ids {
		res, err := r.applyOne(ctx, id, helpful)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Ranker) applyOne(ctx context.Context, id string, helpful *bool) (FeedbackResult, error) {
	ep, err := r.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return FeedbackResult{ID: id, NotFound: true}, nil
		}
		return FeedbackResult{}, fmt.Errorf("loading episode %s: %w", id, err)
	}

	ep.ApplyFeedback(helpful)

	if err := r.store.Update(ctx, ep); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			fresh, loadErr := r.store.Load(ctx, ep.ID)
			if loadErr != nil {
				return FeedbackResult{}, fmt.Errorf("reloading episode %s: %w", id, loadErr)
			}
			fresh.ApplyFeedback(helpful)
			if err := r.store.Update(ctx, fresh); err != nil {
				return FeedbackResult{}, fmt.Errorf("saving feedback for %s: %w", id, err)
			}
			ep = fresh
		} else {
			return FeedbackResult{}, fmt.Errorf("saving feedback for %s: %w", id, err)
		}
	}

	FeedbackTotal.WithLabelValues(verdictLabel(helpful)).Inc()
	r.logger.Debug("feedback applied",
		zap.String("id", ep.ShortID()),
		zap.String("verdict", verdictLabel(helpful)))

	return FeedbackResult{ID: ep.ID, Title: ep.Title(), Applied: true}, nil
}

func verdictLabel(helpful *bool) string {
	switch {
	case helpful == nil:
		return "neutral"
	case *helpful:
		return "helpful"
	default:
		return "unhelpful"
	}
}
