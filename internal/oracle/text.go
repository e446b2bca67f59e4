package oracle

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/store"
)

// TextOracle is the degraded similarity path used when no vector index
// is available. Similarity is a token-overlap ratio over each episode's
// overlap text surrogate:
//
//	matches / (|query tokens| + |doc tokens| - matches)
//
// It trades precision for availability and keeps the rest of the
// pipeline oracle-agnostic.
type TextOracle struct {
	store  store.Store
	logger *zap.Logger
}

// NewTextOracle creates the fallback oracle over the given store.
func NewTextOracle(s store.Store, logger *zap.Logger) *TextOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextOracle{store: s, logger: logger}
}

// Search scores every stored episode against the query and returns the
// top k, ordered by descending similarity. Zero-similarity episodes are
// dropped.
func (o *TextOracle) Search(ctx context.Context, query string, k int, project string) ([]Match, error) {
	listing, err := o.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(listing.Errors) > 0 {
		o.logger.Warn("text search over incomplete listing",
			zap.Int("unreadable_records", len(listing.Errors)))
	}

	var matches []Match
	for _, ep := range listing.Episodes {
		if project != "" && !strings.Contains(strings.ToLower(ep.Project), strings.ToLower(project)) {
			continue
		}
		sim := OverlapSimilarity(query, ep.OverlapText())
		if sim > 0 {
			matches = append(matches, Match{ID: ep.ID, Similarity: sim})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Available always reports true; text overlap needs only the store.
func (o *TextOracle) Available(ctx context.Context) bool { return true }

// OverlapSimilarity computes the token-overlap ratio between a query
// and a document text. A query token matches when it appears anywhere
// in the document, so partial word forms still count.
func OverlapSimilarity(query, docText string) float64 {
	queryTokens := strings.Fields(strings.ToLower(query))
	if len(queryTokens) == 0 {
		return 0
	}

	matches := 0
	for _, token := range queryTokens {
		if strings.Contains(docText, token) {
			matches++
		}
	}

	docTokens := strings.Fields(docText)
	totalUnique := len(queryTokens) + len(docTokens) - matches
	if totalUnique <= 0 {
		return 0
	}
	return float64(matches) / float64(totalUnique)
}
