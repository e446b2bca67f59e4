// Package retrieval ranks episodes for a query and records the
// retrieval observations that feed future scoring.
//
// Ranking combines per-query similarity with each episode's learned
// utility, then re-ranks for diversity with Maximal Marginal Relevance
// so the result set does not cluster around one dominant record. The
// ranker is oracle-agnostic: when no vector index is available it runs
// the same pipeline over a token-overlap fallback.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/episode"
	"github.com/fyrsmithlabs/recalld/internal/oracle"
	"github.com/fyrsmithlabs/recalld/internal/store"
)

// Defaults for ranking configuration.
const (
	// DefaultUtilityWeight is the share of the combined score carried
	// by learned utility rather than query similarity.
	DefaultUtilityWeight = 0.3

	// DefaultMinSimilarity is the floor below which candidates are
	// discarded.
	DefaultMinSimilarity = 0.1

	// DefaultLimit is the result count when the caller does not set one.
	DefaultLimit = 5

	// mmrLambda balances relevance against redundancy during
	// re-ranking: 0.7 relevance, 0.3 diversity.
	mmrLambda = 0.7

	// candidateMultiplier oversamples the oracle so MMR has slack to
	// swap near-duplicates out.
	candidateMultiplier = 2
)

// ErrEmptyQuery is returned when a retrieval request has no query text.
var ErrEmptyQuery = errors.New("query cannot be empty")

// Config holds ranking configuration.
type Config struct {
	// UtilityWeight in [0,1] weights utility against similarity.
	UtilityWeight float64 `koanf:"utility_weight"`

	// MinSimilarity discards candidates below this similarity.
	MinSimilarity float64 `koanf:"min_similarity"`

	// DefaultLimit is used when a request has no limit.
	DefaultLimit int `koanf:"default_limit"`
}

// DefaultConfig returns the standard ranking configuration.
func DefaultConfig() Config {
	return Config{
		UtilityWeight: DefaultUtilityWeight,
		MinSimilarity: DefaultMinSimilarity,
		DefaultLimit:  DefaultLimit,
	}
}

// Validate rejects out-of-range configuration.
func (c Config) Validate() error {
	if c.UtilityWeight < 0 || c.UtilityWeight > 1 {
		return fmt.Errorf("utility weight %v must be in [0,1]", c.UtilityWeight)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("min similarity %v must be in [0,1]", c.MinSimilarity)
	}
	if c.DefaultLimit < 1 {
		return fmt.Errorf("default limit %d must be at least 1", c.DefaultLimit)
	}
	return nil
}

// Request is one retrieval call.
type Request struct {
	// Query is the task description to match against.
	Query string

	// Limit caps the result count; 0 uses the configured default.
	Limit int

	// ProjectFilter restricts candidates to one project when non-empty.
	ProjectFilter string

	// RequestingProject identifies the caller's project for the
	// retrieval-history entry. Resolved by the caller, never inferred.
	RequestingProject string
}

// ScoredEpisode is an ephemeral ranking-time view of an episode. It is
// never persisted.
type ScoredEpisode struct {
	Episode         *episode.Episode `json:"episode"`
	SimilarityScore float64          `json:"similarity_score"`
	UtilityScore    float64          `json:"utility_score"`
	CombinedScore   float64          `json:"combined_score"`
}

// Ranker retrieves and ranks episodes.
type Ranker struct {
	store    store.Store
	oracle   oracle.Oracle
	fallback oracle.Oracle
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewRanker creates a ranker. The oracle may be nil; the ranker then
// always uses the text-overlap fallback.
func NewRanker(s store.Store, o oracle.Oracle, cfg Config, logger *zap.Logger) (*Ranker, error) {
	if s == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{
		store:    s,
		oracle:   o,
		fallback: oracle.NewTextOracle(s, logger),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Retrieve ranks episodes for the request and records a retrieval
// observation on every returned episode: ranking and observation are
// coupled by design, retrieval itself changes future scoring.
func (r *Ranker) Retrieve(ctx context.Context, req Request) ([]ScoredEpisode, error) {
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	limit := req.Limit
	if limit <= 0 {
		limit = r.cfg.DefaultLimit
	}

	active := r.fallback
	semantic := false
	if r.oracle != nil && r.oracle.Available(ctx) {
		active = r.oracle
		semantic = true
	}

	matches, err := active.Search(ctx, req.Query, limit*candidateMultiplier, req.ProjectFilter)
	if err != nil {
		if !semantic {
			return nil, fmt.Errorf("searching episodes: %w", err)
		}
		// A failing vector oracle degrades to the text path.
		r.logger.Warn("vector search failed, falling back to text overlap", zap.Error(err))
		semantic = false
		matches, err = r.fallback.Search(ctx, req.Query, limit*candidateMultiplier, req.ProjectFilter)
		if err != nil {
			return nil, fmt.Errorf("searching episodes: %w", err)
		}
	}

	candidates := r.score(ctx, matches)
	selected := applyMMR(candidates, limit, mmrLambda)

	if err := r.recordRetrievals(ctx, selected, req); err != nil {
		return nil, err
	}

	RetrievalsTotal.WithLabelValues(searchMode(semantic)).Inc()
	RetrievalResults.Observe(float64(len(selected)))

	r.logger.Debug("retrieval completed",
		zap.String("query", req.Query),
		zap.Bool("semantic", semantic),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(selected)))
	return selected, nil
}

// score loads each matched episode, combines similarity with utility
// and drops candidates under the similarity floor.
func (r *Ranker) score(ctx context.Context, matches []oracle.Match) []ScoredEpisode {
	candidates := make([]ScoredEpisode, 0, len(matches))
	for _, match := range matches {
		if match.Similarity < r.cfg.MinSimilarity {
			continue
		}
		ep, err := r.store.Load(ctx, match.ID)
		if err != nil {
			// Stale index entries resolve to nothing and are dropped.
			continue
		}

		utilityScore := ep.Utility.EffectiveScore()
		combined := (1-r.cfg.UtilityWeight)*match.Similarity + r.cfg.UtilityWeight*utilityScore

		candidates = append(candidates, ScoredEpisode{
			Episode:         ep,
			SimilarityScore: match.Similarity,
			UtilityScore:    utilityScore,
			CombinedScore:   combined,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CombinedScore > candidates[j].CombinedScore
	})
	return candidates
}

// recordRetrievals appends a history entry and bumps the retrieval
// counter on every returned episode.
func (r *Ranker) recordRetrievals(ctx context.Context, selected []ScoredEpisode, req Request) error {
	at := r.now().UTC()
	for i := range selected {
		ep := selected[i].Episode
		ep.RecordRetrieval(at, req.RequestingProject, req.Query)

		if err := r.store.Update(ctx, ep); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				// Reload and reapply once; the record moved under us.
				fresh, loadErr := r.store.Load(ctx, ep.ID)
				if loadErr != nil {
					continue
				}
				fresh.RecordRetrieval(at, req.RequestingProject, req.Query)
				if err := r.store.Update(ctx, fresh); err != nil {
					r.logger.Warn("retrieval record lost to write conflict",
						zap.String("id", ep.ShortID()), zap.Error(err))
					continue
				}
				selected[i].Episode = fresh
				continue
			}
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return fmt.Errorf("recording retrieval for %s: %w", ep.ShortID(), err)
		}
	}
	return nil
}

func searchMode(semantic bool) string {
	if semantic {
		return "vector"
	}
	return "text"
}
