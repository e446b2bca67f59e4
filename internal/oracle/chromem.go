package oracle

import (
	"context"
	"fmt"
	"os"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/episode"
)

// episodeCollection is the chromem collection holding episode vectors.
const episodeCollection = "episodes"

// ChromemConfig holds configuration for the embedded vector index.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty means
	// in-memory only (useful for tests).
	Path string `koanf:"path"`

	// Compress enables gzip compression of persisted vectors.
	Compress bool `koanf:"compress"`
}

// ChromemOracle implements Oracle on top of chromem-go, an embeddable
// pure-Go vector database. Episodes are indexed by their search text
// surrogate with project and outcome kept as payload metadata so
// queries can filter without loading records.
type ChromemOracle struct {
	db       *chromem.DB
	embedder Embedder
	logger   *zap.Logger
}

// NewChromemOracle creates the oracle, opening or creating the
// persistent database when cfg.Path is set.
func NewChromemOracle(cfg ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemOracle, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
			return nil, fmt.Errorf("creating index directory %s: %w", cfg.Path, err)
		}
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem database: %w", err)
		}
	}

	o := &ChromemOracle{db: db, embedder: embedder, logger: logger}
	logger.Info("chromem oracle initialized",
		zap.String("path", cfg.Path),
		zap.Bool("compress", cfg.Compress))
	return o, nil
}

// embeddingFunc adapts the injected Embedder to chromem's callback.
func (o *ChromemOracle) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return o.embedder.Embed(ctx, text)
	}
}

func (o *ChromemOracle) collection() (*chromem.Collection, error) {
	collection, err := o.db.GetOrCreateCollection(episodeCollection, nil, o.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("getting collection %s: %w", episodeCollection, err)
	}
	return collection, nil
}

// Index adds or refreshes episodes in the vector index. Existing
// documents with the same ID are overwritten, which is how utility
// metadata updates reach the index.
func (o *ChromemOracle) Index(ctx context.Context, episodes []*episode.Episode) error {
	if len(episodes) == 0 {
		return nil
	}

	collection, err := o.collection()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(episodes))
	for _, ep := range episodes {
		docs = append(docs, chromem.Document{
			ID:      ep.ID,
			Content: ep.SearchText(),
			Metadata: map[string]string{
				"project": ep.Project,
				"outcome": string(ep.Outcome.Status),
				"utility": fmt.Sprintf("%.4f", ep.Utility.EffectiveScore()),
			},
		})
	}

	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("indexing episodes: %w", err)
	}

	o.logger.Debug("episodes indexed", zap.Int("count", len(docs)))
	return nil
}

// Remove deletes episodes from the index. Missing IDs are ignored.
func (o *ChromemOracle) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	collection, err := o.collection()
	if err != nil {
		return err
	}
	if err := collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("removing episodes from index: %w", err)
	}
	return nil
}

// Search returns the k nearest episodes to the query text.
func (o *ChromemOracle) Search(ctx context.Context, query string, k int, project string) ([]Match, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	collection, err := o.collection()
	if err != nil {
		return nil, err
	}

	// chromem requires nResults <= document count.
	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	var where map[string]string
	if project != "" {
		where = map[string]string{"project": project}
	}

	results, err := collection.Query(ctx, query, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{ID: r.ID, Similarity: clamp01(float64(r.Similarity))})
	}
	return matches, nil
}

// Available reports whether the index holds any vectors.
func (o *ChromemOracle) Available(ctx context.Context) bool {
	collection, err := o.collection()
	if err != nil {
		return false
	}
	return collection.Count() > 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
