// Package oracle provides similarity search over episodes.
//
// The learning and ranking core never touches embeddings or vector
// machinery directly; it only consumes this package's Oracle interface.
// Two implementations exist: ChromemOracle, backed by the embedded
// chromem-go vector database, and TextOracle, a token-overlap fallback
// that needs nothing but the record store. An unavailable vector index
// is a recoverable condition, never a failure: callers probe Available
// and degrade to the fallback.
package oracle

import (
	"context"
	"errors"
)

// Sentinel errors for oracle operations.
var (
	// ErrUnavailable is returned when the vector index cannot serve queries.
	ErrUnavailable = errors.New("similarity index unavailable")

	// ErrInvalidConfig indicates invalid oracle configuration.
	ErrInvalidConfig = errors.New("invalid oracle configuration")
)

// Match is a single similarity hit.
type Match struct {
	// ID is the matched episode ID.
	ID string

	// Similarity is the similarity score in [0,1], higher is closer.
	Similarity float64
}

// Oracle answers nearest-neighbor queries over the episode collection.
type Oracle interface {
	// Search returns up to k episodes nearest to the query text, ordered
	// by descending similarity. When project is non-empty, results are
	// restricted to that project.
	Search(ctx context.Context, query string, k int, project string) ([]Match, error)

	// Available reports whether the oracle can currently serve queries.
	Available(ctx context.Context) bool
}

// Embedder turns text into a dense vector. Computing embeddings is
// outside this module's scope; implementations are injected.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
}
