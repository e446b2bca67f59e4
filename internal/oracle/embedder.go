package oracle

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// defaultHashDimensions is the vector size of the hashing embedder.
const defaultHashDimensions = 256

// HashingEmbedder is a deterministic, dependency-free Embedder that
// hashes tokens into a fixed-size bag-of-words vector and L2-normalizes
// it. It captures lexical overlap only, no semantics, and exists so the
// chromem oracle can run in tests and local setups without an embedding
// model. Production deployments inject a real Embedder.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder creates a hashing embedder. dimensions <= 0 selects
// the default size.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = defaultHashDimensions
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed hashes each lowercased token into a bucket and counts
// occurrences, then normalizes the vector to unit length.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)

	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%uint32(e.dimensions)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) * inv)
		}
	}
	return vec, nil
}
