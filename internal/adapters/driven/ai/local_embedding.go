package ai

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure LocalEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*LocalEmbedding)(nil)

// DefaultLocalDimensions is the vector size of LocalEmbedding when unset
const DefaultLocalDimensions = 256

// LocalEmbedding is an in-process feature-hashing embedder.
// Each token and adjacent token pair is hashed into a signed bucket and the
// vector is L2-normalised, so texts sharing words score higher under cosine.
// It needs no network and is deterministic, which makes it the offline default.
type LocalEmbedding struct {
	dimensions int
}

// NewLocalEmbedding creates a local embedder producing vectors of the given size
func NewLocalEmbedding(dimensions int) *LocalEmbedding {
	if dimensions <= 0 {
		dimensions = DefaultLocalDimensions
	}
	return &LocalEmbedding{dimensions: dimensions}
}

// Embed generates embeddings for multiple texts
func (e *LocalEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

// EmbedQuery generates an embedding for a search query
func (e *LocalEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(query), nil
}

func (e *LocalEmbedding) vector(text string) []float32 {
	v := make([]float32, e.dimensions)
	tokens := domain.Tokenize(text)
	for i, tok := range tokens {
		e.add(v, tok, 1)
		if i > 0 {
			e.add(v, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		// Empty text still needs a valid, non-zero vector
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (e *LocalEmbedding) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	v[idx] += weight
}

// Dimensions returns the embedding dimension size
func (e *LocalEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *LocalEmbedding) Model() string {
	return "feature-hash"
}

// HealthCheck always succeeds
func (e *LocalEmbedding) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (e *LocalEmbedding) Close() error {
	return nil
}
