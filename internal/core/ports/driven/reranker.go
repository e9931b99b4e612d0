package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Reranker scores candidates with a secondary relevance signal.
// It returns one score per candidate in the same order; it never reorders,
// adds or drops candidates itself.
type Reranker interface {
	Score(ctx context.Context, query string, candidates []*domain.RetrievedChunk) ([]float64, error)

	// Name identifies the strategy in logs and stats
	Name() string
}
