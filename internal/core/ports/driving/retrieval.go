package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// RetrievalService returns ranked passages for a query
type RetrievalService interface {
	// Retrieve returns up to TopK chunks, best first. An empty result is valid.
	Retrieve(ctx context.Context, req domain.RetrieveRequest) ([]*domain.RetrievedChunk, error)
}

// QueryService answers questions from retrieved passages
type QueryService interface {
	// Ask retrieves passages and generates an answer, served from the cache when possible.
	Ask(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error)
}
