package driven

import (
	"context"
)

// EmbeddingService turns text into vectors for the index.
// Every vector it returns has exactly Dimensions() components; a model or
// dimension change invalidates the stored index until it is rebuilt.
type EmbeddingService interface {
	// Embed returns one vector per text, in input order.
	// Transient provider failures wrap domain.ErrEmbeddingProvider or
	// domain.ErrRateLimited so callers can retry them.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a retrieval query. Providers with asymmetric
	// models may encode queries differently from passages.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	Dimensions() int

	// Model identifies the model; it is recorded in the index metadata.
	Model() string

	HealthCheck(ctx context.Context) error
	Close() error
}
