package driven

import (
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// AIServiceFactory resolves provider settings into services once, at startup.
type AIServiceFactory interface {
	// CreateEmbeddingService returns nil, nil when no embedding provider is configured.
	CreateEmbeddingService(settings *domain.EmbeddingSettings) (EmbeddingService, error)

	// CreateLLMService returns nil, nil when no LLM provider is configured;
	// answers are then built extractively.
	CreateLLMService(settings *domain.LLMSettings) (LLMService, error)
}
