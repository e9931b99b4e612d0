package ai

import (
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Factory implements AIServiceFactory
var _ driven.AIServiceFactory = (*Factory)(nil)

// Factory creates AI services based on configuration
type Factory struct{}

// NewFactory creates a new AI service factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateEmbeddingService creates an embedding service from settings
func (f *Factory) CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return embedding(NewOpenAIEmbedding(settings.APIKey, settings.Model, settings.BaseURL, settings.Dimensions))
	case domain.AIProviderOllama:
		return embedding(NewOllamaEmbedding(settings.BaseURL, settings.Model, settings.Dimensions))
	case domain.AIProviderLocal:
		return NewLocalEmbedding(settings.Dimensions), nil
	case domain.AIProviderAnthropic:
		return nil, fmt.Errorf("%w: %s has no embeddings API", domain.ErrInvalidProvider, settings.Provider)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}

// CreateLLMService creates an LLM service from settings
func (f *Factory) CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return llm(NewOpenAILLM(settings.APIKey, settings.Model, settings.BaseURL))
	case domain.AIProviderAnthropic:
		return llm(NewAnthropicLLM(settings.APIKey, settings.Model, settings.BaseURL))
	case domain.AIProviderOllama:
		return llm(NewOllamaLLM(settings.BaseURL, settings.Model))
	case domain.AIProviderLocal:
		return NewLocalLLM(), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}

// embedding and llm keep a failed constructor from yielding a non-nil interface
// holding a nil pointer.
func embedding[T driven.EmbeddingService](svc T, err error) (driven.EmbeddingService, error) {
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func llm[T driven.LLMService](svc T, err error) (driven.LLMService, error) {
	if err != nil {
		return nil, err
	}
	return svc, nil
}
