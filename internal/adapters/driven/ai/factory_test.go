package ai

import (
	"errors"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestFactory_CreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantNil  bool
		wantErr  error
	}{
		{name: "nil settings", settings: nil, wantNil: true},
		{name: "not configured", settings: &domain.EmbeddingSettings{}, wantNil: true},
		{name: "openai without key", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI}, wantNil: true},
		{name: "openai", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, APIKey: "sk-test"}},
		{name: "ollama", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "nomic-embed-text"}},
		{name: "local", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderLocal, Dimensions: 32}},
		{name: "anthropic has no embeddings", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"}, wantNil: true, wantErr: domain.ErrInvalidProvider},
		{name: "unknown", settings: &domain.EmbeddingSettings{Provider: "unknown", APIKey: "k"}, wantNil: true, wantErr: domain.ErrInvalidProvider},
		{name: "ollama unknown model", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "mystery"}, wantNil: true, wantErr: domain.ErrInvalidConfiguration},
	}

	factory := NewFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := factory.CreateEmbeddingService(tt.settings)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (svc == nil) != tt.wantNil {
				t.Errorf("service nil = %v, want %v", svc == nil, tt.wantNil)
			}
		})
	}
}

func TestFactory_CreateLLMService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.LLMSettings
		wantNil  bool
		wantErr  error
	}{
		{name: "nil settings", settings: nil, wantNil: true},
		{name: "openai", settings: &domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "sk-test"}},
		{name: "anthropic", settings: &domain.LLMSettings{Provider: domain.AIProviderAnthropic, APIKey: "sk-ant"}},
		{name: "ollama", settings: &domain.LLMSettings{Provider: domain.AIProviderOllama}},
		{name: "local", settings: &domain.LLMSettings{Provider: domain.AIProviderLocal}},
		{name: "unknown", settings: &domain.LLMSettings{Provider: "unknown", APIKey: "k"}, wantNil: true, wantErr: domain.ErrInvalidProvider},
	}

	factory := NewFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := factory.CreateLLMService(tt.settings)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (svc == nil) != tt.wantNil {
				t.Errorf("service nil = %v, want %v", svc == nil, tt.wantNil)
			}
		})
	}
}
