package domain

import "fmt"

// AIProvider identifies the AI/embedding provider
type AIProvider string

const (
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic"
	AIProviderOllama    AIProvider = "ollama"
	// AIProviderLocal runs in-process without any network calls
	AIProviderLocal AIProvider = "local"
)

// EmbeddingSettings configures the embedding service
type EmbeddingSettings struct {
	Provider   AIProvider `json:"provider" yaml:"provider" toml:"provider"`
	Model      string     `json:"model" yaml:"model" toml:"model"`
	APIKey     string     `json:"-" yaml:"api_key" toml:"api_key"` // Never serialize to JSON
	BaseURL    string     `json:"base_url,omitempty" yaml:"base_url" toml:"base_url"`
	Dimensions int        `json:"dimensions,omitempty" yaml:"dimensions" toml:"dimensions"`
}

// IsConfigured returns true if embedding settings are properly configured
func (e *EmbeddingSettings) IsConfigured() bool {
	if e.Provider == "" {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ModelID identifies provider and model together, for cache keys
func (e *EmbeddingSettings) ModelID() string {
	return ModelID(e.Provider, e.Model)
}

// LLMSettings configures the LLM service
type LLMSettings struct {
	Provider    AIProvider `json:"provider" yaml:"provider" toml:"provider"`
	Model       string     `json:"model" yaml:"model" toml:"model"`
	APIKey      string     `json:"-" yaml:"api_key" toml:"api_key"` // Never serialize to JSON
	BaseURL     string     `json:"base_url,omitempty" yaml:"base_url" toml:"base_url"`
	MaxTokens   int        `json:"max_tokens,omitempty" yaml:"max_tokens" toml:"max_tokens"`
	Temperature float64    `json:"temperature" yaml:"temperature" toml:"temperature"`
}

// IsConfigured returns true if LLM settings are properly configured
func (l *LLMSettings) IsConfigured() bool {
	if l.Provider == "" {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// ModelID identifies provider and model together, for cache keys
func (l *LLMSettings) ModelID() string {
	return ModelID(l.Provider, l.Model)
}

// RequiresAPIKey returns true if this provider requires an API key
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOllama, AIProviderLocal:
		return false // Self-hosted or in-process, no API key needed
	default:
		return true
	}
}

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderAnthropic, AIProviderOllama, AIProviderLocal:
		return true
	default:
		return false
	}
}

// SupportsEmbeddings returns true if the provider offers an embeddings API
func (p AIProvider) SupportsEmbeddings() bool {
	return p != AIProviderAnthropic
}

// Validate checks the LLM sampling parameters
func (l *LLMSettings) Validate() error {
	if l.Provider != "" && !l.Provider.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidProvider, l.Provider)
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidConfiguration)
	}
	if l.MaxTokens < 0 {
		return fmt.Errorf("%w: max tokens must not be negative", ErrInvalidConfiguration)
	}
	return nil
}

// Validate checks the embedding settings
func (e *EmbeddingSettings) Validate() error {
	if e.Provider != "" && !e.Provider.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidProvider, e.Provider)
	}
	if e.Provider != "" && !e.Provider.SupportsEmbeddings() {
		return fmt.Errorf("%w: %s has no embeddings API", ErrInvalidProvider, e.Provider)
	}
	if e.Dimensions < 0 {
		return fmt.Errorf("%w: dimensions must not be negative", ErrInvalidConfiguration)
	}
	return nil
}

// ModelID qualifies a model name with its provider, so one model name served
// by two providers stays distinct.
func ModelID(provider AIProvider, model string) string {
	if provider == "" {
		return model
	}
	return string(provider) + "/" + model
}
