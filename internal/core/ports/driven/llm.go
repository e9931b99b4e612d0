package driven

import (
	"context"
)

// GenerateOptions tunes a single generation call
type GenerateOptions struct {
	// System is an optional system instruction
	System string
	// MaxTokens caps the response length (0 uses the provider default)
	MaxTokens int
	// Temperature controls sampling randomness
	Temperature float64
}

// LLMService generates answers from a prompt
type LLMService interface {
	// Generate returns the model's completion for prompt
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
