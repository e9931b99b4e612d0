package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure AnthropicLLM implements LLMService
var _ driven.LLMService = (*AnthropicLLM)(nil)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 1024
)

// AnthropicLLM implements LLMService using the Messages API
type AnthropicLLM struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewAnthropicLLM creates an Anthropic messages service
func NewAnthropicLLM(apiKey, model, baseURL string) (*AnthropicLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: Anthropic API key is required", domain.ErrInvalidConfiguration)
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &AnthropicLLM{
		apiKey:  apiKey,
		model:   model,
		baseURL: trimSlash(baseURL),
		client:  &http.Client{Timeout: 2 * defaultTimeout},
	}, nil
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Generate returns the model's completion for prompt
func (l *AnthropicLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	var resp anthropicResponse
	err := doJSON(ctx, l.client, apiCall{
		provider: domain.AIProviderAnthropic,
		kind:     domain.ErrLLMProvider,
		url:      l.baseURL + "/v1/messages",
		headers: map[string]string{
			"x-api-key":         l.apiKey,
			"anthropic-version": anthropicVersion,
		},
		body: anthropicRequest{
			Model:       l.model,
			System:      opts.System,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			MaxTokens:   maxTokens,
			Temperature: opts.Temperature,
		},
	}, &resp)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &domain.ProviderError{Provider: domain.AIProviderAnthropic, Message: "no text content returned", Err: domain.ErrLLMProvider}
	}
	return sb.String(), nil
}

// Model returns the model name being used
func (l *AnthropicLLM) Model() string {
	return l.model
}

// Ping verifies the service is reachable with a one-token completion
func (l *AnthropicLLM) Ping(ctx context.Context) error {
	_, err := l.Generate(ctx, "ping", driven.GenerateOptions{MaxTokens: 1})
	return err
}

// Close releases idle connections
func (l *AnthropicLLM) Close() error {
	l.client.CloseIdleConnections()
	return nil
}
