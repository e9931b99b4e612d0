package ai

import (
	"context"
	"net/http"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure OllamaLLM implements LLMService
var _ driven.LLMService = (*OllamaLLM)(nil)

// OllamaLLM implements LLMService against a local Ollama server
type OllamaLLM struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaLLM creates an Ollama generation service
func NewOllamaLLM(baseURL, model string) (*OllamaLLM, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaLLM{
		baseURL: trimSlash(baseURL),
		model:   model,
		client:  &http.Client{Timeout: 5 * defaultTimeout},
	}, nil
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// Generate returns the model's completion for prompt
func (l *OllamaLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	options := map[string]any{"temperature": opts.Temperature}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}

	var resp ollamaGenerateResponse
	err := doJSON(ctx, l.client, apiCall{
		provider: domain.AIProviderOllama,
		kind:     domain.ErrLLMProvider,
		url:      l.baseURL + "/api/generate",
		body: ollamaGenerateRequest{
			Model:   l.model,
			Prompt:  prompt,
			System:  opts.System,
			Stream:  false,
			Options: options,
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Model returns the model name being used
func (l *OllamaLLM) Model() string {
	return l.model
}

// Ping verifies the server is reachable
func (l *OllamaLLM) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return &domain.ProviderError{Provider: domain.AIProviderOllama, Message: err.Error(), Err: domain.ErrServiceUnavailable}
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &domain.ProviderError{Provider: domain.AIProviderOllama, StatusCode: resp.StatusCode, Message: "ping failed", Err: domain.ErrServiceUnavailable}
	}
	return nil
}

// Close releases idle connections
func (l *OllamaLLM) Close() error {
	l.client.CloseIdleConnections()
	return nil
}
