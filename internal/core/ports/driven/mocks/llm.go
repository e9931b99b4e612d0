package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.LLMService = (*MockLLMService)(nil)

// MockLLMService is a mock implementation of LLMService for testing.
// By default it answers with a fixed prefix followed by the prompt length.
type MockLLMService struct {
	mu    sync.Mutex
	calls int

	// GenerateFn overrides Generate when set
	GenerateFn func(ctx context.Context, prompt string) (string, error)
	// Answer is returned when GenerateFn is nil
	Answer string
	// PingErr is returned by Ping
	PingErr error

	prompts []string
}

// NewMockLLMService creates a new MockLLMService
func NewMockLLMService() *MockLLMService {
	return &MockLLMService{Answer: "mock answer"}
}

func (m *MockLLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	fn := m.GenerateFn
	answer := m.Answer
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	return answer, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockLLMService) Close() error {
	return nil
}

// Calls returns how many Generate calls were made
func (m *MockLLMService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt returns the most recent prompt, or ""
func (m *MockLLMService) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}
