package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// writeEmbeddings answers an OpenAI embeddings request with one vector per input.
func writeEmbeddings(t *testing.T, w http.ResponseWriter, r *http.Request) {
	t.Helper()
	var req embeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Errorf("failed to decode request: %v", err)
	}
	type item struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]item, len(req.Input))
	// Reverse order: the adapter must reorder by index
	for i := range req.Input {
		j := len(req.Input) - 1 - i
		data[i] = item{Index: j, Embedding: []float32{float32(j), 0.5, 0.25}}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "model": req.Model})
}

func TestNewOpenAIEmbedding_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIEmbedding("", "text-embedding-3-small", "", 0)
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestNewOpenAIEmbedding_Defaults(t *testing.T) {
	svc, err := NewOpenAIEmbedding("sk-test", "", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Model() != "text-embedding-3-small" {
		t.Errorf("expected default model, got %s", svc.Model())
	}
	if svc.baseURL != "https://api.openai.com/v1" {
		t.Errorf("expected default base URL, got %s", svc.baseURL)
	}
	if svc.Dimensions() != 1536 {
		t.Errorf("expected 1536 dimensions, got %d", svc.Dimensions())
	}
}

func TestOpenAIEmbedding_Dimensions(t *testing.T) {
	tests := []struct {
		model    string
		override int
		want     int
	}{
		{"text-embedding-3-small", 0, 1536},
		{"text-embedding-3-large", 0, 3072},
		{"text-embedding-ada-002", 0, 1536},
		{"unknown-model", 0, 1536},
		{"text-embedding-3-large", 256, 256},
	}

	for _, tt := range tests {
		svc, err := NewOpenAIEmbedding("sk-test", tt.model, "", tt.override)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if svc.Dimensions() != tt.want {
			t.Errorf("%s/%d: expected %d dimensions, got %d", tt.model, tt.override, tt.want, svc.Dimensions())
		}
	}
}

func TestOpenAIEmbedding_Embed_EmptyInput(t *testing.T) {
	svc, _ := NewOpenAIEmbedding("sk-test", "", "", 0)
	result, err := svc.Embed(context.Background(), []string{})
	if err != nil || result != nil {
		t.Errorf("expected nil, nil for empty input, got %v, %v", result, err)
	}
}

func TestOpenAIEmbedding_Embed_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected /embeddings, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("expected Authorization header")
		}
		writeEmbeddings(t, w, r)
	}))
	defer server.Close()

	svc, err := NewOpenAIEmbedding("sk-test", "text-embedding-3-small", server.URL+"/", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.Embed(context.Background(), []string{"hello", "world", "again"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(result))
	}
	for i, v := range result {
		if v[0] != float32(i) {
			t.Errorf("embedding %d out of order: %v", i, v)
		}
	}
}

func TestOpenAIEmbedding_Embed_MissingIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,2]}]}`))
	}))
	defer server.Close()

	svc, _ := NewOpenAIEmbedding("sk-test", "", server.URL, 0)
	_, err := svc.Embed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Errorf("expected ErrEmbeddingProvider, got %v", err)
	}
}

func TestOpenAIEmbedding_Embed_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer server.Close()

	svc, _ := NewOpenAIEmbedding("sk-test", "", server.URL, 0)
	_, err := svc.Embed(context.Background(), []string{"test"})

	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Error("rate limiting must be distinct from provider failure")
	}
	if got := domain.RetryAfter(err); got != 7*time.Second {
		t.Errorf("expected 7s retry hint, got %v", got)
	}
	if !domain.IsRetryable(err) {
		t.Error("expected rate limit to be retryable")
	}
}

func TestOpenAIEmbedding_Embed_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"Invalid API key"}}`, false},
		{"server error", http.StatusInternalServerError, `{"error": "internal error"}`, true},
		{"invalid json", http.StatusOK, `invalid json`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			svc, _ := NewOpenAIEmbedding("sk-test", "", server.URL, 0)
			_, err := svc.Embed(context.Background(), []string{"test"})

			if !errors.Is(err, domain.ErrEmbeddingProvider) {
				t.Fatalf("expected ErrEmbeddingProvider, got %v", err)
			}
			var perr *domain.ProviderError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ProviderError, got %T", err)
			}
			if perr.Retryable() != tt.retryable {
				t.Errorf("retryable = %v, want %v", perr.Retryable(), tt.retryable)
			}
		})
	}
}

func TestOpenAIEmbedding_Embed_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	svc, _ := NewOpenAIEmbedding("sk-test", "", url, 0)
	_, err := svc.Embed(context.Background(), []string{"test"})
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Errorf("expected ErrEmbeddingProvider, got %v", err)
	}
	if !domain.IsRetryable(err) {
		t.Error("expected network failure to be retryable")
	}
}

func TestOpenAIEmbedding_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEmbeddings(t, w, r)
	}))
	defer server.Close()

	svc, _ := NewOpenAIEmbedding("sk-test", "", server.URL, 0)
	if err := svc.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected no error from health check, got %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"-1", 0},
		{"soon", 0},
		{now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in, now); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
