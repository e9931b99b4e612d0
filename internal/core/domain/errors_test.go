package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrAlreadyExists", ErrAlreadyExists, "already exists"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrInvalidConfiguration", ErrInvalidConfiguration, "invalid configuration"},
		{"ErrEmbeddingProvider", ErrEmbeddingProvider, "embedding provider error"},
		{"ErrRateLimited", ErrRateLimited, "rate limited"},
		{"ErrStoreUnavailable", ErrStoreUnavailable, "store unavailable"},
		{"ErrDimensionMismatch", ErrDimensionMismatch, "dimension mismatch"},
		{"ErrCorruptIndex", ErrCorruptIndex, "corrupt index"},
		{"ErrDocumentTooLarge", ErrDocumentTooLarge, "document too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrAlreadyExists,
		ErrInvalidInput,
		ErrInvalidConfiguration,
		ErrInvalidProvider,
		ErrServiceUnavailable,
		ErrEmbeddingProvider,
		ErrRateLimited,
		ErrLLMProvider,
		ErrStoreUnavailable,
		ErrDimensionMismatch,
		ErrCorruptIndex,
		ErrIndexRebuilding,
		ErrDocumentTooLarge,
		ErrUnsupportedFormat,
		ErrCacheWaitTimeout,
		ErrLockNotAcquired,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestProviderError(t *testing.T) {
	err := &ProviderError{
		Provider:   AIProviderOpenAI,
		StatusCode: 429,
		RetryAfter: 2 * time.Second,
		Message:    "slow down",
		Err:        ErrRateLimited,
	}

	if !errors.Is(err, ErrRateLimited) {
		t.Error("provider error should unwrap to ErrRateLimited")
	}
	if !err.Retryable() {
		t.Error("429 should be retryable")
	}
	if RetryAfter(fmt.Errorf("embed: %w", err)) != 2*time.Second {
		t.Error("RetryAfter should see through wrapping")
	}

	badRequest := &ProviderError{Provider: AIProviderOpenAI, StatusCode: 400, Err: ErrEmbeddingProvider}
	if badRequest.Retryable() {
		t.Error("400 should not be retryable")
	}
	if IsRetryable(badRequest) {
		t.Error("IsRetryable should honour ProviderError.Retryable")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrRateLimited, true},
		{fmt.Errorf("put: %w", ErrStoreUnavailable), true},
		{ErrEmbeddingProvider, true},
		{ErrCorruptIndex, false},
		{ErrDocumentTooLarge, false},
		{ErrInvalidConfiguration, false},
		{ErrLockNotAcquired, true},
		{ErrCacheWaitTimeout, true},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRequiresRebuild(t *testing.T) {
	if !RequiresRebuild(fmt.Errorf("load: %w", ErrCorruptIndex)) {
		t.Error("corrupt index should require rebuild")
	}
	if !RequiresRebuild(ErrDimensionMismatch) {
		t.Error("dimension mismatch should require rebuild")
	}
	if RequiresRebuild(ErrStoreUnavailable) {
		t.Error("store unavailable should not require rebuild")
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("x: %w", ErrRateLimited), "rate_limited"},
		{&ProviderError{Err: ErrEmbeddingProvider}, "embedding_provider"},
		{ErrDocumentTooLarge, "document_too_large"},
		{errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
