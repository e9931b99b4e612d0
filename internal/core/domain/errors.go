package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfiguration indicates bad chunking, embedding or store parameters.
	// Fatal: the caller must fix the configuration before retrying.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates the AI service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrEmbeddingProvider indicates the embedding provider failed after retries
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrRateLimited indicates the upstream provider throttled the request
	ErrRateLimited = errors.New("rate limited")

	// ErrLLMProvider indicates the LLM provider failed to generate an answer
	ErrLLMProvider = errors.New("llm provider error")

	// ErrStoreUnavailable indicates the underlying persistence is unreachable (retryable)
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrDimensionMismatch indicates an embedding dimension that differs from the index.
	// Requires an explicit rebuild.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrCorruptIndex indicates the persisted index cannot be read. Requires a rebuild.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrIndexRebuilding indicates the index is being rebuilt and refuses queries
	ErrIndexRebuilding = errors.New("index rebuilding")

	// ErrDocumentTooLarge indicates a document above the configured size limit
	ErrDocumentTooLarge = errors.New("document too large")

	// ErrUnsupportedFormat indicates no extractor can handle the declared format
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrCacheWaitTimeout indicates a caller gave up waiting on an in-flight computation
	ErrCacheWaitTimeout = errors.New("timed out waiting for in-flight computation")

	// ErrLockNotAcquired indicates the index writer lock is held elsewhere
	ErrLockNotAcquired = errors.New("lock not acquired")
)

// ProviderError describes a failed call to an external AI provider.
// It unwraps to ErrRateLimited, ErrEmbeddingProvider or ErrLLMProvider.
type ProviderError struct {
	Provider   AIProvider
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%v: %s returned %d: %s", e.Err, e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%v: %s: %s", e.Err, e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient.
// Network errors (no status), throttling and server errors are retryable.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable()
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrEmbeddingProvider) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrLockNotAcquired) ||
		errors.Is(err, ErrCacheWaitTimeout)
}

// RequiresRebuild reports whether err can only be resolved by rebuilding the index.
func RequiresRebuild(err error) bool {
	return errors.Is(err, ErrCorruptIndex) || errors.Is(err, ErrDimensionMismatch)
}

// RetryAfter returns the provider's backoff hint, or zero.
func RetryAfter(err error) time.Duration {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.RetryAfter
	}
	return 0
}

// ErrorKind returns a short stable name for the error's category.
// Used in ingestion reports and API error bodies.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrEmbeddingProvider):
		return "embedding_provider"
	case errors.Is(err, ErrLLMProvider):
		return "llm_provider"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, ErrCorruptIndex):
		return "corrupt_index"
	case errors.Is(err, ErrIndexRebuilding):
		return "index_rebuilding"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrDocumentTooLarge):
		return "document_too_large"
	case errors.Is(err, ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCacheWaitTimeout):
		return "cache_wait_timeout"
	case errors.Is(err, ErrLockNotAcquired):
		return "lock_not_acquired"
	default:
		return "internal"
	}
}
