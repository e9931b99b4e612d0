package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// CacheStore holds expiring key/value entries
type CacheStore interface {
	// Get returns a live entry.
	// Returns domain.ErrNotFound if the key is absent or expired.
	Get(ctx context.Context, key string) (*domain.CacheEntry, error)

	// Set stores an entry until its ExpiresAt
	Set(ctx context.Context, entry *domain.CacheEntry) error

	// Delete removes a key
	Delete(ctx context.Context, key string) error

	// Clear removes every key with the given prefix ("" clears everything)
	// and returns how many were removed
	Clear(ctx context.Context, prefix string) (int, error)

	// Sweep removes expired entries and returns how many were removed.
	// Backends with native expiry may return 0.
	Sweep(ctx context.Context) (int, error)

	// Stats returns backend-level statistics
	Stats(ctx context.Context) (*domain.CacheStats, error)

	// Ping checks if the backend is reachable
	Ping(ctx context.Context) error
}
