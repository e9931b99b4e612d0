package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CacheStore = (*CacheStore)(nil)

const scanBatch = 500

// CacheStore implements driven.CacheStore on Redis keys with native expiry.
// Entries are shared by every instance pointed at the same namespace.
type CacheStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewCacheStore creates a cache under namespace (DefaultNamespace when empty).
func NewCacheStore(client redis.UniversalClient, namespace string) *CacheStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CacheStore{
		client: client,
		prefix: namespace + "cache:",
		now:    time.Now,
	}
}

// Get returns a live entry.
func (s *CacheStore) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: cache get: %v", domain.ErrStoreUnavailable, err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Unreadable values are treated as absent and dropped
		s.client.Del(ctx, s.prefix+key)
		return nil, domain.ErrNotFound
	}
	if entry.Expired(s.now()) {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

// Set stores an entry with a TTL derived from its ExpiresAt.
func (s *CacheStore) Set(ctx context.Context, entry *domain.CacheEntry) error {
	if entry == nil || entry.Key == "" {
		return fmt.Errorf("%w: cache key is required", domain.ErrInvalidInput)
	}
	ttl := entry.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, entry.Key)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+entry.Key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: cache set: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes a key.
func (s *CacheStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: cache delete: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Clear removes every key with the given prefix using SCAN.
func (s *CacheStore) Clear(ctx context.Context, prefix string) (int, error) {
	removed := 0
	err := s.scan(ctx, s.prefix+escapeGlob(prefix)+"*", func(keys []string) error {
		n, err := s.client.Del(ctx, keys...).Result()
		removed += int(n)
		return err
	})
	if err != nil {
		return removed, fmt.Errorf("%w: cache clear: %v", domain.ErrStoreUnavailable, err)
	}
	return removed, nil
}

// Sweep is a no-op: Redis expires keys itself.
func (s *CacheStore) Sweep(ctx context.Context) (int, error) {
	return 0, nil
}

// Stats counts the keys in the namespace.
func (s *CacheStore) Stats(ctx context.Context) (*domain.CacheStats, error) {
	var entries int64
	err := s.scan(ctx, s.prefix+"*", func(keys []string) error {
		entries += int64(len(keys))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: cache stats: %v", domain.ErrStoreUnavailable, err)
	}
	return &domain.CacheStats{Backend: "redis", Entries: entries}, nil
}

// Ping checks if the Redis backend is healthy.
func (s *CacheStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *CacheStore) scan(ctx context.Context, match string, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
