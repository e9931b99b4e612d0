package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// DefaultCacheCapacity is the entry limit when none is configured
const DefaultCacheCapacity = 10000

// Verify interface compliance
var _ driven.CacheStore = (*CacheStore)(nil)

// CacheStore implements driven.CacheStore with a bounded LRU.
// Expired entries are dropped lazily on Get and eagerly by Sweep.
type CacheStore struct {
	mu        sync.Mutex
	lru       *simplelru.LRU
	capacity  int
	now       func() time.Time
	removing  bool
	evictions int64
	expired   int64
}

// CacheOption configures a CacheStore
type CacheOption func(*CacheStore)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) CacheOption {
	return func(s *CacheStore) {
		s.now = now
	}
}

// NewCacheStore creates an LRU cache holding up to capacity entries.
func NewCacheStore(capacity int, opts ...CacheOption) (*CacheStore, error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	s := &CacheStore{
		capacity: capacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	lru, err := simplelru.NewLRU(capacity, func(key, value interface{}) {
		// Explicit removals are not capacity evictions
		if !s.removing {
			s.evictions++
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	s.lru = lru
	return s, nil
}

// Get returns a live entry.
func (s *CacheStore) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.lru.Get(key)
	if !ok {
		return nil, domain.ErrNotFound
	}
	entry := v.(*domain.CacheEntry)
	if entry.Expired(s.now()) {
		s.removeLocked(key)
		s.expired++
		return nil, domain.ErrNotFound
	}
	return copyCacheEntry(entry), nil
}

// Set stores an entry, evicting the least recently used one when full.
func (s *CacheStore) Set(ctx context.Context, entry *domain.CacheEntry) error {
	if entry == nil || entry.Key == "" {
		return fmt.Errorf("%w: cache key is required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Add(entry.Key, copyCacheEntry(entry))
	return nil
}

// Delete removes a key.
func (s *CacheStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key)
	return nil
}

// Clear removes every key with the given prefix.
func (s *CacheStore) Clear(ctx context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prefix == "" {
		n := s.lru.Len()
		s.removing = true
		s.lru.Purge()
		s.removing = false
		return n, nil
	}

	removed := 0
	for _, k := range s.lru.Keys() {
		if key := k.(string); strings.HasPrefix(key, prefix) {
			s.removeLocked(key)
			removed++
		}
	}
	return removed, nil
}

// Sweep drops expired entries.
func (s *CacheStore) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, k := range s.lru.Keys() {
		v, ok := s.lru.Peek(k)
		if !ok {
			continue
		}
		if v.(*domain.CacheEntry).Expired(now) {
			s.removeLocked(k.(string))
			removed++
		}
	}
	s.expired += int64(removed)
	return removed, nil
}

// Stats returns backend statistics. Hit and miss counts are kept by the caller.
func (s *CacheStore) Stats(ctx context.Context) (*domain.CacheStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &domain.CacheStats{
		Backend:   "memory",
		Entries:   int64(s.lru.Len()),
		Capacity:  s.capacity,
		Evictions: s.evictions,
		Expired:   s.expired,
	}, nil
}

// Ping always succeeds.
func (s *CacheStore) Ping(ctx context.Context) error {
	return nil
}

// removeLocked removes a key without counting an eviction. Caller must hold mu.
func (s *CacheStore) removeLocked(key string) {
	s.removing = true
	s.lru.Remove(key)
	s.removing = false
}

func copyCacheEntry(e *domain.CacheEntry) *domain.CacheEntry {
	c := *e
	c.Value = append([]byte(nil), e.Value...)
	return &c
}
