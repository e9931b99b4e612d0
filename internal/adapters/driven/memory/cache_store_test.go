package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedCache(t *testing.T, capacity int) (*CacheStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, err := NewCacheStore(capacity, WithClock(clock.Now))
	require.NoError(t, err)
	return s, clock
}

func TestCacheStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedCache(t, 10)

	_, err := s.Get(ctx, "query:a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Set(ctx, domain.NewCacheEntry("query:a", []byte("answer"), clock.Now(), time.Minute)))

	got, err := s.Get(ctx, "query:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("answer"), got.Value)
}

func TestCacheStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedCache(t, 10)

	require.NoError(t, s.Set(ctx, domain.NewCacheEntry("k", []byte("v"), clock.Now(), time.Minute)))

	clock.Advance(59 * time.Second)
	_, err := s.Get(ctx, "k")
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrNotFound, "an entry is dead once its ttl has elapsed")

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Entries)
	assert.Equal(t, int64(1), stats.Expired)
}

func TestCacheStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedCache(t, 2)

	require.NoError(t, s.Set(ctx, domain.NewCacheEntry("a", nil, clock.Now(), time.Hour)))
	require.NoError(t, s.Set(ctx, domain.NewCacheEntry("b", nil, clock.Now(), time.Hour)))

	_, err := s.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, domain.NewCacheEntry("c", nil, clock.Now(), time.Hour)))

	_, err = s.Get(ctx, "b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.Get(ctx, "a")
	assert.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Capacity)
}

func TestCacheStore_ClearByPrefix(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedCache(t, 10)

	for _, k := range []string{"query:1", "query:2", "embed:1"} {
		require.NoError(t, s.Set(ctx, domain.NewCacheEntry(k, nil, clock.Now(), time.Hour)))
	}

	n, err := s.Clear(ctx, domain.CachePrefixQuery)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Get(ctx, "embed:1")
	assert.NoError(t, err)

	n, err = s.Clear(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Evictions, "clearing is not eviction")
}

func TestCacheStore_Sweep(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedCache(t, 10)

	require.NoError(t, s.Set(ctx, domain.NewCacheEntry("short", nil, clock.Now(), time.Second)))
	require.NoError(t, s.Set(ctx, domain.NewCacheEntry("long", nil, clock.Now(), time.Hour)))

	clock.Advance(time.Minute)

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Entries)
}
