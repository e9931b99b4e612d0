package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestCacheStore_SetGet(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()
	s := NewCacheStore(client, "")

	_, err := s.Get(ctx, "answer:1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	entry := domain.NewCacheEntry("answer:1", []byte(`{"answer":"42"}`), time.Now(), time.Minute)
	require.NoError(t, s.Set(ctx, entry))

	got, err := s.Get(ctx, "answer:1")
	require.NoError(t, err)
	assert.Equal(t, entry.Value, got.Value)

	require.NoError(t, s.Delete(ctx, "answer:1"))
	_, err = s.Get(ctx, "answer:1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCacheStore_NativeExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	s := NewCacheStore(client, "")

	require.NoError(t, s.Set(ctx, domain.NewCacheEntry("k", []byte("v"), time.Now(), 10*time.Second)))
	assert.True(t, mr.Exists(DefaultNamespace+"cache:k"))
	assert.Greater(t, mr.TTL(DefaultNamespace+"cache:k"), time.Duration(0))

	mr.FastForward(11 * time.Second)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCacheStore_SetExpiredEntryIsDropped(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()
	s := NewCacheStore(client, "")

	past := time.Now().Add(-time.Hour)
	require.NoError(t, s.Set(ctx, domain.NewCacheEntry("stale", []byte("v"), past, time.Minute)))

	_, err := s.Get(ctx, "stale")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCacheStore_ClearByPrefix(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()
	s := NewCacheStore(client, "")
	other := NewCacheStore(client, "other:")

	now := time.Now()
	for _, k := range []string{"embed:a", "embed:b", "answer:a"} {
		require.NoError(t, s.Set(ctx, domain.NewCacheEntry(k, []byte("v"), now, time.Minute)))
	}
	require.NoError(t, other.Set(ctx, domain.NewCacheEntry("embed:a", []byte("v"), now, time.Minute)))

	n, err := s.Clear(ctx, "embed:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "redis", stats.Backend)
	assert.Equal(t, int64(1), stats.Entries)

	n, err = s.Clear(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = other.Get(ctx, "embed:a")
	assert.NoError(t, err, "other namespaces are untouched")
}

func TestCacheStore_InvalidKey(t *testing.T) {
	client, _ := setupTestRedis(t)
	err := NewCacheStore(client, "").Set(context.Background(), &domain.CacheEntry{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
