package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func newTestCache(t *testing.T, cfg Config) (*ResponseCache, *memory.CacheStore) {
	t.Helper()
	store, err := memory.NewCacheStore(100)
	require.NoError(t, err)
	return New(store, cfg), store
}

func TestGetOrCompute_HitAndMiss(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, Config{})

	var calls atomic.Int32
	compute := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("answer"), nil
	}

	v, hit, err := c.GetOrCompute(ctx, "query:a", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "answer", string(v))

	v, hit, err = c.GetOrCompute(ctx, "query:a", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "answer", string(v))
	assert.Equal(t, int32(1), calls.Load())

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Entries)
}

func TestGetOrCompute_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, Config{})
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute(ctx, "k", func(ctx context.Context) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	v, hit, err := c.GetOrCompute(ctx, "k", func(ctx context.Context) ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "ok", string(v))
}

func TestGetOrCompute_ExpiredEntryIsRecomputed(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, Config{TTL: time.Millisecond})

	_, _, err := c.GetOrCompute(ctx, "k", func(ctx context.Context) ([]byte, error) { return []byte("v1"), nil })
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	v, hit, err := c.GetOrCompute(ctx, "k", func(ctx context.Context) ([]byte, error) { return []byte("v2"), nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "v2", string(v))
}

func TestGetOrCompute_CoalescesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, Config{})

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	compute := func(ctx context.Context) ([]byte, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return []byte("shared"), nil
	}

	var wg sync.WaitGroup
	results := make([]string, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.GetOrCompute(ctx, "query:same", compute)
			assert.NoError(t, err)
			results[i] = string(v)
		}(i)
		if i == 0 {
			<-started
		}
	}

	// Both callers have missed before the computation finishes
	require.Eventually(t, func() bool { return c.misses.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"shared", "shared"}, results)
	assert.Equal(t, int64(1), c.coalesced.Load())
}

func TestGetOrCompute_WaitTimeout(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, Config{WaitTimeout: 20 * time.Millisecond})

	release := make(chan struct{})
	defer close(release)

	_, _, err := c.GetOrCompute(ctx, "slow", func(ctx context.Context) ([]byte, error) {
		<-release
		return []byte("late"), nil
	})
	assert.ErrorIs(t, err, domain.ErrCacheWaitTimeout)

	// The stalled flight was forgotten, so a new caller computes afresh
	v, _, err := c.GetOrCompute(ctx, "slow", func(ctx context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(v))
}

func TestGetOrCompute_ComputationOutlivesCaller(t *testing.T) {
	c, store := newTestCache(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	var computeErr atomic.Value
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()

	_, _, err := c.GetOrCompute(ctx, "k", func(cctx context.Context) ([]byte, error) {
		<-release
		if cctx.Err() != nil {
			computeErr.Store(cctx.Err())
		}
		return []byte("done"), nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	require.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), "k")
		return err == nil
	}, time.Second, 5*time.Millisecond)
	assert.Nil(t, computeErr.Load(), "shared computation must not see the caller's cancellation")
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, Config{})

	for _, k := range []string{"query:a", "query:b", "embed:x"} {
		_, _, err := c.GetOrCompute(ctx, k, func(ctx context.Context) ([]byte, error) { return []byte(k), nil })
		require.NoError(t, err)
	}

	n, err := c.Clear(ctx, domain.CachePrefixQuery)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, hit, err := c.GetOrCompute(ctx, "embed:x", func(ctx context.Context) ([]byte, error) { return nil, nil })
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestNew_Defaults(t *testing.T) {
	c, _ := newTestCache(t, Config{})

	assert.Equal(t, DefaultTTL, c.cfg.TTL)
	assert.Equal(t, DefaultComputeTimeout, c.cfg.ComputeTimeout)
	assert.Equal(t, DefaultWaitTimeout, c.cfg.WaitTimeout)

	c, _ = newTestCache(t, Config{WaitTimeout: time.Second})
	assert.Equal(t, time.Second, c.cfg.WaitTimeout)
}
