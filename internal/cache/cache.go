// Package cache memoises expensive computations in a CacheStore and
// coalesces concurrent misses for the same key.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Default timings
const (
	DefaultTTL            = time.Hour
	DefaultComputeTimeout = 2 * time.Minute
	DefaultWaitTimeout    = 90 * time.Second
)

// Config configures a ResponseCache.
type Config struct {
	// TTL is how long computed values stay live.
	TTL time.Duration
	// ComputeTimeout bounds the shared computation.
	ComputeTimeout time.Duration
	// WaitTimeout bounds how long a caller waits for an in-flight computation.
	WaitTimeout time.Duration
	Logger      *slog.Logger
}

// ComputeFunc produces the value for a missing key.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// ResponseCache layers single-flight computation over a CacheStore.
type ResponseCache struct {
	store  driven.CacheStore
	group  singleflight.Group
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	coalesced atomic.Int64
}

// New creates a ResponseCache over store.
func New(store driven.CacheStore, cfg Config) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = DefaultComputeTimeout
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseCache{
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "cache"),
		now:    time.Now,
	}
}

// GetOrCompute returns the cached value for key, computing it on a miss.
// Concurrent misses for the same key share one computation, which runs
// detached from the caller's cancellation and bounded by ComputeTimeout.
// The bool result reports a cache hit.
func (c *ResponseCache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) ([]byte, bool, error) {
	if value, ok := c.lookup(ctx, key); ok {
		c.hits.Add(1)
		return value, true, nil
	}
	c.misses.Add(1)

	var led atomic.Bool
	ch := c.group.DoChan(key, func() (interface{}, error) {
		led.Store(true)

		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ComputeTimeout)
		defer cancel()

		value, err := compute(computeCtx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(computeCtx, domain.NewCacheEntry(key, value, c.now(), c.cfg.TTL)); err != nil {
			c.logger.Warn("cache write failed", "key", key, "error", err)
		}
		return value, nil
	})

	timer := time.NewTimer(c.cfg.WaitTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if !led.Load() {
			c.coalesced.Add(1)
		}
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]byte), false, nil

	case <-ctx.Done():
		return nil, false, ctx.Err()

	case <-timer.C:
		// Later callers start a fresh computation instead of joining this one
		c.group.Forget(key)
		return nil, false, fmt.Errorf("%w: %s", domain.ErrCacheWaitTimeout, key)
	}
}

func (c *ResponseCache) lookup(ctx context.Context, key string) ([]byte, bool) {
	entry, err := c.store.Get(ctx, key)
	if err == nil {
		return entry.Value, true
	}
	if !errors.Is(err, domain.ErrNotFound) {
		// Cache trouble degrades to recomputation
		c.logger.Warn("cache lookup failed", "key", key, "error", err)
	}
	return nil, false
}

// Delete drops a single key.
func (c *ResponseCache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Clear removes every key with the prefix and returns how many were removed.
func (c *ResponseCache) Clear(ctx context.Context, prefix string) (int, error) {
	n, err := c.store.Clear(ctx, prefix)
	if err != nil {
		return 0, err
	}
	c.logger.Info("cache cleared", "prefix", prefix, "removed", n)
	return n, nil
}

// Sweep removes expired entries.
func (c *ResponseCache) Sweep(ctx context.Context) (int, error) {
	return c.store.Sweep(ctx)
}

// Stats merges backend statistics with this cache's hit counters.
func (c *ResponseCache) Stats(ctx context.Context) (*domain.CacheStats, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	stats.Hits = c.hits.Load()
	stats.Misses = c.misses.Load()
	stats.Coalesced = c.coalesced.Load()
	return stats, nil
}

// Ping checks the backend.
func (c *ResponseCache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}
