package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EmbeddingService = (*CachedEmbedding)(nil)

// DefaultEmbeddingCacheTTL is how long cached vectors live when none is configured
const DefaultEmbeddingCacheTTL = 24 * time.Hour

// CachedEmbedding memoises vectors of any EmbeddingService in a CacheStore.
// Keys are embed:<model>:<sha256(text)>.
type CachedEmbedding struct {
	next   driven.EmbeddingService
	store  driven.CacheStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedEmbedding decorates next with a vector cache.
func NewCachedEmbedding(next driven.EmbeddingService, store driven.CacheStore, ttl time.Duration, logger *slog.Logger) *CachedEmbedding {
	if ttl <= 0 {
		ttl = DefaultEmbeddingCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedding{next: next, store: store, ttl: ttl, logger: logger}
}

// Embed returns cached vectors and embeds only the misses.
func (c *CachedEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if v, ok := c.lookup(ctx, text); ok {
			out[i] = v
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, v := range vectors {
		if j >= len(missingIdx) {
			break
		}
		out[missingIdx[j]] = v
		c.remember(ctx, missing[j], v)
	}
	return out, nil
}

// EmbedQuery returns a cached vector or embeds the query.
func (c *CachedEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if v, ok := c.lookup(ctx, query); ok {
		return v, nil
	}
	v, err := c.next.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	c.remember(ctx, query, v)
	return v, nil
}

func (c *CachedEmbedding) Dimensions() int                       { return c.next.Dimensions() }
func (c *CachedEmbedding) Model() string                         { return c.next.Model() }
func (c *CachedEmbedding) HealthCheck(ctx context.Context) error { return c.next.HealthCheck(ctx) }
func (c *CachedEmbedding) Close() error                          { return c.next.Close() }

func (c *CachedEmbedding) key(text string) string {
	return domain.CachePrefixEmbed + c.next.Model() + ":" + domain.ContentHash(text)
}

func (c *CachedEmbedding) lookup(ctx context.Context, text string) ([]float32, bool) {
	entry, err := c.store.Get(ctx, c.key(text))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("embedding cache lookup failed", "error", err)
		}
		return nil, false
	}
	v, err := domain.DecodeVector(entry.Value)
	if err != nil || len(v) != c.next.Dimensions() {
		return nil, false
	}
	return v, true
}

func (c *CachedEmbedding) remember(ctx context.Context, text string, v []float32) {
	if len(v) == 0 {
		return
	}
	entry := domain.NewCacheEntry(c.key(text), domain.EncodeVector(v), time.Now(), c.ttl)
	if err := c.store.Set(ctx, entry); err != nil {
		c.logger.Warn("embedding cache write failed", "error", err)
	}
}
