package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Embedding retry defaults
const (
	DefaultEmbedBatchSize   = 64
	DefaultEmbedMaxAttempts = 4
	DefaultInitialBackoff   = 500 * time.Millisecond
	DefaultMaxBackoff       = 30 * time.Second
)

// BatchEmbedderConfig holds configuration for the batch embedder.
type BatchEmbedderConfig struct {
	BatchSize      int           // Texts per provider call (default: 64)
	MaxAttempts    int           // Attempts per call including the first (default: 4)
	InitialBackoff time.Duration // default: 500ms, doubled per retry
	MaxBackoff     time.Duration // default: 30s
	RateLimit      float64       // Provider calls per second; 0 disables limiting
	Logger         *slog.Logger
}

// BatchEmbedder splits embedding work into provider-sized calls and retries
// transient failures with exponential backoff.
type BatchEmbedder struct {
	svc     driven.EmbeddingService
	cfg     BatchEmbedderConfig
	limiter *rate.Limiter
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewBatchEmbedder creates a BatchEmbedder over svc.
func NewBatchEmbedder(svc driven.EmbeddingService, cfg BatchEmbedderConfig) *BatchEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultEmbedBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultEmbedMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &BatchEmbedder{
		svc:     svc,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger.With("component", "embedder"),
		sleep:   sleepCtx,
	}
}

// EmbedBatch embeds texts and returns one result per text, in input order.
// A failed sub-batch only fails its own items.
func (b *BatchEmbedder) EmbedBatch(ctx context.Context, texts []string) []domain.EmbedResult {
	results := make([]domain.EmbedResult, len(texts))

	for start := 0; start < len(texts); start += b.cfg.BatchSize {
		end := min(start+b.cfg.BatchSize, len(texts))
		batch := texts[start:end]

		var vectors [][]float32
		err := b.withRetry(ctx, func(ctx context.Context) error {
			var err error
			vectors, err = b.svc.Embed(ctx, batch)
			if err != nil {
				return err
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbeddingProvider, len(vectors), len(batch))
			}
			return nil
		})

		for i := range batch {
			switch {
			case err != nil:
				results[start+i].Err = err
			case len(vectors[i]) == 0:
				results[start+i].Err = fmt.Errorf("%w: empty vector", domain.ErrEmbeddingProvider)
			default:
				results[start+i].Vector = vectors[i]
			}
		}
	}
	return results
}

// EmbedQuery embeds a single query with the same retry policy.
func (b *BatchEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	var vector []float32
	err := b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		vector, err = b.svc.EmbedQuery(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// Dimensions returns the provider's vector dimension.
func (b *BatchEmbedder) Dimensions() int {
	return b.svc.Dimensions()
}

// Model returns the provider's model name.
func (b *BatchEmbedder) Model() string {
	return b.svc.Model()
}

// HealthCheck checks the provider.
func (b *BatchEmbedder) HealthCheck(ctx context.Context) error {
	return b.svc.HealthCheck(ctx)
}

func (b *BatchEmbedder) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := b.cfg.InitialBackoff
	var err error

	for attempt := 1; ; attempt++ {
		if b.limiter != nil {
			if werr := b.limiter.Wait(ctx); werr != nil {
				return werr
			}
		}

		if err = op(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !domain.IsRetryable(err) || attempt >= b.cfg.MaxAttempts {
			break
		}

		wait := backoff
		if hint := domain.RetryAfter(err); hint > 0 {
			wait = hint
		}
		wait = min(wait, b.cfg.MaxBackoff)

		b.logger.Warn("embedding call failed, retrying",
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
		if serr := b.sleep(ctx, wait); serr != nil {
			return serr
		}
		backoff = min(backoff*2, b.cfg.MaxBackoff)
	}

	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrEmbeddingProvider) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrEmbeddingProvider, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
