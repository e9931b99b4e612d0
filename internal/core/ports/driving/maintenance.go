package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// MaintenanceService keeps the index consistent
type MaintenanceService interface {
	// Deduplicate removes exact duplicate entries, keeping the earliest copy
	Deduplicate(ctx context.Context) (int, error)

	// Compact runs a compaction strategy
	Compact(ctx context.Context, req domain.CompactRequest) (*domain.CompactResult, error)

	// Rebuild re-chunks and re-embeds every stored document into a fresh index
	Rebuild(ctx context.Context) (*domain.RebuildResult, error)

	// Status reports index, document, cache and queue state
	Status(ctx context.Context) (*domain.MaintenanceStatus, error)

	// CacheStats returns response cache statistics
	CacheStats(ctx context.Context) (*domain.CacheStats, error)

	// ClearCache removes cached entries with the prefix ("" clears everything)
	ClearCache(ctx context.Context, prefix string) (int, error)

	// SweepCache removes expired cache entries
	SweepCache(ctx context.Context) (int, error)
}
