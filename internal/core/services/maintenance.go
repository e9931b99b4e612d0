package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/cache"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/index"
)

// Ensure MaintenanceService implements driving.MaintenanceService
var _ driving.MaintenanceService = (*MaintenanceService)(nil)

// DefaultKeepRecentDays is the age_based window when a request sets none
const DefaultKeepRecentDays = 30

// MaintenanceConfig holds configuration for the maintenance service.
type MaintenanceConfig struct {
	KeepRecentDays int // default: 30
	Logger         *slog.Logger
}

// MaintenanceService runs deduplication, compaction and rebuilds, and reports status.
type MaintenanceService struct {
	docs     driven.DocumentStore
	pipeline driven.PostProcessorPipeline
	embedder *BatchEmbedder
	index    *index.Store
	answers  *cache.ResponseCache // Optional
	queue    driven.TaskQueue     // Optional
	cfg      MaintenanceConfig
	logger   *slog.Logger
}

// NewMaintenanceService creates a MaintenanceService.
func NewMaintenanceService(
	docs driven.DocumentStore,
	pipeline driven.PostProcessorPipeline,
	embedder *BatchEmbedder,
	idx *index.Store,
	answers *cache.ResponseCache,
	queue driven.TaskQueue,
	cfg MaintenanceConfig,
) *MaintenanceService {
	if cfg.KeepRecentDays <= 0 {
		cfg.KeepRecentDays = DefaultKeepRecentDays
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceService{
		docs:     docs,
		pipeline: pipeline,
		embedder: embedder,
		index:    idx,
		answers:  answers,
		queue:    queue,
		cfg:      cfg,
		logger:   logger.With("component", "maintenance"),
	}
}

// Deduplicate removes exact duplicate entries.
func (m *MaintenanceService) Deduplicate(ctx context.Context) (int, error) {
	removed, err := m.index.DeduplicateExact(ctx)
	if removed > 0 {
		m.invalidate(ctx)
	}
	return removed, err
}

// Compact runs the requested strategy. A dry run only lists candidates.
func (m *MaintenanceService) Compact(ctx context.Context, req domain.CompactRequest) (*domain.CompactResult, error) {
	if req.Strategy == "" {
		req.Strategy = domain.CompactDeduplicateExact
	}
	if !req.Strategy.IsValid() {
		return nil, fmt.Errorf("%w: unknown compaction strategy %q", domain.ErrInvalidInput, req.Strategy)
	}
	if req.KeepRecentDays < 0 {
		return nil, fmt.Errorf("%w: keep_recent_days must not be negative", domain.ErrInvalidInput)
	}

	result := &domain.CompactResult{Strategy: req.Strategy, DryRun: req.DryRun}

	switch req.Strategy {
	case domain.CompactDeduplicateExact:
		if req.DryRun {
			if err := m.ready(); err != nil {
				return nil, err
			}
			result.Candidates = m.index.DuplicateCandidates()
			break
		}
		removed, err := m.Deduplicate(ctx)
		if err != nil {
			return nil, err
		}
		result.Removed = removed

	case domain.CompactAgeBased:
		days := req.KeepRecentDays
		if days == 0 {
			days = m.cfg.KeepRecentDays
		}
		ids, err := m.index.Prune(ctx, domain.PruneOptions{
			OlderThan: time.Now().AddDate(0, 0, -days),
			DryRun:    req.DryRun,
		})
		if err != nil {
			return nil, err
		}
		if req.DryRun {
			result.Candidates = ids
		} else {
			result.Removed = len(ids)
			if len(ids) > 0 {
				m.invalidate(ctx)
			}
		}
	}

	result.Remaining = m.index.Stats().Entries
	m.logger.Info("compacted index",
		"strategy", result.Strategy,
		"dry_run", result.DryRun,
		"removed", result.Removed,
		"candidates", len(result.Candidates),
		"remaining", result.Remaining,
	)
	return result, nil
}

func (m *MaintenanceService) ready() error {
	switch m.index.State() {
	case domain.IndexStateRebuilding:
		return domain.ErrIndexRebuilding
	case domain.IndexStateCorrupt:
		return fmt.Errorf("%w: rebuild required", domain.ErrCorruptIndex)
	case domain.IndexStateMismatched:
		return fmt.Errorf("%w: rebuild required", domain.ErrDimensionMismatch)
	}
	return nil
}

// Rebuild re-chunks and re-embeds every stored document and swaps the result in.
// Documents that cannot be re-embedded are left out and marked failed; if no
// document can be re-embedded the rebuild is aborted and the old index kept.
func (m *MaintenanceService) Rebuild(ctx context.Context) (*domain.RebuildResult, error) {
	start := time.Now()
	dimension := m.embedder.Dimensions()
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: embedder reports no dimension", domain.ErrInvalidConfiguration)
	}

	ids, err := m.docs.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		status domain.DocumentStatus
		chunks int
	}
	outcomes := make(map[string]outcome, len(ids))
	result := &domain.RebuildResult{Documents: len(ids), Dimension: dimension}

	produce := func(ctx context.Context, emit func([]*domain.IndexEntry) error) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}

			entries, failed, err := m.reembed(ctx, id)
			if errors.Is(err, domain.ErrNotFound) {
				// Deleted while the rebuild ran
				continue
			}
			if err != nil {
				return err
			}

			switch {
			case failed == 0:
				outcomes[id] = outcome{domain.DocumentStatusIndexed, len(entries)}
			case len(entries) > 0:
				outcomes[id] = outcome{domain.DocumentStatusPartial, len(entries)}
			default:
				outcomes[id] = outcome{domain.DocumentStatusFailed, 0}
				result.Failed++
				continue
			}
			if err := emit(entries); err != nil {
				return err
			}
		}
		if result.Failed > 0 && result.Failed == len(outcomes) {
			return fmt.Errorf("%w: no document could be re-embedded", domain.ErrEmbeddingProvider)
		}
		return nil
	}

	n, err := m.index.Rebuild(ctx, dimension, produce)
	if err != nil {
		return nil, err
	}
	result.Entries = n

	for id, o := range outcomes {
		if err := m.docs.UpdateStatus(ctx, id, o.status, len(m.index.DocumentEntries(id))); err != nil && !errors.Is(err, domain.ErrNotFound) {
			m.logger.Warn("failed to record document status after rebuild", "document_id", id, "error", err)
		}
	}
	m.invalidate(ctx)

	result.Duration = time.Since(start)
	m.logger.Info("rebuild complete",
		"documents", result.Documents,
		"entries", result.Entries,
		"failed", result.Failed,
		"duration", result.Duration,
	)
	return result, nil
}

// reembed chunks and embeds one stored document. It returns the embedded
// entries and how many chunks failed.
func (m *MaintenanceService) reembed(ctx context.Context, id string) ([]*domain.IndexEntry, int, error) {
	doc, err := m.docs.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	content, err := m.docs.GetContent(ctx, id)
	if err != nil {
		return nil, 0, err
	}

	chunks := m.pipeline.Process(&domain.ExtractedText{Text: content.Body, Title: doc.Title, Structured: content.Structured})
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	results := m.embedder.EmbedBatch(ctx, texts)
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	entries := make([]*domain.IndexEntry, 0, len(chunks))
	failed := 0
	for i, c := range chunks {
		if results[i].Err != nil {
			m.logger.Warn("chunk could not be re-embedded", "document_id", id, "position", c.Position, "error", results[i].Err)
			failed++
			continue
		}
		entries = append(entries, &domain.IndexEntry{
			ID:          domain.ChunkID(id, c.Position),
			DocumentID:  id,
			Position:    c.Position,
			Content:     c.Content,
			ContentHash: domain.ContentHash(c.Content),
			Vector:      results[i].Vector,
			Metadata:    entryMetadata(doc),
			CreatedAt:   doc.CreatedAt,
		})
	}
	return entries, failed, nil
}

// Status reports index, document, cache and queue state.
func (m *MaintenanceService) Status(ctx context.Context) (*domain.MaintenanceStatus, error) {
	status := &domain.MaintenanceStatus{Index: m.index.Stats()}

	var err error
	if status.Documents, err = m.docs.Count(ctx); err != nil {
		return nil, err
	}
	if status.ByStatus, err = m.docs.CountByStatus(ctx); err != nil {
		return nil, err
	}

	if m.answers != nil {
		if status.Cache, err = m.answers.Stats(ctx); err != nil {
			m.logger.Warn("cache stats unavailable", "error", err)
		}
	}
	if m.queue != nil {
		if status.Queue, err = m.queue.Stats(ctx); err != nil {
			m.logger.Warn("queue stats unavailable", "error", err)
		}
	}
	return status, nil
}

// CacheStats returns response cache statistics.
func (m *MaintenanceService) CacheStats(ctx context.Context) (*domain.CacheStats, error) {
	if m.answers == nil {
		return nil, errCacheDisabled
	}
	return m.answers.Stats(ctx)
}

// ClearCache removes cached entries with the prefix.
func (m *MaintenanceService) ClearCache(ctx context.Context, prefix string) (int, error) {
	if m.answers == nil {
		return 0, errCacheDisabled
	}
	switch prefix {
	case "", domain.CachePrefixQuery, domain.CachePrefixEmbed:
	default:
		return 0, fmt.Errorf("%w: prefix must be %q, %q or empty", domain.ErrInvalidInput, domain.CachePrefixQuery, domain.CachePrefixEmbed)
	}
	return m.answers.Clear(ctx, prefix)
}

// SweepCache removes expired cache entries.
func (m *MaintenanceService) SweepCache(ctx context.Context) (int, error) {
	if m.answers == nil {
		return 0, errCacheDisabled
	}
	n, err := m.answers.Sweep(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("swept expired cache entries", "removed", n)
	}
	return n, nil
}

var errCacheDisabled = fmt.Errorf("%w: cache is disabled", domain.ErrServiceUnavailable)

func (m *MaintenanceService) invalidate(ctx context.Context) {
	if m.answers == nil {
		return
	}
	if _, err := m.answers.Clear(context.WithoutCancel(ctx), domain.CachePrefixQuery); err != nil {
		m.logger.Warn("failed to invalidate query cache", "error", err)
	}
}
