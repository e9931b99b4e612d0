package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// EntryStore is the durable backing of the vector index.
// Every write is atomic: a single Put either fully lands or not at all,
// and DeleteBatch and ReplaceAll run in one transaction.
type EntryStore interface {
	// LoadAll returns every persisted entry ordered by Seq.
	// Returns domain.ErrCorruptIndex if any row cannot be decoded.
	LoadAll(ctx context.Context) ([]*domain.IndexEntry, error)

	// Put inserts or replaces one entry by ID
	Put(ctx context.Context, entry *domain.IndexEntry) error

	// DeleteBatch removes the given entries atomically
	DeleteBatch(ctx context.Context, ids []string) error

	// ReplaceAll atomically swaps the whole entry set
	ReplaceAll(ctx context.Context, entries []*domain.IndexEntry) error

	// Meta returns the persisted index header
	// Returns domain.ErrNotFound for a store that was never initialised
	Meta(ctx context.Context) (*domain.IndexMeta, error)

	// SaveMeta persists the index header
	SaveMeta(ctx context.Context, meta *domain.IndexMeta) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error
}
