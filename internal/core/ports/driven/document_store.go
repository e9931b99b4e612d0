package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DocumentStore persists the authoritative document set.
// The stored content is what the index is rebuilt from.
type DocumentStore interface {
	// Save creates or updates a document together with its extracted content
	Save(ctx context.Context, doc *domain.Document, content *domain.DocumentContent) error

	// UpdateStatus records the ingestion outcome of a document
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, chunkCount int) error

	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.Document, error)

	// GetByContentHash retrieves the document with the given content hash
	// Returns domain.ErrNotFound if none exists
	GetByContentHash(ctx context.Context, hash string) (*domain.Document, error)

	// GetContent retrieves the extracted content of a document
	GetContent(ctx context.Context, id string) (*domain.DocumentContent, error)

	// List retrieves documents with pagination, newest first
	List(ctx context.Context, limit, offset int) ([]*domain.Document, error)

	// ListIDs returns every document ID in ingestion order
	ListIDs(ctx context.Context) ([]string, error)

	// Delete deletes a document and its content
	Delete(ctx context.Context, id string) error

	// Count returns total document count
	Count(ctx context.Context) (int, error)

	// CountByStatus returns document counts grouped by status
	CountByStatus(ctx context.Context) (map[domain.DocumentStatus]int, error)

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error
}
