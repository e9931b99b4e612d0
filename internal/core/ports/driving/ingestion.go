package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// IngestionService adds documents to the index and manages them
type IngestionService interface {
	// Ingest extracts, chunks, embeds and indexes a document.
	// Partial failures are reported in the IngestionReport, not returned.
	Ingest(ctx context.Context, input *domain.DocumentInput) (*domain.IngestionReport, error)

	// IngestSource reads a local path or URL and ingests it.
	// An empty format is guessed from the path.
	IngestSource(ctx context.Context, source string, format domain.Format, metadata map[string]string) (*domain.IngestionReport, error)

	// IngestAsync enqueues an ingest_document task for a path or URL.
	IngestAsync(ctx context.Context, source string, format domain.Format) (*domain.Task, error)

	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.Document, error)

	// List retrieves documents newest first
	List(ctx context.Context, limit, offset int) ([]*domain.Document, error)

	// Chunks returns a document's indexed entries in position order
	Chunks(ctx context.Context, id string) ([]*domain.IndexEntry, error)

	// Delete removes a document and its entries
	Delete(ctx context.Context, id string) error
}
