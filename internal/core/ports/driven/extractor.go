package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Extractor turns a raw payload of one format into normalised text.
type Extractor interface {
	// Extract returns the document text.
	// Returns domain.ErrUnsupportedFormat if the payload cannot be handled.
	Extract(ctx context.Context, input *domain.DocumentInput) (*domain.ExtractedText, error)

	// SupportedFormats returns the formats this extractor handles.
	SupportedFormats() []domain.Format

	// Priority returns the extractor priority (higher = more specific).
	// Priority ranges:
	//   50-89:  Format-specific (PDF, DOCX, HTML)
	//   10-49:  Generic (plain text)
	Priority() int
}

// ExtractorRegistry manages extractors.
// When multiple extractors support a format, the highest priority one is used.
type ExtractorRegistry interface {
	// Get retrieves the best extractor for a format, or nil.
	Get(format domain.Format) Extractor

	// Register registers an extractor.
	Register(extractor Extractor)

	// Extract dispatches input to the best extractor for its format.
	Extract(ctx context.Context, input *domain.DocumentInput) (*domain.ExtractedText, error)

	// List returns all formats with a registered extractor.
	List() []domain.Format
}

// PostProcessor applies post-processing to chunks.
// Processors form a pipeline: Chunker -> BlankChunkFilter -> etc.
type PostProcessor interface {
	// Process applies post-processing to content chunks.
	// The first processor (Chunker) receives a single chunk with the full content.
	// Subsequent processors receive the chunks from the previous stage.
	Process(chunks []Chunk) []Chunk

	// Name returns the processor name for logging/debugging.
	Name() string

	// Order returns the processor order in the pipeline (lower = earlier).
	Order() int
}

// Chunk represents a piece of document content for processing.
type Chunk struct {
	// Content is the text content of the chunk
	Content string

	// Position is the chunk index within the document (0-based)
	Position int

	// StartOffset is the rune offset from document start
	StartOffset int

	// EndOffset is the rune offset for chunk end (exclusive)
	EndOffset int

	// Metadata contains additional chunk-specific data
	Metadata map[string]string
}

// PostProcessorPipeline chains multiple post-processors in order.
type PostProcessorPipeline interface {
	// Process applies all processors in order.
	// Output is the processed chunks ready for embedding/indexing.
	Process(text *domain.ExtractedText) []Chunk

	// Add adds a processor to the pipeline.
	// Processors are sorted by Order() before processing.
	Add(processor PostProcessor)

	// List returns processor names in order.
	List() []string
}
