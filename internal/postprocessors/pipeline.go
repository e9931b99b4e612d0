package postprocessors

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// metaStructured marks a chunk whose content must only be split at line boundaries.
const metaStructured = "structured"

// Pipeline implements PostProcessorPipeline.
// It chains multiple post-processors in order, starting with a Chunker.
type Pipeline struct {
	mu         sync.RWMutex
	processors []driven.PostProcessor
	sorted     bool
}

// NewPipeline creates a new post-processor pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		processors: make([]driven.PostProcessor, 0),
	}
}

// Add adds a processor to the pipeline.
// Processors are sorted by Order() before processing.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	p.sorted = false
}

// Process applies all processors in order.
// Output is the processed chunks ready for embedding/indexing.
func (p *Pipeline) Process(text *domain.ExtractedText) []driven.Chunk {
	p.mu.Lock()
	if !p.sorted {
		sort.SliceStable(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}
	procs := make([]driven.PostProcessor, len(p.processors))
	copy(procs, p.processors)
	p.mu.Unlock()

	if text == nil || text.Text == "" {
		return nil
	}

	// Start with a single chunk containing all content
	first := driven.Chunk{
		Content:     text.Text,
		Position:    0,
		StartOffset: 0,
		EndOffset:   len([]rune(text.Text)),
	}
	if text.Structured {
		first.Metadata = map[string]string{metaStructured: "true"}
	}
	chunks := []driven.Chunk{first}

	// Apply each processor in order
	for _, proc := range procs {
		chunks = proc.Process(chunks)
	}

	return chunks
}

// List returns processor names in order.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// NewDefaultPipeline creates a pipeline with a chunker and a blank chunk filter.
// Returns domain.ErrInvalidConfiguration if the chunk config is invalid.
func NewDefaultPipeline(cfg ChunkConfig) (*Pipeline, error) {
	chunker, err := NewChunker(cfg)
	if err != nil {
		return nil, err
	}
	p := NewPipeline()
	p.Add(chunker)
	p.Add(NewBlankChunkFilter())
	return p, nil
}

// ChunkConfig configures the chunker behavior.
type ChunkConfig struct {
	// MaxChunkSize is the maximum characters per chunk
	MaxChunkSize int

	// Overlap is the exact character overlap between neighbouring chunks
	Overlap int

	// PreserveSentences tries to break at sentence boundaries
	PreserveSentences bool

	// PreserveParagraphs tries to break at paragraph boundaries
	PreserveParagraphs bool
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChunkSize:       1000,
		Overlap:            200,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	}
}

// Validate checks max > overlap >= 0.
func (c ChunkConfig) Validate() error {
	if c.Overlap < 0 {
		return fmt.Errorf("%w: chunk overlap %d must not be negative", domain.ErrInvalidConfiguration, c.Overlap)
	}
	if c.MaxChunkSize <= c.Overlap {
		return fmt.Errorf("%w: chunk size %d must be greater than overlap %d",
			domain.ErrInvalidConfiguration, c.MaxChunkSize, c.Overlap)
	}
	return nil
}

// Chunk splits text with the given size and overlap using the default break preferences.
func Chunk(text string, maxSize, overlap int) ([]driven.Chunk, error) {
	cfg := DefaultChunkConfig()
	cfg.MaxChunkSize = maxSize
	cfg.Overlap = overlap

	chunker, err := NewChunker(cfg)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return chunker.Process([]driven.Chunk{{Content: text, EndOffset: len([]rune(text))}}), nil
}

// BlankChunkFilter drops whitespace-only chunks and renumbers positions.
type BlankChunkFilter struct{}

// Verify interface compliance
var _ driven.PostProcessor = (*BlankChunkFilter)(nil)

// NewBlankChunkFilter creates a new blank chunk filter.
func NewBlankChunkFilter() *BlankChunkFilter {
	return &BlankChunkFilter{}
}

// Process removes blank chunks, keeping positions contiguous.
func (f *BlankChunkFilter) Process(chunks []driven.Chunk) []driven.Chunk {
	result := make([]driven.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Content) == "" {
			continue
		}
		chunk.Position = len(result)
		result = append(result, chunk)
	}
	return result
}

// Name returns the processor name.
func (f *BlankChunkFilter) Name() string {
	return "blank-chunk-filter"
}

// Order returns 10 - runs after the chunker.
func (f *BlankChunkFilter) Order() int {
	return 10
}
