// Package extractors turns raw document payloads into normalised text.
package extractors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry implements ExtractorRegistry with priority-based selection.
// When multiple extractors support a format, the highest priority one is used.
type Registry struct {
	mu         sync.RWMutex
	extractors []driven.Extractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make([]driven.Extractor, 0),
	}
}

// Register registers an extractor.
func (r *Registry) Register(extractor driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.extractors = append(r.extractors, extractor)
}

// Get retrieves the best extractor for a format.
// Returns nil if no extractor is registered for it.
func (r *Registry) Get(format domain.Format) driven.Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best driven.Extractor
	for _, e := range r.extractors {
		if !supports(e, format) {
			continue
		}
		if best == nil || e.Priority() > best.Priority() {
			best = e
		}
	}
	return best
}

// Extract dispatches input to the best extractor for its format.
func (r *Registry) Extract(ctx context.Context, input *domain.DocumentInput) (*domain.ExtractedText, error) {
	e := r.Get(input.Format)
	if e == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, input.Format)
	}
	return e.Extract(ctx, input)
}

// List returns all formats with a registered extractor.
func (r *Registry) List() []domain.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := make(map[domain.Format]struct{})
	for _, e := range r.extractors {
		for _, f := range e.SupportedFormats() {
			set[f] = struct{}{}
		}
	}

	formats := make([]domain.Format, 0, len(set))
	for f := range set {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

func supports(e driven.Extractor, format domain.Format) bool {
	for _, f := range e.SupportedFormats() {
		if f == format {
			return true
		}
	}
	return false
}

// Options configures the default extractor set.
type Options struct {
	// Runner executes external tools such as pdftotext. Defaults to os/exec.
	Runner CommandRunner
	// MaxFetchBytes bounds URL downloads. Defaults to domain.DefaultMaxDocumentBytes.
	MaxFetchBytes int64
	// HTTPClient is used for URL fetches.
	HTTPClient HTTPDoer
}

// NewDefaultRegistry registers an extractor for every supported format.
func NewDefaultRegistry(opts Options) *Registry {
	r := NewRegistry()
	r.Register(NewTextExtractor())
	r.Register(NewHTMLExtractor())
	r.Register(NewPDFExtractor(opts.Runner))
	r.Register(NewDOCXExtractor())
	r.Register(NewXLSXExtractor())
	r.Register(NewTranscriptExtractor())
	r.Register(NewURLExtractor(r, opts.HTTPClient, opts.MaxFetchBytes))
	return r
}
