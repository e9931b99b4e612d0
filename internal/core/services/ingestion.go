package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/index"
)

// Ensure IngestionOrchestrator implements IngestionService
var _ driving.IngestionService = (*IngestionOrchestrator)(nil)

// DefaultMaxChunkRetries is how many extra embedding rounds failed chunks get
const DefaultMaxChunkRetries = 2

// CacheInvalidator drops cached entries by prefix.
type CacheInvalidator interface {
	Clear(ctx context.Context, prefix string) (int, error)
}

// IngestionConfig holds configuration for the ingestion orchestrator.
type IngestionConfig struct {
	MaxDocumentBytes int64 // default: domain.DefaultMaxDocumentBytes
	MaxChunkRetries  int   // default: 2; negative disables retry rounds
	Logger           *slog.Logger
}

// IngestionOrchestrator drives the write path:
// extract, hash, chunk, deduplicate, embed, upsert.
type IngestionOrchestrator struct {
	docs       driven.DocumentStore
	extractors driven.ExtractorRegistry
	pipeline   driven.PostProcessorPipeline
	embedder   *BatchEmbedder
	index      *index.Store
	queue      driven.TaskQueue // Optional: enables IngestAsync
	answers    CacheInvalidator // Optional: query cache dropped when the index changes
	cfg        IngestionConfig
	logger     *slog.Logger

	// inflight serialises ingestions of identical content
	inflight singleflight.Group
}

// NewIngestionOrchestrator creates an IngestionOrchestrator.
func NewIngestionOrchestrator(
	docs driven.DocumentStore,
	extractors driven.ExtractorRegistry,
	pipeline driven.PostProcessorPipeline,
	embedder *BatchEmbedder,
	idx *index.Store,
	cfg IngestionConfig,
) *IngestionOrchestrator {
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = domain.DefaultMaxDocumentBytes
	}
	if cfg.MaxChunkRetries == 0 {
		cfg.MaxChunkRetries = DefaultMaxChunkRetries
	}
	if cfg.MaxChunkRetries < 0 {
		cfg.MaxChunkRetries = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionOrchestrator{
		docs:       docs,
		extractors: extractors,
		pipeline:   pipeline,
		embedder:   embedder,
		index:      idx,
		cfg:        cfg,
		logger:     logger.With("component", "ingestion"),
	}
}

// WithQueue enables asynchronous ingestion.
func (o *IngestionOrchestrator) WithQueue(queue driven.TaskQueue) *IngestionOrchestrator {
	o.queue = queue
	return o
}

// WithCacheInvalidation clears the query cache whenever ingestion changes the index.
func (o *IngestionOrchestrator) WithCacheInvalidation(answers CacheInvalidator) *IngestionOrchestrator {
	o.answers = answers
	return o
}

// Ingest indexes a document.
//
// Identical content that is already indexed is a no-op reported as unchanged.
// Identical content left partial by an earlier run is resumed: only missing
// positions are embedded. Concurrent calls with identical content run one at
// a time, so later callers see the first as unchanged. Chunk failures are
// listed in the report; the call only returns an error when nothing could be
// indexed or the input is invalid.
func (o *IngestionOrchestrator) Ingest(ctx context.Context, input *domain.DocumentInput) (*domain.IngestionReport, error) {
	start := time.Now()

	if !input.Format.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, input.Format)
	}
	if int64(len(input.Content)) > o.cfg.MaxDocumentBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit",
			domain.ErrDocumentTooLarge, len(input.Content), o.cfg.MaxDocumentBytes)
	}
	if len(input.Content) == 0 && input.Format != domain.FormatURL {
		return nil, fmt.Errorf("%w: document is empty", domain.ErrInvalidInput)
	}

	extracted, err := o.extractors.Extract(ctx, input)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(extracted.Text) == "" {
		return nil, fmt.Errorf("%w: no text could be extracted from %s", domain.ErrInvalidInput, input.Source)
	}

	hash := domain.ContentHash(extracted.Text)

	for {
		led := false
		ch := o.inflight.DoChan(hash, func() (interface{}, error) {
			led = true
			return o.ingestExtracted(ctx, input, extracted, hash, start)
		})
		select {
		case res := <-ch:
			if led {
				report, _ := res.Val.(*domain.IngestionReport)
				return report, res.Err
			}
			o.logger.Debug("identical content finished ingesting elsewhere; rechecking", "source", input.Source)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// ingestExtracted runs the write path for extracted text whose hash is hash.
func (o *IngestionOrchestrator) ingestExtracted(
	ctx context.Context,
	input *domain.DocumentInput,
	extracted *domain.ExtractedText,
	hash string,
	start time.Time,
) (*domain.IngestionReport, error) {
	report := &domain.IngestionReport{Source: input.Source}

	doc, err := o.docs.GetByContentHash(ctx, hash)
	switch {
	case err == nil && doc.Status == domain.DocumentStatusIndexed:
		report.DocumentID = doc.ID
		report.Status = domain.IngestStatusUnchanged
		report.TotalChunks = doc.ChunkCount
		report.Duration = time.Since(start)
		o.logger.Info("document unchanged", "document_id", doc.ID, "source", input.Source)
		return report, nil

	case err == nil:
		o.logger.Info("resuming ingestion", "document_id", doc.ID, "status", doc.Status)

	case errors.Is(err, domain.ErrNotFound):
		doc = domain.NewDocument(input, hash)
		doc.Title = documentTitle(input, extracted)
		content := &domain.DocumentContent{DocumentID: doc.ID, Body: extracted.Text, Structured: extracted.Structured}
		if err := o.docs.Save(ctx, doc, content); err != nil {
			return nil, err
		}

	default:
		return nil, err
	}
	report.DocumentID = doc.ID

	chunks := o.pipeline.Process(extracted)
	report.TotalChunks = len(chunks)

	entries := make([]*domain.IndexEntry, 0, len(chunks))
	for _, c := range chunks {
		entry := &domain.IndexEntry{
			ID:          domain.ChunkID(doc.ID, c.Position),
			DocumentID:  doc.ID,
			Position:    c.Position,
			Content:     c.Content,
			ContentHash: domain.ContentHash(c.Content),
			Metadata:    entryMetadata(doc),
		}
		if existing, ok := o.index.Get(entry.ID); ok && existing.ContentHash == entry.ContentHash {
			continue
		}
		if o.index.Policy() == domain.DedupPolicyExact && o.index.HasContentHash(entry.ContentHash) {
			report.DuplicatesSkipped++
			continue
		}
		entries = append(entries, entry)
	}

	failed := o.embedEntries(ctx, entries)

	var ready []*domain.IndexEntry
	for _, e := range entries {
		if _, bad := failed[e.Position]; !bad {
			ready = append(ready, e)
		}
	}

	result, err := o.index.Upsert(ctx, ready)
	if result != nil {
		// Replacing a position with the same chunk is not a new chunk
		report.ChunksCreated = result.Inserted
		report.DuplicatesSkipped += len(result.Rejected)
	}
	if err != nil {
		// Entries written before the failure stay indexed
		for _, e := range ready {
			if _, ok := o.index.Get(e.ID); !ok && !contains(result, e.ID) {
				failed[e.Position] = err
			}
		}
	}
	var firstErr error
	for _, e := range entries {
		if ferr, bad := failed[e.Position]; bad {
			report.AddError(e.Position, ferr)
			if firstErr == nil {
				firstErr = ferr
			}
		}
	}

	indexed := len(o.index.DocumentEntries(doc.ID))
	var status domain.DocumentStatus
	switch {
	case len(report.Errors) == 0:
		status = domain.DocumentStatusIndexed
		report.Status = domain.IngestStatusIndexed
	case indexed+report.DuplicatesSkipped > 0:
		status = domain.DocumentStatusPartial
		report.Status = domain.IngestStatusPartial
	default:
		status = domain.DocumentStatusFailed
		report.Status = domain.IngestStatusFailed
	}

	if err := o.docs.UpdateStatus(context.WithoutCancel(ctx), doc.ID, status, indexed); err != nil {
		o.logger.Error("failed to record document status", "document_id", doc.ID, "error", err)
	}
	if report.ChunksCreated > 0 {
		o.invalidate(ctx)
	}
	report.Duration = time.Since(start)

	o.logger.Info("ingested document",
		"document_id", doc.ID,
		"source", input.Source,
		"status", report.Status,
		"chunks_created", report.ChunksCreated,
		"duplicates_skipped", report.DuplicatesSkipped,
		"errors", len(report.Errors),
		"duration", report.Duration,
	)

	if report.Status == domain.IngestStatusFailed {
		return report, fmt.Errorf("no chunk of %s could be indexed: %w", input.Source, firstErr)
	}
	return report, nil
}

// embedEntries fills in vectors, retrying failed chunks for up to
// MaxChunkRetries extra rounds. It returns the last error per failed position.
func (o *IngestionOrchestrator) embedEntries(ctx context.Context, entries []*domain.IndexEntry) map[int]error {
	failed := make(map[int]error)
	pending := entries

	for round := 0; len(pending) > 0 && round <= o.cfg.MaxChunkRetries; round++ {
		if round > 0 {
			if ctx.Err() != nil {
				break
			}
			o.logger.Debug("retrying failed chunks", "round", round, "chunks", len(pending))
		}

		texts := make([]string, len(pending))
		for i, e := range pending {
			texts[i] = e.Content
		}
		results := o.embedder.EmbedBatch(ctx, texts)

		var retry []*domain.IndexEntry
		for i, r := range results {
			e := pending[i]
			if r.Err != nil {
				failed[e.Position] = r.Err
				if !domain.RequiresRebuild(r.Err) {
					retry = append(retry, e)
				}
				continue
			}
			e.Vector = r.Vector
			delete(failed, e.Position)
		}
		pending = retry
	}

	// Dimension problems surface at upsert time for the whole batch
	dim := o.index.Dimension()
	for _, e := range entries {
		if _, bad := failed[e.Position]; !bad && len(e.Vector) != dim {
			failed[e.Position] = fmt.Errorf("%w: embedder produced %d dimensions, index has %d",
				domain.ErrDimensionMismatch, len(e.Vector), dim)
		}
	}
	return failed
}

// IngestSource reads a local file or URL and ingests it.
func (o *IngestionOrchestrator) IngestSource(ctx context.Context, source string, format domain.Format, metadata map[string]string) (*domain.IngestionReport, error) {
	if format == "" {
		format = domain.FormatFromPath(source)
	}
	if format == "" {
		return nil, fmt.Errorf("%w: cannot infer format of %s", domain.ErrUnsupportedFormat, source)
	}

	input := &domain.DocumentInput{Source: source, Format: format, Metadata: metadata}
	if format != domain.FormatURL {
		content, err := o.readFile(source)
		if err != nil {
			return nil, err
		}
		input.Content = content
	}
	return o.Ingest(ctx, input)
}

func (o *IngestionOrchestrator) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}
	if info.Size() > o.cfg.MaxDocumentBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", domain.ErrDocumentTooLarge, path, info.Size())
	}
	return os.ReadFile(path)
}

// IngestAsync enqueues an ingest_document task.
func (o *IngestionOrchestrator) IngestAsync(ctx context.Context, source string, format domain.Format) (*domain.Task, error) {
	if o.queue == nil {
		return nil, fmt.Errorf("%w: no task queue configured", domain.ErrServiceUnavailable)
	}
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: source is required", domain.ErrInvalidInput)
	}
	if format == "" {
		format = domain.FormatFromPath(source)
	}
	if !format.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}

	task := domain.NewIngestTask(source, format)
	if err := o.queue.Enqueue(ctx, task); err != nil {
		return nil, err
	}
	o.logger.Info("queued ingestion", "task_id", task.ID, "source", source)
	return task, nil
}

// Get retrieves a document by ID.
func (o *IngestionOrchestrator) Get(ctx context.Context, id string) (*domain.Document, error) {
	return o.docs.Get(ctx, id)
}

// List retrieves documents newest first.
func (o *IngestionOrchestrator) List(ctx context.Context, limit, offset int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return o.docs.List(ctx, limit, offset)
}

// Chunks returns a document's indexed entries in position order.
func (o *IngestionOrchestrator) Chunks(ctx context.Context, id string) ([]*domain.IndexEntry, error) {
	if _, err := o.docs.Get(ctx, id); err != nil {
		return nil, err
	}
	return o.index.DocumentEntries(id), nil
}

// Delete removes a document's entries, then the document itself.
func (o *IngestionOrchestrator) Delete(ctx context.Context, id string) error {
	if _, err := o.docs.Get(ctx, id); err != nil {
		return err
	}
	removed, err := o.index.DeleteDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := o.docs.Delete(ctx, id); err != nil {
		return err
	}
	o.invalidate(ctx)
	o.logger.Info("deleted document", "document_id", id, "entries_removed", removed)
	return nil
}

func (o *IngestionOrchestrator) invalidate(ctx context.Context) {
	if o.answers == nil {
		return
	}
	if _, err := o.answers.Clear(context.WithoutCancel(ctx), domain.CachePrefixQuery); err != nil {
		o.logger.Warn("failed to invalidate query cache", "error", err)
	}
}

func documentTitle(input *domain.DocumentInput, extracted *domain.ExtractedText) string {
	switch {
	case input.Title != "":
		return input.Title
	case extracted.Title != "":
		return extracted.Title
	case input.Source != "":
		return filepath.Base(input.Source)
	}
	return ""
}

func entryMetadata(doc *domain.Document) map[string]string {
	m := make(map[string]string, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		m[k] = v
	}
	if doc.Source != "" {
		if _, ok := m["source"]; !ok {
			m["source"] = doc.Source
		}
	}
	return m
}

func contains(result *domain.UpsertResult, id string) bool {
	if result == nil {
		return false
	}
	for _, r := range result.Rejected {
		if r == id {
			return true
		}
	}
	return false
}
