package domain

import "time"

// IngestStatus is the outcome of a single ingestion
type IngestStatus string

const (
	// IngestStatusIndexed means every chunk was embedded and stored
	IngestStatusIndexed IngestStatus = "indexed"
	// IngestStatusPartial means some chunks failed after retries; the rest remain indexed
	IngestStatusPartial IngestStatus = "partial"
	// IngestStatusFailed means no chunk could be indexed
	IngestStatusFailed IngestStatus = "failed"
	// IngestStatusUnchanged means identical content was already indexed
	IngestStatusUnchanged IngestStatus = "unchanged"
)

// ChunkError records why a chunk could not be indexed
type ChunkError struct {
	Position int    `json:"position"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// IngestionReport summarises one ingestion
type IngestionReport struct {
	DocumentID        string        `json:"document_id"`
	Source            string        `json:"source"`
	Status            IngestStatus  `json:"status"`
	ChunksCreated     int           `json:"chunks_created"`
	DuplicatesSkipped int           `json:"duplicates_skipped"`
	TotalChunks       int           `json:"total_chunks"`
	Errors            []ChunkError  `json:"errors,omitempty"`
	Duration          time.Duration `json:"duration" swaggertype:"integer" example:"1500000"`
}

// AddError appends a chunk failure with its error kind
func (r *IngestionReport) AddError(position int, err error) {
	r.Errors = append(r.Errors, ChunkError{
		Position: position,
		Kind:     ErrorKind(err),
		Message:  err.Error(),
	})
}

// EmbedResult is the per-item outcome of a batch embedding call.
// Exactly one of Vector and Err is set.
type EmbedResult struct {
	Vector []float32
	Err    error
}

// CompactStrategy selects how the index is compacted
type CompactStrategy string

const (
	CompactDeduplicateExact CompactStrategy = "deduplicate_exact"
	CompactAgeBased         CompactStrategy = "age_based"
)

// IsValid returns true if this is a known strategy
func (s CompactStrategy) IsValid() bool {
	return s == CompactDeduplicateExact || s == CompactAgeBased
}

// CompactRequest configures a compaction run
type CompactRequest struct {
	Strategy       CompactStrategy `json:"strategy"`
	KeepRecentDays int             `json:"keep_recent_days,omitempty"`
	DryRun         bool            `json:"dry_run,omitempty"`
}

// CompactResult summarises a compaction run
type CompactResult struct {
	Strategy   CompactStrategy `json:"strategy"`
	DryRun     bool            `json:"dry_run"`
	Removed    int             `json:"removed"`
	Candidates []string        `json:"candidates,omitempty"` // Entry IDs, populated on dry runs
	Remaining  int             `json:"remaining"`
}

// RebuildResult summarises an index rebuild
type RebuildResult struct {
	Documents int           `json:"documents"`
	Entries   int           `json:"entries"`
	Failed    int           `json:"failed"` // Documents that could not be re-embedded
	Dimension int           `json:"dimension"`
	Duration  time.Duration `json:"duration" swaggertype:"integer" example:"1500000"`
}
