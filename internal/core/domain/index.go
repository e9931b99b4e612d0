package domain

import (
	"fmt"
	"time"
)

// DedupPolicy controls how the vector store treats identical chunk content
type DedupPolicy string

const (
	// DedupPolicyNone lets duplicates coexist; they are flagged at query time
	DedupPolicyNone DedupPolicy = "none"
	// DedupPolicyExact rejects entries whose content hash is already indexed
	DedupPolicyExact DedupPolicy = "deduplicate_exact"
)

// IsValid returns true if this is a known policy
func (p DedupPolicy) IsValid() bool {
	return p == DedupPolicyNone || p == DedupPolicyExact
}

// Metric is the similarity function used for nearest-neighbour search
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

// IsValid returns true if this is a known metric
func (m Metric) IsValid() bool {
	return m == MetricCosine || m == MetricDot
}

// IndexState is the persisted lifecycle state of the vector index
type IndexState string

const (
	IndexStateReady      IndexState = "ready"
	IndexStateRebuilding IndexState = "rebuilding"
	IndexStateCorrupt    IndexState = "corrupt"
	IndexStateMismatched IndexState = "mismatched"
)

// IndexEntry is the persisted unit of the vector store
type IndexEntry struct {
	ID          string            `json:"id"`
	DocumentID  string            `json:"document_id"`
	Position    int               `json:"position"`
	Content     string            `json:"content"`
	ContentHash string            `json:"content_hash"`
	Vector      []float32         `json:"-"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Seq         int64             `json:"seq"` // Insertion order, assigned by the store
	CreatedAt   time.Time         `json:"created_at"`
}

// NewIndexEntry builds an entry from an embedded chunk
func NewIndexEntry(chunk *Chunk, metadata map[string]string) *IndexEntry {
	return &IndexEntry{
		ID:          chunk.ID,
		DocumentID:  chunk.DocumentID,
		Position:    chunk.Position,
		Content:     chunk.Content,
		ContentHash: chunk.ContentHash,
		Vector:      chunk.Embedding,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	}
}

// Validate checks the entry is well formed for an index of the given dimension
func (e *IndexEntry) Validate(dimension int) error {
	if e.ID == "" {
		return fmt.Errorf("%w: entry id is required", ErrInvalidInput)
	}
	if len(e.Vector) != dimension {
		return fmt.Errorf("%w: entry %s has %d dimensions, index has %d",
			ErrDimensionMismatch, e.ID, len(e.Vector), dimension)
	}
	return nil
}

// Pinned returns true if the entry is protected from age-based compaction
func (e *IndexEntry) Pinned() bool {
	return e.Metadata["pinned"] == "true"
}

// IndexMeta is the persisted header of an index
type IndexMeta struct {
	Dimension int        `json:"dimension"`
	Metric    Metric     `json:"metric"`
	State     IndexState `json:"state"`
	RebuiltAt *time.Time `json:"rebuilt_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Generation is bumped by every committed write so other instances
	// sharing the store know to reload
	Generation int64 `json:"generation"`
}

// SearchFilter restricts which entries a search may return
type SearchFilter struct {
	DocumentIDs []string          `json:"document_ids,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// IsEmpty returns true if the filter matches everything
func (f *SearchFilter) IsEmpty() bool {
	return f == nil || (len(f.DocumentIDs) == 0 && len(f.Metadata) == 0)
}

// Matches returns true if the entry passes the filter
func (f *SearchFilter) Matches(e *IndexEntry) bool {
	if f.IsEmpty() {
		return true
	}
	if len(f.DocumentIDs) > 0 {
		found := false
		for _, id := range f.DocumentIDs {
			if id == e.DocumentID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for k, v := range f.Metadata {
		if e.Metadata[k] != v {
			return false
		}
	}
	return true
}

// SearchOptions configures a vector store search
type SearchOptions struct {
	K                  int
	Filter             *SearchFilter
	MinScore           float64
	CollapseDuplicates bool
}

// ScoredEntry is a search hit
type ScoredEntry struct {
	Entry *IndexEntry
	Score float64
	// Duplicate is set when an earlier-inserted entry carries the same content hash
	Duplicate bool
}

// UpsertResult summarises an upsert batch
type UpsertResult struct {
	Inserted int      `json:"inserted"`
	Replaced int      `json:"replaced"`
	Rejected []string `json:"rejected,omitempty"` // Entry IDs refused as exact duplicates
}

// PruneOptions configures age-based compaction
type PruneOptions struct {
	OlderThan time.Time
	DryRun    bool
}

// IndexStats describes the current index
type IndexStats struct {
	Entries    int         `json:"entries"`
	Documents  int         `json:"documents"`
	Duplicates int         `json:"duplicates"`
	Dimension  int         `json:"dimension"`
	Metric     Metric      `json:"metric"`
	Policy     DedupPolicy `json:"policy"`
	State      IndexState  `json:"state"`
	RebuiltAt  *time.Time  `json:"rebuilt_at,omitempty"`
}
