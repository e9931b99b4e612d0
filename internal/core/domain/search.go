package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// DefaultTopK is the number of passages retrieved when the caller does not say
const DefaultTopK = 5

// RetrieveRequest configures a retrieval
type RetrieveRequest struct {
	Query    string        `json:"query"`
	TopK     int           `json:"top_k"`
	Filter   *SearchFilter `json:"filter,omitempty"`
	Rerank   *bool         `json:"rerank,omitempty"` // nil uses the configured default
	MinScore float64       `json:"min_score,omitempty"`
	// Collapse drops results whose content duplicates a higher-ranked result
	Collapse bool `json:"collapse,omitempty"`
}

// RetrievedChunk represents a retrieval result with relevance score
type RetrievedChunk struct {
	ChunkID     string            `json:"chunk_id"`
	DocumentID  string            `json:"document_id"`
	Position    int               `json:"position"`
	Content     string            `json:"content"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Score       float64           `json:"score"`
	RerankScore *float64          `json:"rerank_score,omitempty"`
	Duplicate   bool              `json:"duplicate,omitempty"`
}

// RetrievedFromEntry converts a search hit into a retrieval result
func RetrievedFromEntry(hit *ScoredEntry) *RetrievedChunk {
	return &RetrievedChunk{
		ChunkID:    hit.Entry.ID,
		DocumentID: hit.Entry.DocumentID,
		Position:   hit.Entry.Position,
		Content:    hit.Entry.Content,
		Metadata:   hit.Entry.Metadata,
		Score:      hit.Score,
		Duplicate:  hit.Duplicate,
	}
}

// QueryRequest asks for a generated answer grounded on retrieved passages
type QueryRequest struct {
	RetrieveRequest
}

// QueryResponse is a generated answer and the passages it was grounded on
type QueryResponse struct {
	Query    string            `json:"query"`
	Answer   string            `json:"answer"`
	Sources  []*RetrievedChunk `json:"sources"`
	Cached   bool              `json:"cached"`
	Fallback bool              `json:"fallback,omitempty"` // Answer produced without the LLM
	Took     time.Duration     `json:"took" swaggertype:"integer" example:"1500000"`
}

// CachedAnswer is the value memoised per query fingerprint
type CachedAnswer struct {
	ChunkIDs []string          `json:"chunk_ids"`
	Sources  []*RetrievedChunk `json:"sources"`
	Answer   string            `json:"answer"`
	Fallback bool              `json:"fallback,omitempty"`
}

// FingerprintInput is everything that determines a query's answer
type FingerprintInput struct {
	Query          string
	TopK           int
	Filter         *SearchFilter
	Rerank         bool
	MinScore       float64
	Collapse       bool
	EmbeddingModel string
	LLMModel       string
}

// NormalizeQuery lower-cases, trims and collapses whitespace
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Fingerprint returns a deterministic cache key for a query.
// Distinct parameter sets produce distinct keys.
func Fingerprint(in FingerprintInput) string {
	type kv struct {
		K string `json:"k"`
		V string `json:"v"`
	}
	var meta []kv
	var docs []string
	if in.Filter != nil {
		for k, v := range in.Filter.Metadata {
			meta = append(meta, kv{k, v})
		}
		sort.Slice(meta, func(i, j int) bool { return meta[i].K < meta[j].K })
		docs = append(docs, in.Filter.DocumentIDs...)
		sort.Strings(docs)
	}

	canonical := struct {
		Query     string   `json:"q"`
		TopK      int      `json:"k"`
		Docs      []string `json:"d"`
		Meta      []kv     `json:"m"`
		Rerank    bool     `json:"r"`
		MinScore  float64  `json:"s"`
		Collapse  bool     `json:"c"`
		Embedding string   `json:"e"`
		LLM       string   `json:"l"`
	}{
		Query:     NormalizeQuery(in.Query),
		TopK:      in.TopK,
		Docs:      docs,
		Meta:      meta,
		Rerank:    in.Rerank,
		MinScore:  in.MinScore,
		Collapse:  in.Collapse,
		Embedding: in.EmbeddingModel,
		LLM:       in.LLMModel,
	}

	// Marshal of plain structs and slices cannot fail
	b, _ := json.Marshal(canonical)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
