package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/index"
)

// Ensure Retriever implements RetrievalService
var _ driving.RetrievalService = (*Retriever)(nil)

// Retrieval defaults
const (
	DefaultRerankFactor = 3
	MaxTopK             = 100
)

// RetrieverConfig holds configuration for the retriever.
type RetrieverConfig struct {
	DefaultTopK  int             // default: domain.DefaultTopK
	Rerank       bool            // Rerank when the request does not say
	RerankFactor int             // Candidates fetched per result when reranking (default: 3)
	MinScore     float64         // Applied when the request sets none
	Reranker     driven.Reranker // default: lexical
	Logger       *slog.Logger
}

// Retriever embeds a query, searches the vector store and optionally reranks.
type Retriever struct {
	embedder *BatchEmbedder
	index    *index.Store
	reranker driven.Reranker
	cfg      RetrieverConfig
	logger   *slog.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(embedder *BatchEmbedder, idx *index.Store, cfg RetrieverConfig) *Retriever {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = domain.DefaultTopK
	}
	if cfg.RerankFactor <= 0 {
		cfg.RerankFactor = DefaultRerankFactor
	}
	reranker := cfg.Reranker
	if reranker == nil {
		reranker = &LexicalReranker{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		index:    idx,
		reranker: reranker,
		cfg:      cfg,
		logger:   logger.With("component", "retriever"),
	}
}

// Resolve validates req and fills in configured defaults.
// The returned request always has Rerank set.
func (r *Retriever) Resolve(req domain.RetrieveRequest) (domain.RetrieveRequest, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return req, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if req.TopK < 0 {
		return req, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidInput, req.TopK)
	}
	if req.TopK == 0 {
		req.TopK = r.cfg.DefaultTopK
	}
	if req.TopK > MaxTopK {
		req.TopK = MaxTopK
	}
	if req.Rerank == nil {
		rerank := r.cfg.Rerank
		req.Rerank = &rerank
	}
	if req.MinScore == 0 {
		req.MinScore = r.cfg.MinScore
	}
	return req, nil
}

// Retrieve returns up to TopK chunks ranked for the query. An empty result is valid.
func (r *Retriever) Retrieve(ctx context.Context, req domain.RetrieveRequest) ([]*domain.RetrievedChunk, error) {
	req, err := r.Resolve(req)
	if err != nil {
		return nil, err
	}
	rerank := *req.Rerank

	n := req.TopK
	if rerank {
		n *= r.cfg.RerankFactor
	}

	vector, err := r.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	hits, err := r.index.Search(ctx, vector, domain.SearchOptions{
		K:                  n,
		Filter:             req.Filter,
		MinScore:           req.MinScore,
		CollapseDuplicates: req.Collapse,
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]*domain.RetrievedChunk, len(hits))
	for i, h := range hits {
		chunks[i] = domain.RetrievedFromEntry(h)
	}

	if rerank && len(chunks) > 1 {
		chunks = r.rerank(ctx, req.Query, chunks)
	}
	if len(chunks) > req.TopK {
		chunks = chunks[:req.TopK]
	}
	return chunks, nil
}

// rerank reorders chunks by reranker score. Any failure keeps the vector order.
func (r *Retriever) rerank(ctx context.Context, query string, chunks []*domain.RetrievedChunk) []*domain.RetrievedChunk {
	scores, err := r.reranker.Score(ctx, query, chunks)
	if err != nil {
		r.logger.Warn("rerank failed, keeping vector order", "reranker", r.reranker.Name(), "error", err)
		return chunks
	}
	if len(scores) != len(chunks) {
		r.logger.Warn("reranker returned wrong number of scores, keeping vector order",
			"reranker", r.reranker.Name(),
			"scores", len(scores),
			"candidates", len(chunks),
		)
		return chunks
	}

	for i := range chunks {
		s := scores[i]
		chunks[i].RerankScore = &s
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		return *chunks[i].RerankScore > *chunks[j].RerankScore
	})
	return chunks
}

// Reranker returns the configured reranker name.
func (r *Retriever) Reranker() string {
	return r.reranker.Name()
}
