package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Reranker names
const (
	RerankerLexical = "lexical"
	RerankerNone    = "none"
)

// Verify interface compliance
var (
	_ driven.Reranker = (*LexicalReranker)(nil)
	_ driven.Reranker = (*NoopReranker)(nil)
)

// NewReranker returns the reranker registered under name. An empty name is lexical.
func NewReranker(name string) (driven.Reranker, error) {
	switch name {
	case "", RerankerLexical:
		return &LexicalReranker{}, nil
	case RerankerNone:
		return &NoopReranker{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown reranker %q", domain.ErrInvalidConfiguration, name)
	}
}

// LexicalReranker scores candidates by token-overlap F1 against the query.
type LexicalReranker struct{}

// Score returns one F1 score per candidate.
func (r *LexicalReranker) Score(ctx context.Context, query string, candidates []*domain.RetrievedChunk) ([]float64, error) {
	q := tokenSet(query)
	scores := make([]float64, len(candidates))
	if len(q) == 0 {
		return scores, nil
	}

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc := tokenSet(c.Content)
		if len(doc) == 0 {
			continue
		}
		overlap := 0
		for t := range q {
			if _, ok := doc[t]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		precision := float64(overlap) / float64(len(doc))
		recall := float64(overlap) / float64(len(q))
		scores[i] = 2 * precision * recall / (precision + recall)
	}
	return scores, nil
}

// Name returns "lexical".
func (r *LexicalReranker) Name() string {
	return RerankerLexical
}

// NoopReranker keeps the vector order.
type NoopReranker struct{}

// Score returns equal scores, so a stable sort keeps the input order.
func (r *NoopReranker) Score(ctx context.Context, query string, candidates []*domain.RetrievedChunk) ([]float64, error) {
	return make([]float64, len(candidates)), nil
}

// Name returns "none".
func (r *NoopReranker) Name() string {
	return RerankerNone
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range domain.Tokenize(text) {
		set[t] = struct{}{}
	}
	return set
}
