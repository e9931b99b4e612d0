package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestNewReranker(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", RerankerLexical, false},
		{RerankerLexical, RerankerLexical, false},
		{RerankerNone, RerankerNone, false},
		{"cross-encoder", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReranker(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Name())
		})
	}
}

func TestLexicalReranker_Score(t *testing.T) {
	r := &LexicalReranker{}
	candidates := []*domain.RetrievedChunk{
		{Content: "bananas are yellow"},
		{Content: "nothing in common"},
		{Content: "yellow bananas"},
		{Content: ""},
	}

	scores, err := r.Score(context.Background(), "yellow bananas", candidates)
	require.NoError(t, err)
	require.Len(t, scores, 4)

	assert.InDelta(t, 0.8, scores[0], 1e-9) // p=2/3 r=1
	assert.Zero(t, scores[1])
	assert.InDelta(t, 1.0, scores[2], 1e-9)
	assert.Zero(t, scores[3])
}

func TestLexicalReranker_EmptyQuery(t *testing.T) {
	scores, err := (&LexicalReranker{}).Score(context.Background(), "?!", []*domain.RetrievedChunk{{Content: "x"}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, scores)
}

func TestNoopReranker_Score(t *testing.T) {
	scores, err := (&NoopReranker{}).Score(context.Background(), "q", make([]*domain.RetrievedChunk, 3))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, scores)
}
