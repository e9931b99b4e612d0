package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven/mocks"
)

func ask(query string, topK int) domain.QueryRequest {
	return domain.QueryRequest{RetrieveRequest: domain.RetrieveRequest{Query: query, TopK: topK}}
}

func TestAsk_AnswersAndCaches(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.ingestText(t, "fruit.txt", threeChunkDoc)
	env.llm.Answer = "  Bananas are yellow [2].  "

	first, err := env.query.Ask(ctx, ask("what colour are bananas", 2))
	require.NoError(t, err)
	assert.Equal(t, "Bananas are yellow [2].", first.Answer)
	assert.False(t, first.Cached)
	assert.False(t, first.Fallback)
	assert.Len(t, first.Sources, 2)

	prompt := env.llm.LastPrompt()
	assert.Contains(t, prompt, "[1] Bravo bananas are yellow.")
	assert.Contains(t, prompt, "what colour are bananas")

	second, err := env.query.Ask(ctx, ask("  What colour are BANANAS ", 2))
	require.NoError(t, err)
	assert.True(t, second.Cached, "normalised query text shares the fingerprint")
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 1, env.llm.Calls())

	// Different retrieval parameters never share an entry
	third, err := env.query.Ask(ctx, ask("what colour are bananas", 3))
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, env.llm.Calls())
}

func TestAsk_NoResults(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.query.Ask(context.Background(), ask("anything", 3))
	require.NoError(t, err)
	assert.Equal(t, noResultsAnswer, resp.Answer)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	assert.Zero(t, env.llm.Calls())
}

func TestAsk_InvalidRequest(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.query.Ask(context.Background(), ask("", 3))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAsk_FallbackIsNotCached(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.ingestText(t, "fruit.txt", threeChunkDoc)

	env.llm.GenerateFn = func(ctx context.Context, prompt string) (string, error) {
		return "", fmt.Errorf("%w: upstream 503", domain.ErrLLMProvider)
	}
	fallback := mocks.NewMockLLMService()
	fallback.Answer = "Bravo bananas are yellow."
	svc := NewQueryService(env.retriever, env.llm, fallback, env.answers, QueryConfig{Logger: discardLogger()})

	resp, err := svc.Ask(ctx, ask("bananas", 1))
	require.NoError(t, err)
	assert.True(t, resp.Fallback)
	assert.Equal(t, "Bravo bananas are yellow.", resp.Answer)

	// The LLM recovers and the next request reaches it
	env.llm.GenerateFn = nil
	resp, err = svc.Ask(ctx, ask("bananas", 1))
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.False(t, resp.Fallback)
	assert.Equal(t, "mock answer", resp.Answer)
	assert.Equal(t, 2, env.llm.Calls())
}

func TestAsk_LLMFailureWithoutFallback(t *testing.T) {
	env := newTestEnv(t)
	env.ingestText(t, "fruit.txt", threeChunkDoc)
	env.llm.GenerateFn = func(ctx context.Context, prompt string) (string, error) {
		return "", fmt.Errorf("%w: upstream 500", domain.ErrLLMProvider)
	}

	_, err := env.query.Ask(context.Background(), ask("bananas", 1))
	assert.ErrorIs(t, err, domain.ErrLLMProvider)

	stats, err := env.answers.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Entries, "failures are not cached")
}

func TestAsk_FallbackOnlyIsNotMarkedFallback(t *testing.T) {
	env := newTestEnv(t)
	env.ingestText(t, "fruit.txt", threeChunkDoc)
	local := mocks.NewMockLLMService()
	local.Answer = "extractive"

	svc := NewQueryService(env.retriever, nil, local, nil, QueryConfig{Logger: discardLogger()})
	resp, err := svc.Ask(context.Background(), ask("bananas", 1))
	require.NoError(t, err)
	assert.Equal(t, "extractive", resp.Answer)
	assert.False(t, resp.Fallback)
	assert.False(t, resp.Cached)

	none := NewQueryService(env.retriever, nil, nil, nil, QueryConfig{Logger: discardLogger()})
	_, err = none.Ask(context.Background(), ask("bananas", 1))
	assert.ErrorIs(t, err, domain.ErrLLMProvider)
}

func TestAsk_ConcurrentIdenticalQueriesGenerateOnce(t *testing.T) {
	env := newTestEnv(t)
	env.ingestText(t, "fruit.txt", threeChunkDoc)
	env.llm.GenerateFn = func(ctx context.Context, prompt string) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return "slow answer", nil
	}

	const callers = 5
	answers := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := env.query.Ask(context.Background(), ask("bananas", 2))
			if err == nil {
				answers[i] = resp.Answer
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, env.llm.Calls())
	for _, a := range answers {
		assert.Equal(t, "slow answer", a)
	}
}

func TestAsk_IngestInvalidatesAnswers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.ingestText(t, "fruit.txt", threeChunkDoc)

	_, err := env.query.Ask(ctx, ask("dates", 2))
	require.NoError(t, err)

	env.ingestText(t, "more.txt", "Delta dates are brown.")

	resp, err := env.query.Ask(ctx, ask("dates", 2))
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.True(t, strings.HasPrefix(resp.Sources[0].Content, "Delta"))
}

func TestAsk_SameModelNameDifferentProviderNotShared(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.ingestText(t, "fruit.txt", threeChunkDoc)

	ollama := NewQueryService(env.retriever, env.llm, nil, env.answers, QueryConfig{
		Logger:      discardLogger(),
		LLMProvider: domain.AIProviderOllama,
	})
	local := NewQueryService(env.retriever, env.llm, nil, env.answers, QueryConfig{
		Logger:      discardLogger(),
		LLMProvider: domain.AIProviderLocal,
	})

	first, err := ollama.Ask(ctx, ask("bananas", 2))
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := local.Ask(ctx, ask("bananas", 2))
	require.NoError(t, err)
	assert.False(t, second.Cached, "a different provider must not reuse the answer")
	assert.Equal(t, 2, env.llm.Calls())

	again, err := local.Ask(ctx, ask("bananas", 2))
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, 2, env.llm.Calls())
}
