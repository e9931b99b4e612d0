package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/memory"
	"github.com/custodia-labs/sercha-rag/internal/cache"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-rag/internal/extractors"
	"github.com/custodia-labs/sercha-rag/internal/index"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors"
)

// threeChunkDoc splits into one chunk per paragraph with testChunkConfig
const threeChunkDoc = "Alpha apples are red.\n\nBravo bananas are yellow.\n\nCharlie cherries are dark."

func testChunkConfig() postprocessors.ChunkConfig {
	return postprocessors.ChunkConfig{
		MaxChunkSize:       30,
		Overlap:            0,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv wires the services over in-memory adapters and mock providers.
type testEnv struct {
	docs     *memory.DocumentStore
	entries  *memory.EntryStore
	index    *index.Store
	embed    *mocks.MockEmbeddingService
	embedder *BatchEmbedder
	answers  *cache.ResponseCache
	llm      *mocks.MockLLMService
	queue    *memory.Queue

	ingest    *IngestionOrchestrator
	retriever *Retriever
	query     *QueryService
	maint     *MaintenanceService
}

type envOption func(*envConfig)

type envConfig struct {
	policy    domain.DedupPolicy
	rerank    bool
	batchSize int
}

func withPolicy(p domain.DedupPolicy) envOption {
	return func(c *envConfig) { c.policy = p }
}

func withRerank() envOption {
	return func(c *envConfig) { c.rerank = true }
}

// withBatchSize sets how many texts go into one provider call
func withBatchSize(n int) envOption {
	return func(c *envConfig) { c.batchSize = n }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := envConfig{policy: domain.DedupPolicyNone}
	for _, o := range opts {
		o(&cfg)
	}

	logger := discardLogger()
	env := &testEnv{
		docs:    memory.NewDocumentStore(),
		entries: memory.NewEntryStore(),
		embed:   mocks.NewMockEmbeddingService(),
		llm:     mocks.NewMockLLMService(),
		queue:   memory.NewQueue(),
	}

	var err error
	env.index, err = index.New(env.entries, index.Config{
		Dimension: env.embed.Dimensions(),
		Policy:    cfg.policy,
		Logger:    logger,
	})
	require.NoError(t, err)
	require.NoError(t, env.index.Load(context.Background()))

	env.embedder = NewBatchEmbedder(env.embed, BatchEmbedderConfig{BatchSize: cfg.batchSize, Logger: logger})
	env.embedder.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	store, err := memory.NewCacheStore(100)
	require.NoError(t, err)
	env.answers = cache.New(store, cache.Config{Logger: logger})

	pipeline, err := postprocessors.NewDefaultPipeline(testChunkConfig())
	require.NoError(t, err)

	env.ingest = NewIngestionOrchestrator(env.docs, extractors.NewDefaultRegistry(extractors.Options{}),
		pipeline, env.embedder, env.index, IngestionConfig{Logger: logger}).
		WithQueue(env.queue).
		WithCacheInvalidation(env.answers)
	env.retriever = NewRetriever(env.embedder, env.index, RetrieverConfig{Rerank: cfg.rerank, Logger: logger})
	env.query = NewQueryService(env.retriever, env.llm, nil, env.answers, QueryConfig{Logger: logger})
	env.maint = NewMaintenanceService(env.docs, pipeline, env.embedder, env.index, env.answers, env.queue,
		MaintenanceConfig{Logger: logger})
	return env
}

func (e *testEnv) ingestText(t *testing.T, source, text string) *domain.IngestionReport {
	t.Helper()
	report, err := e.ingest.Ingest(context.Background(), &domain.DocumentInput{
		Source:  source,
		Format:  domain.FormatText,
		Content: []byte(text),
	})
	require.NoError(t, err)
	return report
}
