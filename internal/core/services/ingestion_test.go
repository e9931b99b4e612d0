package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/extractors"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors"
)

// failTexts makes the mock embedder reject any batch containing marker
func failTexts(env *testEnv, marker string) {
	env.embed.EmbedFn = func(call int, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			if strings.Contains(text, marker) {
				return nil, errors.New("provider rejected input")
			}
			out[i] = env.embed.Vector(text)
		}
		return out, nil
	}
}

func TestIngest_IndexesChunksInOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	report := env.ingestText(t, "fruit.txt", threeChunkDoc)

	assert.Equal(t, domain.IngestStatusIndexed, report.Status)
	assert.Equal(t, 3, report.ChunksCreated)
	assert.Equal(t, 3, report.TotalChunks)
	assert.Zero(t, report.DuplicatesSkipped)
	assert.Empty(t, report.Errors)

	entries, err := env.ingest.Chunks(ctx, report.DocumentID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, i, e.Position)
		assert.Equal(t, domain.ChunkID(report.DocumentID, i), e.ID)
		if i > 0 {
			assert.Greater(t, e.Seq, entries[i-1].Seq, "later positions get later sequence numbers")
		}
	}

	doc, err := env.ingest.Get(ctx, report.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusIndexed, doc.Status)
	assert.Equal(t, 3, doc.ChunkCount)
	assert.Equal(t, "fruit.txt", doc.Title)

	content, err := env.docs.GetContent(ctx, report.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, threeChunkDoc, content.Body)
}

func TestIngest_UnchangedIsNoOp(t *testing.T) {
	env := newTestEnv(t)

	first := env.ingestText(t, "fruit.txt", threeChunkDoc)
	embedded := env.embed.TextsEmbedded()

	second := env.ingestText(t, "fruit-copy.txt", threeChunkDoc)

	assert.Equal(t, domain.IngestStatusUnchanged, second.Status)
	assert.Zero(t, second.ChunksCreated)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, embedded, env.embed.TextsEmbedded(), "nothing is re-embedded")
	assert.Equal(t, 3, env.index.Stats().Entries)
}

func TestIngest_PartialThenResume(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withBatchSize(1))
	failTexts(env, "Bravo")

	report := env.ingestText(t, "fruit.txt", threeChunkDoc)

	assert.Equal(t, domain.IngestStatusPartial, report.Status)
	assert.Equal(t, 2, report.ChunksCreated)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 1, report.Errors[0].Position)
	assert.Equal(t, "embedding_provider", report.Errors[0].Kind)

	doc, err := env.ingest.Get(ctx, report.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusPartial, doc.Status)
	assert.Equal(t, 2, doc.ChunkCount)

	// Provider recovers; only the missing chunk is embedded
	env.embed.EmbedFn = nil
	before := env.embed.TextsEmbedded()

	resumed := env.ingestText(t, "fruit.txt", threeChunkDoc)

	assert.Equal(t, domain.IngestStatusIndexed, resumed.Status)
	assert.Equal(t, report.DocumentID, resumed.DocumentID)
	assert.Equal(t, 1, resumed.ChunksCreated)
	assert.Equal(t, before+1, env.embed.TextsEmbedded())

	doc, err = env.ingest.Get(ctx, report.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusIndexed, doc.Status)
	assert.Equal(t, 3, doc.ChunkCount)
}

func TestIngest_ConcurrentIdenticalContent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.embed.EmbedFn = func(call int, texts []string) ([][]float32, error) {
		time.Sleep(50 * time.Millisecond)
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = env.embed.Vector(text)
		}
		return out, nil
	}

	sources := []string{"fruit.txt", "fruit-copy.txt"}
	reports := make([]*domain.IngestionReport, len(sources))
	errs := make([]error, len(sources))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, source := range sources {
		wg.Add(1)
		go func(i int, source string) {
			defer wg.Done()
			<-start
			reports[i], errs[i] = env.ingest.Ingest(ctx, &domain.DocumentInput{
				Source:  source,
				Format:  domain.FormatText,
				Content: []byte(threeChunkDoc),
			})
		}(i, source)
	}
	close(start)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, reports[0].DocumentID, reports[1].DocumentID)
	assert.Equal(t, 3, reports[0].ChunksCreated+reports[1].ChunksCreated, "chunks are created once")
	assert.ElementsMatch(t,
		[]domain.IngestStatus{domain.IngestStatusIndexed, domain.IngestStatusUnchanged},
		[]domain.IngestStatus{reports[0].Status, reports[1].Status})
	assert.Equal(t, 3, env.embed.TextsEmbedded(), "each chunk is embedded once")
	assert.Equal(t, 3, env.index.Stats().Entries)
	assert.Equal(t, 1, env.index.Stats().Documents)
}

func TestIngest_AllChunksFail(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	failTexts(env, "")

	report, err := env.ingest.Ingest(ctx, &domain.DocumentInput{
		Source:  "fruit.txt",
		Format:  domain.FormatText,
		Content: []byte(threeChunkDoc),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	require.NotNil(t, report)
	assert.Equal(t, domain.IngestStatusFailed, report.Status)
	assert.Len(t, report.Errors, 3)

	doc, err := env.ingest.Get(ctx, report.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusFailed, doc.Status)
}

func TestIngest_DimensionMismatchIsNotRetried(t *testing.T) {
	env := newTestEnv(t)
	env.embed.SetDimensions(32)

	report, err := env.ingest.Ingest(context.Background(), &domain.DocumentInput{
		Source:  "fruit.txt",
		Format:  domain.FormatText,
		Content: []byte(threeChunkDoc),
	})

	require.Error(t, err)
	assert.True(t, domain.RequiresRebuild(err), "got %v", err)
	assert.Equal(t, domain.IngestStatusFailed, report.Status)
	assert.Equal(t, 1, env.embed.Calls(), "dimension mismatches go straight to the report")
}

func TestIngest_Validation(t *testing.T) {
	env := newTestEnv(t)
	pipeline, err := postprocessors.NewDefaultPipeline(testChunkConfig())
	require.NoError(t, err)
	small := NewIngestionOrchestrator(env.docs, extractors.NewDefaultRegistry(extractors.Options{}),
		pipeline, env.embedder, env.index, IngestionConfig{MaxDocumentBytes: 10, Logger: discardLogger()})

	tests := []struct {
		name    string
		svc     *IngestionOrchestrator
		input   *domain.DocumentInput
		wantErr error
	}{
		{"unknown format", env.ingest, &domain.DocumentInput{Format: "exe", Content: []byte("x")}, domain.ErrUnsupportedFormat},
		{"too large", small, &domain.DocumentInput{Format: domain.FormatText, Content: []byte("more than ten bytes")}, domain.ErrDocumentTooLarge},
		{"empty", env.ingest, &domain.DocumentInput{Format: domain.FormatText}, domain.ErrInvalidInput},
		{"blank text", env.ingest, &domain.DocumentInput{Format: domain.FormatText, Content: []byte(" \n\t ")}, domain.ErrInvalidInput},
		{"not a pdf", env.ingest, &domain.DocumentInput{Format: domain.FormatPDF, Content: []byte("plain text")}, domain.ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.Ingest(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	count, err := env.docs.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count, "rejected input stores nothing")
}

func TestIngest_ExactPolicySkipsSharedChunks(t *testing.T) {
	env := newTestEnv(t, withPolicy(domain.DedupPolicyExact))

	env.ingestText(t, "fruit.txt", threeChunkDoc)
	report := env.ingestText(t, "more.txt", "Alpha apples are red.\n\nDelta dates are brown.")

	assert.Equal(t, domain.IngestStatusIndexed, report.Status)
	assert.Equal(t, 1, report.DuplicatesSkipped)
	assert.Equal(t, 1, report.ChunksCreated)
	assert.Equal(t, 4, env.index.Stats().Entries)
}

func TestIngest_InvalidatesQueryCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, _, err := env.answers.GetOrCompute(ctx, domain.CachePrefixQuery+"seed", func(ctx context.Context) ([]byte, error) {
		return []byte("stale"), nil
	})
	require.NoError(t, err)

	env.ingestText(t, "fruit.txt", threeChunkDoc)

	stats, err := env.answers.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestIngestSource(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes\n\nBravo bananas are yellow."), 0o600))

	report, err := env.ingest.IngestSource(ctx, path, "", map[string]string{"team": "search"})
	require.NoError(t, err)
	assert.Equal(t, domain.IngestStatusIndexed, report.Status)

	doc, err := env.ingest.Get(ctx, report.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatMarkdown, doc.Format)
	assert.Equal(t, "Notes", doc.Title)

	entries, err := env.ingest.Chunks(ctx, report.DocumentID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "search", entries[0].Metadata["team"])
	assert.Equal(t, path, entries[0].Metadata["source"])

	_, err = env.ingest.IngestSource(ctx, filepath.Join(dir, "missing.txt"), "", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.ingest.IngestSource(ctx, dir, domain.FormatText, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.ingest.IngestSource(ctx, filepath.Join(dir, "archive.zip"), "", nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestIngestAsync(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	task, err := env.ingest.IngestAsync(ctx, "https://example.com/page.html", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTypeIngestDocument, task.Type)
	assert.Equal(t, string(domain.FormatURL), task.Payload["format"])

	queued, err := env.queue.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, queued)
	assert.Equal(t, domain.TaskStatusPending, queued.Status)

	_, err = env.ingest.IngestAsync(ctx, " ", domain.FormatText)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	noQueue := NewIngestionOrchestrator(env.docs, nil, nil, env.embedder, env.index, IngestionConfig{Logger: discardLogger()})
	_, err = noQueue.IngestAsync(ctx, "a.txt", domain.FormatText)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestIngest_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	a := env.ingestText(t, "fruit.txt", threeChunkDoc)
	b := env.ingestText(t, "more.txt", "Delta dates are brown.")

	docs, err := env.ingest.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	require.NoError(t, env.ingest.Delete(ctx, a.DocumentID))

	assert.Empty(t, env.index.DocumentEntries(a.DocumentID))
	assert.Len(t, env.index.DocumentEntries(b.DocumentID), 1)

	_, err = env.ingest.Get(ctx, a.DocumentID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.ingest.Chunks(ctx, a.DocumentID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, env.ingest.Delete(ctx, a.DocumentID), domain.ErrNotFound)

	// Deleted content can be ingested again from scratch
	again := env.ingestText(t, "fruit.txt", threeChunkDoc)
	assert.Equal(t, domain.IngestStatusIndexed, again.Status)
	assert.Equal(t, 3, again.ChunksCreated)
}
