package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/index"
)

// setupTestDB opens a database in a temporary directory.
func setupTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sercha.db")
	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, path
}

func TestEntryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	s := NewEntryStore(db)

	_, err := s.Meta(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SaveMeta(ctx, &domain.IndexMeta{
		Dimension: 3, Metric: domain.MetricCosine, State: domain.IndexStateReady, RebuiltAt: &now, UpdatedAt: now,
		Generation: 7,
	}))

	for i, id := range []string{"b", "a"} {
		require.NoError(t, s.Put(ctx, &domain.IndexEntry{
			ID:          id,
			DocumentID:  "doc",
			Position:    i,
			Content:     "text " + id,
			ContentHash: domain.ContentHash("text " + id),
			Vector:      []float32{1, float32(i), 0.5},
			Metadata:    map[string]string{"lang": "en"},
			Seq:         int64(i + 1),
			CreatedAt:   now,
		}))
	}

	entries, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].ID, "entries come back in seq order")
	assert.Equal(t, []float32{1, 1, 0.5}, entries[1].Vector)
	assert.Equal(t, "en", entries[1].Metadata["lang"])

	meta, err := s.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, meta.Dimension)
	assert.Equal(t, domain.IndexStateReady, meta.State)
	assert.Equal(t, int64(7), meta.Generation)
	require.NotNil(t, meta.RebuiltAt)

	require.NoError(t, s.DeleteBatch(ctx, []string{"a", "b"}))
	entries, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEntryStore_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	s := NewEntryStore(db)

	require.NoError(t, s.Put(ctx, &domain.IndexEntry{ID: "old", Content: "x", Vector: []float32{1}, Seq: 1}))
	require.NoError(t, s.ReplaceAll(ctx, []*domain.IndexEntry{
		{ID: "new1", Content: "y", Vector: []float32{1}, Seq: 1},
		{ID: "new2", Content: "z", Vector: []float32{1}, Seq: 2},
	}))

	entries, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "new1", entries[0].ID)
}

func TestEntryStore_CorruptVector(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	s := NewEntryStore(db)

	_, err := db.ExecContext(ctx, `
		INSERT INTO index_entries (id, document_id, position, content, content_hash, vector, metadata, seq, created_at)
		VALUES ('bad', 'doc', 0, 'x', 'h', X'010203', '{}', 1, CURRENT_TIMESTAMP)
	`)
	require.NoError(t, err)

	_, err = s.LoadAll(ctx)
	assert.ErrorIs(t, err, domain.ErrCorruptIndex)
}

func TestDocumentStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	s := NewDocumentStore(db)

	doc := domain.NewDocument(&domain.DocumentInput{
		Source:   "notes.md",
		Format:   domain.FormatMarkdown,
		Metadata: map[string]string{"team": "search"},
	}, domain.ContentHash("body"))
	require.NoError(t, s.Save(ctx, doc, &domain.DocumentContent{Body: "body", Structured: true}))

	got, err := s.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatMarkdown, got.Format)
	assert.Equal(t, "search", got.Metadata["team"])

	byHash, err := s.GetByContentHash(ctx, domain.ContentHash("body"))
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byHash.ID)

	content, err := s.GetContent(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "body", content.Body)
	assert.True(t, content.Structured)

	require.NoError(t, s.UpdateStatus(ctx, doc.ID, domain.DocumentStatusPartial, 2))
	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.DocumentStatusPartial])

	docs, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	require.NoError(t, s.Delete(ctx, doc.ID))
	_, err = s.Get(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetContent(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "content is removed with its document")
	assert.ErrorIs(t, s.UpdateStatus(ctx, doc.ID, domain.DocumentStatusIndexed, 0), domain.ErrNotFound)
}

func TestIndexSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sercha.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)

	store, err := index.New(NewEntryStore(db), index.Config{Dimension: 2})
	require.NoError(t, err)
	require.NoError(t, store.Load(ctx))

	_, err = store.Upsert(ctx, []*domain.IndexEntry{
		{ID: "a", DocumentID: "doc", Content: "alpha", Vector: []float32{1, 0}},
		{ID: "b", DocumentID: "doc", Content: "beta", Vector: []float32{0, 1}},
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	reopened, err := index.New(NewEntryStore(db), index.Config{Dimension: 2})
	require.NoError(t, err)
	require.NoError(t, reopened.Load(ctx))

	hits, err := reopened.Search(ctx, []float32{0, 1}, domain.SearchOptions{K: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].Entry.ID)
	assert.Equal(t, "beta", hits[0].Entry.Content)
}

func TestIndexDetectsCorruptionAfterRestart(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)

	store, err := index.New(NewEntryStore(db), index.Config{Dimension: 2})
	require.NoError(t, err)
	require.NoError(t, store.Load(ctx))
	_, err = store.Upsert(ctx, []*domain.IndexEntry{
		{ID: "a", DocumentID: "doc", Content: "alpha", Vector: []float32{1, 0}},
	})
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `UPDATE index_entries SET vector = X'00' WHERE id = 'a'`)
	require.NoError(t, err)

	reopened, err := index.New(NewEntryStore(db), index.Config{Dimension: 2})
	require.NoError(t, err)
	assert.ErrorIs(t, reopened.Load(ctx), domain.ErrCorruptIndex)

	meta, err := NewEntryStore(db).Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStateCorrupt, meta.State)
}

func TestIndexInstancesShareDatabase(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)

	a, err := index.New(NewEntryStore(db), index.Config{Dimension: 2})
	require.NoError(t, err)
	require.NoError(t, a.Load(ctx))
	b, err := index.New(NewEntryStore(db), index.Config{Dimension: 2})
	require.NoError(t, err)
	require.NoError(t, b.Load(ctx))

	_, err = a.Upsert(ctx, []*domain.IndexEntry{
		{ID: "a", DocumentID: "doc-a", Content: "alpha", Vector: []float32{1, 0}},
	})
	require.NoError(t, err)

	changed, err := b.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	hits, err := b.Search(ctx, []float32{1, 0}, domain.SearchOptions{K: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].Entry.ID)

	_, err = b.Upsert(ctx, []*domain.IndexEntry{
		{ID: "b", DocumentID: "doc-b", Content: "beta", Vector: []float32{0, 1}},
	})
	require.NoError(t, err)

	entries, err := NewEntryStore(db).LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, int64(2), entries[1].Seq, "seq continues from the other instance's writes")

	meta, err := NewEntryStore(db).Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), meta.Generation)
}
