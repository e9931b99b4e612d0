package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/index"
)

func TestLock_ExcludesOtherOwners(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	a, b := NewLock(db), NewLock(db)

	ok, err := a.Acquire(ctx, "index-writer", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Acquire(ctx, "index-writer", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "not re-entrant")

	ok, err = b.Acquire(ctx, "index-writer", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Release by a non-owner leaves the lock alone
	require.NoError(t, b.Release(ctx, "index-writer"))
	assert.ErrorIs(t, b.Extend(ctx, "index-writer", time.Minute), domain.ErrLockNotAcquired)
	require.NoError(t, a.Extend(ctx, "index-writer", time.Minute))

	require.NoError(t, a.Release(ctx, "index-writer"))
	ok, err = b.Acquire(ctx, "index-writer", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_ExpiredLockCanBeTaken(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	a, b := NewLock(db), NewLock(db)

	now := time.Now()
	a.now = func() time.Time { return now }
	b.now = func() time.Time { return now.Add(2 * time.Minute) }

	ok, err := a.Acquire(ctx, "index-writer", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Acquire(ctx, "index-writer", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "holder's ttl has run out")

	a.now = b.now
	assert.ErrorIs(t, a.Extend(ctx, "index-writer", time.Minute), domain.ErrLockNotAcquired)
}

func TestLock_SerialisesIndexWriters(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)

	a, err := index.New(NewEntryStore(db), index.Config{Dimension: 2, Lock: NewLock(db), LockWait: 200 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, a.Load(ctx))

	other := NewLock(db)
	ok, err := other.Acquire(ctx, "index-writer", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = a.Upsert(ctx, []*domain.IndexEntry{
		{ID: "a", DocumentID: "doc", Content: "alpha", Vector: []float32{1, 0}},
	})
	assert.ErrorIs(t, err, domain.ErrLockNotAcquired)

	require.NoError(t, other.Release(ctx, "index-writer"))
	_, err = a.Upsert(ctx, []*domain.IndexEntry{
		{ID: "a", DocumentID: "doc", Content: "alpha", Vector: []float32{1, 0}},
	})
	require.NoError(t, err)
}
