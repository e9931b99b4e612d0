package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestQueue_EnqueueDequeueAck(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()

	task := domain.NewIngestTask("/tmp/a.md", domain.FormatMarkdown)
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, domain.TaskStatusProcessing, got.Status)
	assert.Equal(t, 1, got.Attempts)

	got.Result = map[string]string{"document_id": "doc-1"}
	require.NoError(t, q.Ack(ctx, got))

	stored, err := q.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)
	assert.Equal(t, "doc-1", stored.Result["document_id"])
}

func TestQueue_DequeueTimeout(t *testing.T) {
	q := NewQueue()

	start := time.Now()
	got, err := q.DequeueWithTimeout(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestQueue_DequeueCancelled(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	got, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQueue_NackRetriesThenFails(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()

	task := domain.NewTask(domain.TaskTypeSweepCache, nil)
	task.MaxAttempts = 1
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, q.Nack(ctx, got, "boom"))

	stored, err := q.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)
	assert.Equal(t, "boom", stored.Error)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.FailedCount)
}

func TestQueue_NackDelaysRetry(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()

	task := domain.NewTask(domain.TaskTypeSweepCache, nil)
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, q.Nack(ctx, got, "transient"))

	stored, err := q.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, stored.Status)
	assert.True(t, stored.ScheduledFor.After(time.Now()), "retry is scheduled with backoff")

	// Not yet due
	ctx2, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	again, err := q.DequeueWithTimeout(ctx2, 0)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestQueue_Close(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()
	require.NoError(t, q.Close())
	assert.Error(t, q.Enqueue(ctx, domain.NewTask(domain.TaskTypeSweepCache, nil)))
}

func TestQueue_NackPermanentFailure(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()

	task := domain.NewIngestTask("/tmp/a.zip", "zip")
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)

	// The caller gives up on the first attempt
	got.MaxAttempts = got.Attempts
	require.NoError(t, q.Nack(ctx, got, "unsupported format"))

	stored, err := q.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)
}
