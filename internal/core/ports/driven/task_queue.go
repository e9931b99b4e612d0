package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// TaskQueue carries ingest_document, rebuild_index, compact_index and
// sweep_cache tasks to workers. The redis implementation is shared between
// processes; the in-memory one lives and dies with its process.
type TaskQueue interface {
	Enqueue(ctx context.Context, task *domain.Task) error

	// DequeueWithTimeout claims the next ready task, blocking up to timeout
	// seconds. It returns nil, nil when nothing arrived. A claimed task is
	// invisible to other workers until it is acked or nacked.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	// Ack marks a claimed task completed, keeping task.Result.
	Ack(ctx context.Context, task *domain.Task) error

	// Nack reschedules a claimed task with backoff. It is marked failed
	// instead once attempts are exhausted or task.MaxAttempts was lowered
	// to stop retries.
	Nack(ctx context.Context, task *domain.Task, reason string) error

	// GetTask returns nil, nil for an unknown ID.
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	Stats(ctx context.Context) (*domain.QueueStats, error)
	Ping(ctx context.Context) error
	Close() error
}
