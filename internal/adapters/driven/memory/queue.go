package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// queuePoll bounds how long a waiting worker sleeps before rechecking delayed tasks
const queuePoll = 100 * time.Millisecond

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements driven.TaskQueue in process.
// Delayed and retried tasks become visible once their ScheduledFor passes.
type Queue struct {
	mu      sync.Mutex
	tasks   map[string]*domain.Task
	pending []string
	notify  chan struct{}
	closed  bool
}

// NewQueue creates an empty in-process queue.
func NewQueue() *Queue {
	return &Queue{
		tasks:  make(map[string]*domain.Task),
		notify: make(chan struct{}, 1),
	}
}

// Enqueue adds a task.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.New("queue is closed")
	}
	t := *task
	q.tasks[t.ID] = &t
	q.pending = append(q.pending, t.ID)
	q.mu.Unlock()

	q.signal()
	return nil
}

// DequeueWithTimeout returns the next ready task, waiting up to timeout seconds.
// A timeout of 0 waits until the context is cancelled.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(time.Duration(timeout) * time.Second)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		if task := q.take(); task != nil {
			return task, nil
		}

		poll := time.NewTimer(queuePoll)
		select {
		case <-ctx.Done():
			poll.Stop()
			return nil, nil
		case <-deadline:
			poll.Stop()
			return nil, nil
		case <-q.notify:
		case <-poll.C:
		}
		poll.Stop()
	}
}

// take removes and returns the earliest ready task, or nil.
func (q *Queue) take() *domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	sort.SliceStable(q.pending, func(i, j int) bool {
		return q.tasks[q.pending[i]].ScheduledFor.Before(q.tasks[q.pending[j]].ScheduledFor)
	})

	now := time.Now()
	for i, id := range q.pending {
		t := q.tasks[id]
		if t.ScheduledFor.After(now) {
			break
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		t.MarkProcessing()
		out := *t
		return &out
	}
	return nil
}

// Ack marks a task completed.
func (q *Queue) Ack(ctx context.Context, task *domain.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[task.ID]
	if !ok {
		return domain.ErrNotFound
	}
	t.Result = task.Result
	t.MarkCompleted()
	return nil
}

// Nack schedules a retry with backoff, or fails the task once attempts run out.
func (q *Queue) Nack(ctx context.Context, task *domain.Task, reason string) error {
	q.mu.Lock()
	t, ok := q.tasks[task.ID]
	if !ok {
		q.mu.Unlock()
		return domain.ErrNotFound
	}
	if t.CanRetry() && task.CanRetry() {
		t.Retry(reason)
		q.pending = append(q.pending, t.ID)
	} else {
		t.MarkFailed(reason)
	}
	q.mu.Unlock()

	q.signal()
	return nil
}

// GetTask returns a copy of a task, or nil if unknown.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if !ok {
		return nil, nil
	}
	out := *t
	return &out, nil
}

// Stats counts tasks by status.
func (q *Queue) Stats(ctx context.Context) (*domain.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := &domain.QueueStats{}
	for _, t := range q.tasks {
		switch t.Status {
		case domain.TaskStatusPending:
			stats.PendingCount++
		case domain.TaskStatusProcessing:
			stats.ProcessingCount++
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

// Ping always succeeds.
func (q *Queue) Ping(ctx context.Context) error {
	return nil
}

// Close stops handing out tasks.
func (q *Queue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return nil
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
