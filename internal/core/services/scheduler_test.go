package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven/mocks"
)

// mockSchedulerTaskQueue for scheduler tests
type mockSchedulerTaskQueue struct {
	mu        sync.Mutex
	tasks     []*domain.Task
	enqueueFn func(*domain.Task) error
}

func newMockSchedulerTaskQueue() *mockSchedulerTaskQueue {
	return &mockSchedulerTaskQueue{
		tasks: make([]*domain.Task, 0),
	}
}

func (m *mockSchedulerTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	if m.enqueueFn != nil {
		return m.enqueueFn(task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *mockSchedulerTaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	return nil, nil
}

func (m *mockSchedulerTaskQueue) Ack(ctx context.Context, task *domain.Task) error {
	return nil
}

func (m *mockSchedulerTaskQueue) Nack(ctx context.Context, task *domain.Task, reason string) error {
	return nil
}

func (m *mockSchedulerTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	return nil, domain.ErrNotFound
}

func (m *mockSchedulerTaskQueue) Stats(ctx context.Context) (*domain.QueueStats, error) {
	return &domain.QueueStats{PendingCount: int64(len(m.getEnqueuedTasks()))}, nil
}

func (m *mockSchedulerTaskQueue) Ping(ctx context.Context) error {
	return nil
}

func (m *mockSchedulerTaskQueue) Close() error {
	return nil
}

func (m *mockSchedulerTaskQueue) getEnqueuedTasks() []*domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Task, len(m.tasks))
	copy(result, m.tasks)
	return result
}

func dueTask(id string, taskType domain.TaskType) *domain.ScheduledTask {
	t := domain.NewScheduledTask(id, id, taskType, map[string]string{"strategy": "age_based"}, time.Hour)
	t.NextRun = time.Now().Add(-time.Minute)
	return t
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(SchedulerConfig{TaskQueue: newMockSchedulerTaskQueue()})

	if s.interval != 30*time.Second {
		t.Errorf("expected default interval 30s, got %v", s.interval)
	}
	if s.lockTTL != 60*time.Second {
		t.Errorf("expected default lock TTL 60s, got %v", s.lockTTL)
	}
	if s.logger == nil {
		t.Error("expected default logger")
	}
	if s.lockRequired {
		t.Error("lock should not be required without a lock")
	}
}

func TestNewScheduler_LockImpliesRequired(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		TaskQueue: newMockSchedulerTaskQueue(),
		Lock:      mocks.NewMockDistributedLock(),
	})
	if !s.lockRequired {
		t.Error("expected lock to be required when configured")
	}
}

func TestDefaultSchedules(t *testing.T) {
	tests := []struct {
		name       string
		compaction time.Duration
		sweep      time.Duration
		want       []string
	}{
		{"both", time.Hour, time.Minute, []string{ScheduleCompaction, ScheduleCacheSweep}},
		{"compaction only", time.Hour, 0, []string{ScheduleCompaction}},
		{"sweep only", 0, time.Minute, []string{ScheduleCacheSweep}},
		{"none", 0, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := DefaultSchedules(domain.CompactRequest{Strategy: domain.CompactAgeBased, KeepRecentDays: 7}, tt.compaction, tt.sweep)
			if len(tasks) != len(tt.want) {
				t.Fatalf("expected %d schedules, got %d", len(tt.want), len(tasks))
			}
			for i, id := range tt.want {
				if tasks[i].ID != id {
					t.Errorf("schedule %d: expected %s, got %s", i, id, tasks[i].ID)
				}
			}
		})
	}

	tasks := DefaultSchedules(domain.CompactRequest{Strategy: domain.CompactAgeBased, KeepRecentDays: 7}, time.Hour, 0)
	if tasks[0].Type != domain.TaskTypeCompactIndex {
		t.Errorf("expected compact_index, got %s", tasks[0].Type)
	}
	if tasks[0].Payload["keep_recent_days"] != "7" {
		t.Errorf("expected keep_recent_days=7 in payload, got %v", tasks[0].Payload)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		TaskQueue:    newMockSchedulerTaskQueue(),
		PollInterval: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("failed to start scheduler: %v", err)
	}

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		t.Error("expected scheduler to be running")
	}

	// Start again should be no-op
	if err := s.Start(ctx); err != nil {
		t.Errorf("second start should not error: %v", err)
	}

	s.Stop()

	s.mu.RLock()
	running = s.running
	s.mu.RUnlock()
	if running {
		t.Error("expected scheduler to be stopped")
	}

	// Stop again should be no-op
	s.Stop()
}

func TestScheduler_CheckAndEnqueue(t *testing.T) {
	queue := newMockSchedulerTaskQueue()

	notDue := domain.NewScheduledTask("later", "later", domain.TaskTypeSweepCache, nil, time.Hour)
	disabled := dueTask("disabled", domain.TaskTypeSweepCache)
	disabled.Enabled = false

	s := NewScheduler(SchedulerConfig{
		TaskQueue:    queue,
		PollInterval: time.Hour,
		Tasks:        []*domain.ScheduledTask{dueTask("due", domain.TaskTypeCompactIndex), notDue, disabled},
	})

	s.checkAndEnqueue(context.Background())

	enqueued := queue.getEnqueuedTasks()
	if len(enqueued) != 1 {
		t.Fatalf("expected 1 enqueued task, got %d", len(enqueued))
	}
	if enqueued[0].Type != domain.TaskTypeCompactIndex {
		t.Errorf("expected compact_index, got %s", enqueued[0].Type)
	}
	if enqueued[0].Payload["strategy"] != "age_based" {
		t.Errorf("expected payload to be copied, got %v", enqueued[0].Payload)
	}

	// The schedule advanced; a second pass enqueues nothing
	s.checkAndEnqueue(context.Background())
	if n := len(queue.getEnqueuedTasks()); n != 1 {
		t.Errorf("expected schedule to advance, got %d tasks", n)
	}

	got, err := s.GetScheduledTask("due")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LastRun == nil {
		t.Error("expected last run to be recorded")
	}
}

func TestScheduler_CheckAndEnqueue_EnqueueError(t *testing.T) {
	queue := newMockSchedulerTaskQueue()
	queue.enqueueFn = func(task *domain.Task) error {
		return errors.New("queue unavailable")
	}

	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
		Tasks:     []*domain.ScheduledTask{dueTask("s1", domain.TaskTypeSweepCache)},
	})

	s.checkAndEnqueue(context.Background())

	got, _ := s.GetScheduledTask("s1")
	if got.LastError != "queue unavailable" {
		t.Errorf("expected last error 'queue unavailable', got %q", got.LastError)
	}
}

func TestScheduler_LockHeldElsewhere(t *testing.T) {
	queue := newMockSchedulerTaskQueue()
	lock := mocks.NewMockDistributedLock()
	lock.SetLockHeld("scheduler", time.Minute)

	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
		Lock:      lock,
		Tasks:     []*domain.ScheduledTask{dueTask("s1", domain.TaskTypeSweepCache)},
	})

	s.checkAndEnqueue(context.Background())

	if n := len(queue.getEnqueuedTasks()); n != 0 {
		t.Errorf("expected no tasks while another instance holds the lock, got %d", n)
	}
}

func TestScheduler_LockAcquiredAndReleased(t *testing.T) {
	queue := newMockSchedulerTaskQueue()
	lock := mocks.NewMockDistributedLock()

	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
		Lock:      lock,
		Tasks:     []*domain.ScheduledTask{dueTask("s1", domain.TaskTypeSweepCache)},
	})

	s.checkAndEnqueue(context.Background())

	if n := len(queue.getEnqueuedTasks()); n != 1 {
		t.Errorf("expected 1 task, got %d", n)
	}
	if lock.Acquisitions("scheduler") != 1 {
		t.Errorf("expected one acquisition, got %d", lock.Acquisitions("scheduler"))
	}
	if lock.IsHeld("scheduler") {
		t.Error("expected lock to be released")
	}
}

func TestScheduler_LockErrorSkipsCycle(t *testing.T) {
	queue := newMockSchedulerTaskQueue()
	lock := mocks.NewMockDistributedLock()
	lock.AcquireFn = func(name string, ttl time.Duration) (bool, error) {
		return false, errors.New("redis down")
	}

	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
		Lock:      lock,
		Tasks:     []*domain.ScheduledTask{dueTask("s1", domain.TaskTypeSweepCache)},
	})

	s.checkAndEnqueue(context.Background())

	if n := len(queue.getEnqueuedTasks()); n != 0 {
		t.Errorf("expected cycle to be skipped, got %d tasks", n)
	}
}

func TestScheduler_EnableDisable(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		TaskQueue: newMockSchedulerTaskQueue(),
		Tasks:     []*domain.ScheduledTask{dueTask("s1", domain.TaskTypeSweepCache)},
	})

	if err := s.DisableScheduledTask("s1"); err != nil {
		t.Fatalf("failed to disable: %v", err)
	}
	got, _ := s.GetScheduledTask("s1")
	if got.Enabled {
		t.Error("expected disabled")
	}

	if err := s.EnableScheduledTask("s1"); err != nil {
		t.Fatalf("failed to enable: %v", err)
	}
	got, _ = s.GetScheduledTask("s1")
	if !got.Enabled {
		t.Error("expected enabled")
	}

	if err := s.EnableScheduledTask("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestScheduler_ListScheduledTasks(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		TaskQueue: newMockSchedulerTaskQueue(),
		Tasks:     DefaultSchedules(domain.CompactRequest{Strategy: domain.CompactDeduplicateExact}, time.Hour, time.Minute),
	})

	tasks := s.ListScheduledTasks()
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != ScheduleCacheSweep || tasks[1].ID != ScheduleCompaction {
		t.Errorf("expected tasks ordered by id, got %s, %s", tasks[0].ID, tasks[1].ID)
	}
}

func TestScheduler_TriggerNow(t *testing.T) {
	queue := newMockSchedulerTaskQueue()
	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
		Tasks:     DefaultSchedules(domain.CompactRequest{}, 0, time.Hour),
	})

	task, err := s.TriggerNow(context.Background(), ScheduleCacheSweep)
	if err != nil {
		t.Fatalf("failed to trigger: %v", err)
	}
	if task.Type != domain.TaskTypeSweepCache {
		t.Errorf("expected task type %s, got %s", domain.TaskTypeSweepCache, task.Type)
	}
	if len(queue.getEnqueuedTasks()) != 1 {
		t.Errorf("expected 1 enqueued task, got %d", len(queue.getEnqueuedTasks()))
	}

	if _, err := s.TriggerNow(context.Background(), "nonexistent"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestScheduler_ContextCancellation(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		TaskQueue:    newMockSchedulerTaskQueue(),
		PollInterval: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	cancel()
	// Stop must return once the loop has exited on its own
	s.Stop()

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if running {
		t.Error("expected scheduler to be stopped after context cancellation")
	}
}

func TestMockSchedulerTaskQueueInterface(t *testing.T) {
	var _ driven.TaskQueue = (*mockSchedulerTaskQueue)(nil)
}
