package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeIngestDocument ingests a document from a path or URL
	TaskTypeIngestDocument TaskType = "ingest_document"
	// TaskTypeRebuildIndex rebuilds the vector index from stored documents
	TaskTypeRebuildIndex TaskType = "rebuild_index"
	// TaskTypeCompactIndex compacts the vector index
	TaskTypeCompactIndex TaskType = "compact_index"
	// TaskTypeSweepCache removes expired cache entries
	TaskTypeSweepCache TaskType = "sweep_cache"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a background job to be processed by workers
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Type identifies what kind of task this is
	Type TaskType `json:"type"`

	// Payload contains task-specific data
	// For ingest_document: {"source": "/path/or/url", "format": "pdf"}
	// For compact_index: {"strategy": "age_based", "keep_recent_days": "30"}
	Payload map[string]string `json:"payload"`

	// Status is the current state of the task
	Status TaskStatus `json:"status"`

	// Attempts is how many times this task has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum retry count before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	// Result holds a short summary of the outcome (e.g. the document id)
	Result map[string]string `json:"result,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ScheduledFor time.Time  `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           uuid.NewString(),
		Type:         taskType,
		Payload:      payload,
		Status:       TaskStatusPending,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewIngestTask creates a task to ingest a document from a path or URL
func NewIngestTask(source string, format Format) *Task {
	return NewTask(TaskTypeIngestDocument, map[string]string{
		"source": source,
		"format": string(format),
	})
}

// NewCompactTask creates a task to compact the index
func NewCompactTask(req CompactRequest) *Task {
	payload := map[string]string{"strategy": string(req.Strategy)}
	if req.KeepRecentDays > 0 {
		payload["keep_recent_days"] = strconv.Itoa(req.KeepRecentDays)
	}
	if req.DryRun {
		payload["dry_run"] = "true"
	}
	return NewTask(TaskTypeCompactIndex, payload)
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && !time.Now().Before(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.UpdatedAt = now
	t.Error = err
}

// Retry resets the task for retry with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err

	// Exponential backoff: 1s, 2s, 4s, 8s, etc.
	backoff := time.Duration(1<<t.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute // Cap at 5 minutes
	}
	t.ScheduledFor = now.Add(backoff)
}

// ScheduledTask represents a recurring task configuration
type ScheduledTask struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Type     TaskType          `json:"type"`
	Payload  map[string]string `json:"payload,omitempty"`
	Interval time.Duration     `json:"interval"`
	Enabled  bool              `json:"enabled"`
	LastRun  *time.Time        `json:"last_run,omitempty"`
	NextRun  time.Time         `json:"next_run"`
	// LastError contains the last error if enqueueing failed
	LastError string `json:"last_error,omitempty"`
}

// NewScheduledTask creates a new scheduled task
func NewScheduledTask(id, name string, taskType TaskType, payload map[string]string, interval time.Duration) *ScheduledTask {
	return &ScheduledTask{
		ID:       id,
		Name:     name,
		Type:     taskType,
		Payload:  payload,
		Interval: interval,
		Enabled:  true,
		NextRun:  time.Now().Add(interval),
	}
}

// IsDue returns true if the scheduled task should be triggered
func (s *ScheduledTask) IsDue() bool {
	return s.Enabled && !time.Now().Before(s.NextRun)
}

// UpdateNextRun calculates the next run time after execution
func (s *ScheduledTask) UpdateNextRun() {
	now := time.Now()
	s.LastRun = &now
	s.NextRun = now.Add(s.Interval)
}

// QueueStats contains queue statistics
type QueueStats struct {
	// PendingCount is the number of tasks waiting to be processed
	PendingCount int64 `json:"pending_count"`

	// ProcessingCount is the number of tasks currently being processed
	ProcessingCount int64 `json:"processing_count"`

	// CompletedCount is the number of successfully completed tasks
	CompletedCount int64 `json:"completed_count"`

	// FailedCount is the number of tasks that failed after all retries
	FailedCount int64 `json:"failed_count"`
}

// MaintenanceStatus is a point-in-time view of the index and its supporting stores
type MaintenanceStatus struct {
	Index     IndexStats             `json:"index"`
	Documents int                    `json:"documents"`
	ByStatus  map[DocumentStatus]int `json:"by_status"`
	Cache     *CacheStats            `json:"cache,omitempty"`
	Queue     *QueueStats            `json:"queue,omitempty"`
}
