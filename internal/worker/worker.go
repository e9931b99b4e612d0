package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
)

// Worker processes tasks from the task queue.
// Ingestion tasks go to the ingestion service; index and cache upkeep
// tasks go to the maintenance service.
type Worker struct {
	taskQueue   driven.TaskQueue
	ingestion   driving.IngestionService
	maintenance driving.MaintenanceService
	scheduler   *services.Scheduler
	logger      *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds
	errorBackoff   time.Duration

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Ingestion      driving.IngestionService
	Maintenance    driving.MaintenanceService
	Scheduler      *services.Scheduler
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent task processors
	DequeueTimeout int // Seconds to wait for a task before checking again
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		ingestion:      cfg.Ingestion,
		maintenance:    cfg.Maintenance,
		scheduler:      cfg.Scheduler,
		logger:         logger.With("component", "worker"),
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		errorBackoff:   time.Second,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	if w.scheduler != nil {
		if err := w.scheduler.Start(ctx); err != nil {
			w.logger.Error("failed to start scheduler", "error", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker. A task in flight runs to completion.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	if w.scheduler != nil {
		w.scheduler.Stop()
	}

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Debug("worker stop signal received")
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-time.After(w.errorBackoff):
			case <-ctx.Done():
			case <-w.stopCh:
			}
			continue
		}

		if task == nil {
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// processTask runs one task and acks or nacks it.
// Errors that retrying cannot fix fail the task on the first attempt;
// a task interrupted by shutdown is always retried.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "attempt", task.Attempts)
	logger.Info("processing task")

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeIngestDocument:
		err = w.handleIngest(ctx, task)
	case domain.TaskTypeRebuildIndex:
		err = w.handleRebuild(ctx, task)
	case domain.TaskTypeCompactIndex:
		err = w.handleCompact(ctx, task)
	case domain.TaskTypeSweepCache:
		err = w.handleSweep(ctx, task)
	default:
		err = fmt.Errorf("%w: unknown task type: %s", domain.ErrInvalidInput, task.Type)
	}

	duration := time.Since(startTime)
	// Ack and nack must land even when shutdown cancelled the handler
	ackCtx := context.WithoutCancel(ctx)

	if err != nil {
		retryable := domain.IsRetryable(err) || errors.Is(err, domain.ErrIndexRebuilding) || ctx.Err() != nil
		logger.Error("task failed",
			"duration", duration,
			"retryable", retryable,
			"error", err,
		)

		if !retryable {
			task.MaxAttempts = task.Attempts
		}
		if nackErr := w.taskQueue.Nack(ackCtx, task, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)

	if ackErr := w.taskQueue.Ack(ackCtx, task); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// handleIngest handles an ingest_document task.
func (w *Worker) handleIngest(ctx context.Context, task *domain.Task) error {
	if w.ingestion == nil {
		return fmt.Errorf("%w: ingestion is not configured", domain.ErrServiceUnavailable)
	}
	source := task.Payload["source"]
	if source == "" {
		return fmt.Errorf("%w: source not found in task payload", domain.ErrInvalidInput)
	}

	report, err := w.ingestion.IngestSource(ctx, source, domain.Format(task.Payload["format"]), nil)
	if report != nil {
		task.Result = map[string]string{
			"document_id":    report.DocumentID,
			"status":         string(report.Status),
			"chunks_created": strconv.Itoa(report.ChunksCreated),
			"errors":         strconv.Itoa(len(report.Errors)),
		}
	}
	return err
}

// handleRebuild handles a rebuild_index task.
func (w *Worker) handleRebuild(ctx context.Context, task *domain.Task) error {
	if w.maintenance == nil {
		return errNoMaintenance
	}
	result, err := w.maintenance.Rebuild(ctx)
	if err != nil {
		return err
	}
	task.Result = map[string]string{
		"documents": strconv.Itoa(result.Documents),
		"entries":   strconv.Itoa(result.Entries),
		"failed":    strconv.Itoa(result.Failed),
	}
	return nil
}

// handleCompact handles a compact_index task.
func (w *Worker) handleCompact(ctx context.Context, task *domain.Task) error {
	if w.maintenance == nil {
		return errNoMaintenance
	}
	req, err := compactRequest(task.Payload)
	if err != nil {
		return err
	}
	result, err := w.maintenance.Compact(ctx, req)
	if err != nil {
		return err
	}
	task.Result = map[string]string{
		"strategy":  string(result.Strategy),
		"removed":   strconv.Itoa(result.Removed),
		"remaining": strconv.Itoa(result.Remaining),
	}
	return nil
}

// handleSweep handles a sweep_cache task.
func (w *Worker) handleSweep(ctx context.Context, task *domain.Task) error {
	if w.maintenance == nil {
		return errNoMaintenance
	}
	removed, err := w.maintenance.SweepCache(ctx)
	if err != nil {
		return err
	}
	task.Result = map[string]string{"removed": strconv.Itoa(removed)}
	return nil
}

var errNoMaintenance = fmt.Errorf("%w: maintenance is not configured", domain.ErrServiceUnavailable)

func compactRequest(payload map[string]string) (domain.CompactRequest, error) {
	req := domain.CompactRequest{
		Strategy: domain.CompactStrategy(payload["strategy"]),
		DryRun:   payload["dry_run"] == "true",
	}
	if raw := payload["keep_recent_days"]; raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("%w: keep_recent_days %q is not a number", domain.ErrInvalidInput, raw)
		}
		req.KeepRecentDays = days
	}
	return req, nil
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
