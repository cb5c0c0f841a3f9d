package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"massupload/internal/infrastructure"
)

var (
	ErrQueueFull    = errors.New("job queue is full")
	ErrQueueStopped = errors.New("job queue is stopped")
)

// Task is the work behind a job. Its result is stored on the job.
type Task func(ctx context.Context) (any, error)

type queuedJob struct {
	job  *Job
	task Task
}

// JobQueue runs tasks on a fixed number of workers. Enqueue never blocks:
// when the buffer is full the job is rejected.
type JobQueue struct {
	jobs     chan queuedJob
	workers  int
	wg       sync.WaitGroup
	store    JobStore
	logger   *slog.Logger
	now      func() time.Time
	shutdown chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewJobQueue creates a queue with the given worker count and buffer size.
func NewJobQueue(workers, size int, store JobStore, logger *slog.Logger) *JobQueue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = workers * 2
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &JobQueue{
		jobs:     make(chan queuedJob, size),
		workers:  workers,
		store:    store,
		logger:   logger.With(slog.String("component", "jobqueue")),
		now:      time.Now,
		shutdown: make(chan struct{}),
	}
}

// Start begins processing jobs. The context is passed to every task.
func (q *JobQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true

	q.logger.Info("starting job queue", slog.Int("workers", q.workers), slog.Int("capacity", cap(q.jobs)))
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop stops accepting jobs and waits for running ones up to timeout.
// Jobs still buffered are marked failed.
func (q *JobQueue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	close(q.shutdown)
	q.mu.Unlock()

	q.logger.Info("stopping job queue")

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		q.logger.Warn("job queue stop timeout exceeded")
		return fmt.Errorf("timeout waiting for workers to finish")
	}

	for {
		select {
		case qj := <-q.jobs:
			q.finish(qj.job, nil, ErrQueueStopped, q.logger)
		default:
			q.logger.Info("job queue stopped gracefully")
			return nil
		}
	}
}

// Enqueue records job as pending and schedules task.
func (q *JobQueue) Enqueue(job *Job, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrQueueStopped
	}

	job.Status = JobStatusPending
	job.CreatedAt = q.now()
	if err := q.store.CreateJob(job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	select {
	case q.jobs <- queuedJob{job: job, task: task}:
		q.logger.Info("job enqueued",
			slog.String("job_id", job.ID),
			slog.String("type", job.Type),
			slog.String("user", job.User))
		return nil
	default:
		q.finish(job, nil, ErrQueueFull, q.logger)
		return ErrQueueFull
	}
}

// GetJob retrieves a job by ID
func (q *JobQueue) GetJob(id string) (*Job, error) {
	return q.store.GetJob(id)
}

// ListJobs returns jobs matching the filter
func (q *JobQueue) ListJobs(filter JobFilter) ([]*Job, error) {
	return q.store.ListJobs(filter)
}

// Pending returns the number of buffered jobs.
func (q *JobQueue) Pending() int {
	return len(q.jobs)
}

func (q *JobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		// shutdown wins over buffered work
		select {
		case <-ctx.Done():
			return
		case <-q.shutdown:
			return
		default:
		}

		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		case qj := <-q.jobs:
			q.process(ctx, qj, logger)
		}
	}
}

func (q *JobQueue) process(ctx context.Context, qj queuedJob, logger *slog.Logger) {
	job := qj.job
	if job.TraceID != "" {
		ctx = context.WithValue(ctx, middleware.RequestIDKey, job.TraceID)
		ctx = infrastructure.WithTraceID(ctx, job.TraceID)
	}
	logger = logger.With(slog.String("job_id", job.ID), slog.String("type", job.Type))

	started := q.now()
	job.Status = JobStatusRunning
	job.StartedAt = &started
	if err := q.store.UpdateJob(job); err != nil {
		logger.ErrorContext(ctx, "failed to update job status", slog.String("error", err.Error()))
	}
	logger.InfoContext(ctx, "processing job started")

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "job processing panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = fmt.Errorf("job processing panicked: %v", r)
			}
		}()
		result, err = qj.task(ctx)
	}()

	q.finish(job, result, err, logger)
}

func (q *JobQueue) finish(job *Job, result any, err error, logger *slog.Logger) {
	completed := q.now()
	job.CompletedAt = &completed
	job.Result = result
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
		logger.Warn("job failed", slog.String("job_id", job.ID), slog.String("error", job.Error))
	} else {
		job.Status = JobStatusCompleted
		logger.Info("job completed", slog.String("job_id", job.ID))
	}
	if uerr := q.store.UpdateJob(job); uerr != nil {
		logger.Error("failed to update job completion", slog.String("error", uerr.Error()))
	}
}
