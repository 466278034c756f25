package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// stuckReason is stored on jobs failed by the stuck-job monitor.
const stuckReason = "generation timed out"

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckJobAge defines how long a job can be generating before it is
	// failed
	StuckJobAge time.Duration

	// StuckCheckInterval defines how often to check for stuck jobs
	// If zero, defaults to 5 minutes
	StuckCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:        2,
		QueueSize:          100,
		StuckJobAge:        30 * time.Minute,
		StuckCheckInterval: 5 * time.Minute,
	}
}

// TaskFactory builds the task for a generating job.
type TaskFactory func(job domain.Job) (Task, error)

// NewGenerationTaskFactory returns a factory producing GenerationTasks.
func NewGenerationTaskFactory(lifecycle JobLifecycle, generators Generators, logger *slog.Logger) TaskFactory {
	return func(job domain.Job) (Task, error) {
		return NewGenerationTask(job, lifecycle, generators, logger)
	}
}

// TaskRunner manages background generation. Jobs reach it through Submit
// and through recovery of rows still generating at startup.
type TaskRunner struct {
	lifecycle JobLifecycle
	factory   TaskFactory
	queue     *TaskQueue
	pool      *WorkerPool
	config    TaskRunnerConfig
	logger    *slog.Logger

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(
	lifecycle JobLifecycle,
	factory TaskFactory,
	config TaskRunnerConfig,
	logger *slog.Logger,
) *TaskRunner {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_runner")

	// Apply default check interval if not specified
	if config.StuckCheckInterval <= 0 {
		config.StuckCheckInterval = 5 * time.Minute
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultTaskRunnerConfig().QueueSize
	}

	queue := NewTaskQueue(config.QueueSize, logger)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger)
	ctx, cancel := context.WithCancel(context.Background())

	r := &TaskRunner{
		lifecycle: lifecycle,
		factory:   factory,
		queue:     queue,
		pool:      pool,
		config:    config,
		logger:    logger,
		inFlight:  make(map[uuid.UUID]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	pool.SetDoneHandler(func(task Task) { r.release(task.ID()) })
	return r
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.pool.SetErrorHandler(handler)
}

// Submit queues generation for a job. A job already queued or running is
// ignored.
func (r *TaskRunner) Submit(job domain.Job) error {
	if job.Status != domain.JobStatusGenerating {
		return nil
	}

	r.mu.Lock()
	if _, ok := r.inFlight[job.ID]; ok {
		r.mu.Unlock()
		r.logger.Debug("job already scheduled", "job_id", job.ID)
		return nil
	}
	r.inFlight[job.ID] = struct{}{}
	r.mu.Unlock()

	task, err := r.factory(job)
	if err == nil {
		err = r.queue.Enqueue(task)
	}
	if err != nil {
		r.release(job.ID)
		return fmt.Errorf("failed to schedule job %s: %w", job.ID, err)
	}
	return nil
}

func (r *TaskRunner) release(id uuid.UUID) {
	r.mu.Lock()
	delete(r.inFlight, id)
	r.mu.Unlock()
}

// Start recovers generating jobs, then starts the workers and the stuck-job
// monitor.
func (r *TaskRunner) Start(ctx context.Context) error {
	if err := r.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	r.pool.Start()

	r.wg.Add(1)
	go r.stuckJobMonitor()

	return nil
}

// Stop gracefully shuts down the task runner. Jobs interrupted here stay
// generating and are recovered by the next Start.
func (r *TaskRunner) Stop() {
	r.cancel()
	r.wg.Wait()
	r.pool.Stop()
	r.queue.Close()
}

// Recover requeues every job left generating by a previous run.
func (r *TaskRunner) Recover(ctx context.Context) error {
	jobs, err := r.lifecycle.ListGenerating(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list generating jobs: %w", err)
	}

	r.logger.Info("recovering unfinished jobs", "generating_count", len(jobs))

	for _, job := range jobs {
		if err := r.Submit(job); err != nil {
			r.logger.Error("failed to requeue job",
				"job_id", job.ID,
				"error", err)
		}
	}
	return nil
}

func (r *TaskRunner) stuckJobMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.failStuckJobs(r.ctx)
		}
	}
}

// failStuckJobs fails jobs generating for longer than StuckJobAge.
func (r *TaskRunner) failStuckJobs(ctx context.Context) {
	if r.config.StuckJobAge <= 0 {
		return
	}
	stuck, err := r.lifecycle.ListGenerating(ctx, r.config.StuckJobAge)
	if err != nil {
		r.logger.Error("failed to list stuck jobs", "error", err)
		return
	}

	for _, job := range stuck {
		if _, err := r.lifecycle.Fail(ctx, job.ID, stuckReason); err != nil {
			r.logger.Warn("failed to fail stuck job", "job_id", job.ID, "error", err)
			continue
		}
		r.logger.Warn("failed stuck job",
			"job_id", job.ID,
			"kind", job.Kind,
			"age", time.Since(job.CreatedAt).String())
	}
}
