package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/scry-studio/internal/metrics"
)

var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// TaskQueue is a bounded buffer between job scheduling and the worker pool.
// Enqueue never blocks: a full queue rejects the task so the scheduler can
// fail the job instead of stalling the request that created it.
type TaskQueue struct {
	mu     sync.Mutex
	tasks  chan Task
	logger *slog.Logger
	closed bool
}

var (
	_ TaskQueueReader = (*TaskQueue)(nil)
	_ TaskQueueWriter = (*TaskQueue)(nil)
)

// NewTaskQueue creates a queue holding at most size tasks.
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	return &TaskQueue{
		tasks:  make(chan Task, size),
		logger: logger.With("component", "task_queue"),
	}
}

// Enqueue implements TaskQueueWriter.
func (q *TaskQueue) Enqueue(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		metrics.IncTaskQueueRejection("closed")
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
	default:
		metrics.IncTaskQueueRejection("full")
		q.logger.Warn("task rejected, queue full", "task_id", task.ID(), "task_type", task.Type())
		return fmt.Errorf("%w: capacity %d", ErrQueueFull, cap(q.tasks))
	}

	metrics.SetTaskQueueDepth(len(q.tasks))
	q.logger.Debug("task enqueued",
		"task_id", task.ID(),
		"task_type", task.Type(),
		"depth", len(q.tasks))
	return nil
}

// Close stops accepting tasks. Workers drain what is already buffered.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
	q.logger.Info("task queue closed", "pending", len(q.tasks))
}

// Len returns the number of buffered tasks.
func (q *TaskQueue) Len() int {
	return len(q.tasks)
}

// GetChannel implements TaskQueueReader.
func (q *TaskQueue) GetChannel() <-chan Task {
	return q.tasks
}
