package task

import (
	"context"

	"github.com/google/uuid"
)

// Task types, one per job kind.
const (
	TaskTypeQuizGeneration  = "quiz_generation"
	TaskTypeAudioGeneration = "audio_generation"
)

// Task is one unit of background work. For generation tasks ID is the job's
// ID, so a job is never queued twice.
// Version: 1.0
type Task interface {
	ID() uuid.UUID
	Type() string
	// Execute runs the work. It returns a context error when interrupted by
	// shutdown, leaving the job for recovery on the next start.
	Execute(ctx context.Context) error
}

// TaskQueueReader is the consuming side of a queue, used by the worker pool.
// Version: 1.0
type TaskQueueReader interface {
	// GetChannel returns a read-only channel for consuming tasks
	GetChannel() <-chan Task
}

// TaskQueueWriter is the producing side of a queue, used by the runner.
// Version: 1.0
type TaskQueueWriter interface {
	// Enqueue adds a task to the queue for processing
	// Returns an error if the queue is full or closed
	Enqueue(task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}
