package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// ChangeType names what happened to a job row.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// JobChangeEvent describes one write to a job. Old is nil for inserts, New
// is nil for deletes.
type JobChangeEvent struct {
	ID        uuid.UUID   `json:"id"`
	Type      ChangeType  `json:"type"`
	Old       *domain.Job `json:"old,omitempty"`
	New       *domain.Job `json:"new,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewJobChangeEvent creates an event; the job snapshots are cloned so later
// mutation by the caller cannot leak into handlers.
func NewJobChangeEvent(changeType ChangeType, old, new *domain.Job) *JobChangeEvent {
	return &JobChangeEvent{
		ID:        uuid.New(),
		Type:      changeType,
		Old:       cloneJob(old),
		New:       cloneJob(new),
		CreatedAt: time.Now().UTC(),
	}
}

// Job returns the most recent snapshot carried by the event.
func (e *JobChangeEvent) Job() *domain.Job {
	if e.New != nil {
		return e.New
	}
	return e.Old
}

// ParentID returns the owning parent resource of the changed job.
func (e *JobChangeEvent) ParentID() uuid.UUID {
	if j := e.Job(); j != nil {
		return j.ParentID
	}
	return uuid.Nil
}

func cloneJob(j *domain.Job) *domain.Job {
	if j == nil {
		return nil
	}
	c := j.Clone()
	return &c
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *JobChangeEvent) error
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *JobChangeEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *JobChangeEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *JobChangeEvent) error {
	return f(ctx, event)
}
