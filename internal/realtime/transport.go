package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// EventType names a row change.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one pushed row change. Old is set for updates and deletes, New for
// inserts and updates.
type Event struct {
	Type EventType   `json:"eventType"`
	Old  *domain.Job `json:"old,omitempty"`
	New  *domain.Job `json:"new,omitempty"`
}

// JobID returns the id of the changed job.
func (e Event) JobID() uuid.UUID {
	if e.New != nil {
		return e.New.ID
	}
	if e.Old != nil {
		return e.Old.ID
	}
	return uuid.Nil
}

// Handler receives events in delivery order.
type Handler func(ctx context.Context, ev Event)

// Transport opens push subscriptions for a parent resource's jobs.
type Transport interface {
	// Subscribe starts delivering events for parentID to handler. It returns
	// once the subscription is live.
	Subscribe(ctx context.Context, parentID uuid.UUID, handler Handler) (Subscription, error)
}

// Subscription is a live event stream.
type Subscription interface {
	// Done is closed when the stream ends, either by Close or by failure.
	Done() <-chan struct{}
	// Err reports why the stream ended; nil after Close.
	Err() error
	// Close ends the stream. It is safe to call more than once.
	Close() error
}

// Fetcher reads authoritative job rows.
type Fetcher interface {
	ListJobs(ctx context.Context, parentID uuid.UUID) ([]domain.Job, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (domain.Job, error)
}

// Stream is a Subscription implementation for transports that run a receive
// loop in a goroutine. The loop calls Finish when it exits.
type Stream struct {
	cancel context.CancelFunc

	once   sync.Once
	done   chan struct{}
	mu     sync.Mutex
	err    error
	closed bool
}

// NewStream returns a stream whose Close calls cancel and waits for Finish.
func NewStream(cancel context.CancelFunc) *Stream {
	return &Stream{cancel: cancel, done: make(chan struct{})}
}

// Finish marks the stream ended. err is ignored if Close was called first.
func (s *Stream) Finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		if !s.closed {
			s.err = err
		}
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *Stream) Done() <-chan struct{} { return s.done }

func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	<-s.done
	return nil
}
