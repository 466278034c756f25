package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrNilEvent is returned when EmitEvent is called without an event.
var ErrNilEvent = errors.New("nil job change event")

// InMemoryEventEmitter fans job changes out to in-process handlers: the
// generation scheduler and, when realtime runs over Redis, the bus
// publisher. Delivery is synchronous, so a change is scheduled and published
// before the write that produced it returns to the API caller.
type InMemoryEventEmitter struct {
	mu       sync.RWMutex
	handlers []EventHandler
	logger   *slog.Logger
}

// NewInMemoryEventEmitter creates an emitter with no handlers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{logger: logger.With("component", "job_change_emitter")}
}

// RegisterHandler subscribes handler to every later job change.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	e.handlers = append(e.handlers, handler)
	n := len(e.handlers)
	e.mu.Unlock()
	e.logger.Debug("job change handler registered", "handler_count", n)
}

// EmitEvent hands the change to every handler in registration order. Every
// handler sees the change even when an earlier one fails; the failures are
// joined into the returned error.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *JobChangeEvent) error {
	if event == nil {
		return ErrNilEvent
	}

	e.mu.RLock()
	handlers := append([]EventHandler(nil), e.handlers...)
	e.mu.RUnlock()

	log := e.logger.With("event_id", event.ID, "change", event.Type, "parent_id", event.ParentID())
	if job := event.Job(); job != nil {
		log = log.With("job_id", job.ID, "status", job.Status)
	}
	if len(handlers) == 0 {
		log.Debug("job change has no handlers")
		return nil
	}

	var errs []error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			log.Error("job change handler failed", "error", err, "handler_index", i)
			errs = append(errs, err)
		}
	}
	log.Debug("job change delivered", "handler_count", len(handlers), "failures", len(errs))
	return errors.Join(errs...)
}
