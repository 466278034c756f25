package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventHandler records the events it receives.
type MockEventHandler struct {
	HandledCount int
	LastEvent    *JobChangeEvent
	HandlerError error
}

func (m *MockEventHandler) HandleEvent(ctx context.Context, event *JobChangeEvent) error {
	m.HandledCount++
	m.LastEvent = event
	return m.HandlerError
}

func newTestJob(t *testing.T) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(uuid.New(), uuid.New(), domain.JobKindQuiz, time.Now())
	require.NoError(t, err)
	return job
}

func TestInMemoryEventEmitter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		event := NewJobChangeEvent(ChangeInsert, nil, newTestJob(t))

		assert.NoError(t, emitter.EmitEvent(context.Background(), event))
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event := NewJobChangeEvent(ChangeInsert, nil, newTestJob(t))
		require.NoError(t, emitter.EmitEvent(context.Background(), event))

		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Same(t, event, handler1.LastEvent)
	})

	t.Run("failing handler does not stop delivery", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		failing := &MockEventHandler{HandlerError: errors.New("handler error")}
		success := &MockEventHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(success)

		err := emitter.EmitEvent(context.Background(), NewJobChangeEvent(ChangeDelete, newTestJob(t), nil))
		assert.EqualError(t, err, "handler error")
		assert.Equal(t, 1, success.HandledCount)
	})

	t.Run("every handler failure is reported", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		scheduleErr := errors.New("runner stopped")
		publishErr := errors.New("redis unavailable")
		emitter.RegisterHandler(&MockEventHandler{HandlerError: scheduleErr})
		emitter.RegisterHandler(&MockEventHandler{HandlerError: publishErr})

		err := emitter.EmitEvent(context.Background(), NewJobChangeEvent(ChangeInsert, nil, newTestJob(t)))
		assert.ErrorIs(t, err, scheduleErr)
		assert.ErrorIs(t, err, publishErr)
	})

	t.Run("nil event is rejected", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		handler := &MockEventHandler{}
		emitter.RegisterHandler(handler)

		assert.ErrorIs(t, emitter.EmitEvent(context.Background(), nil), ErrNilEvent)
		assert.Zero(t, handler.HandledCount)
	})
}

func TestNewJobChangeEvent(t *testing.T) {
	old := newTestJob(t)
	updated := old.Clone()
	require.NoError(t, updated.Transition(domain.JobStatusFailed, time.Now()))

	event := NewJobChangeEvent(ChangeUpdate, old, &updated)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, domain.JobStatusFailed, event.Job().Status)
	assert.Equal(t, old.ParentID, event.ParentID())

	updated.Title = "mutated after emit"
	assert.Empty(t, event.New.Title, "event holds its own snapshot")

	deleted := NewJobChangeEvent(ChangeDelete, old, nil)
	assert.Equal(t, old.ID, deleted.Job().ID)
	assert.Equal(t, uuid.Nil, (&JobChangeEvent{}).ParentID())
}
