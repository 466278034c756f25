package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// Kind classifies an inbox notification.
type Kind string

const (
	KindJobCompleted Kind = "job_completed"
	KindJobFailed    Kind = "job_failed"
	KindError        Kind = "error"
)

// Notification is a dismissible message shown to the user.
type Notification struct {
	ID        uuid.UUID
	Kind      Kind
	JobID     uuid.UUID
	Title     string
	Message   string
	CreatedAt time.Time
}

// Inbox is an in-memory Notifier holding undismissed notifications.
type Inbox struct {
	mu        sync.Mutex
	items     []Notification
	listeners map[int]func([]Notification)
	nextID    int
	now       func() time.Time
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{listeners: make(map[int]func([]Notification)), now: time.Now}
}

func (b *Inbox) JobCompleted(_ context.Context, job domain.Job) error {
	b.push(Notification{
		Kind:    KindJobCompleted,
		JobID:   job.ID,
		Title:   DisplayTitle(job) + " ready",
		Message: fmt.Sprintf("Your %s has finished generating.", job.Kind),
	})
	return nil
}

func (b *Inbox) JobFailed(_ context.Context, job domain.Job) error {
	msg := "Generation failed."
	if job.Error != "" {
		msg = "Generation failed: " + job.Error
	}
	b.push(Notification{
		Kind:    KindJobFailed,
		JobID:   job.ID,
		Title:   DisplayTitle(job) + " failed",
		Message: msg,
	})
	return nil
}

func (b *Inbox) Error(_ context.Context, message string, err error) error {
	n := Notification{Kind: KindError, Title: message}
	if err != nil {
		n.Message = err.Error()
	}
	b.push(n)
	return nil
}

// List returns the undismissed notifications, oldest first.
func (b *Inbox) List() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notification(nil), b.items...)
}

// Dismiss removes a notification. It reports whether it was present.
func (b *Inbox) Dismiss(id uuid.UUID) bool {
	b.mu.Lock()
	found := false
	for i, n := range b.items {
		if n.ID == id {
			b.items = append(b.items[:i], b.items[i+1:]...)
			found = true
			break
		}
	}
	snapshot, listeners := b.snapshotLocked()
	b.mu.Unlock()

	if found {
		for _, fn := range listeners {
			fn(snapshot)
		}
	}
	return found
}

// Subscribe registers fn to receive the notification list after every change.
func (b *Inbox) Subscribe(fn func([]Notification)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

func (b *Inbox) push(n Notification) {
	b.mu.Lock()
	n.ID = uuid.New()
	n.CreatedAt = b.now().UTC()
	b.items = append(b.items, n)
	snapshot, listeners := b.snapshotLocked()
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (b *Inbox) snapshotLocked() ([]Notification, []func([]Notification)) {
	snapshot := append([]Notification(nil), b.items...)
	listeners := make([]func([]Notification), 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	return snapshot, listeners
}
