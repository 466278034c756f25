package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/jobs"
	"github.com/phrazzld/scry-studio/internal/metrics"
	"github.com/phrazzld/scry-studio/internal/notify"
	"github.com/sethvargo/go-retry"
)

// Default reconnect backoff bounds.
const (
	DefaultMinBackoff = 500 * time.Millisecond
	DefaultMaxBackoff = 30 * time.Second
)

// Channel synchronizes one registry with the backend.
type Channel struct {
	registry  *jobs.Registry
	transport Transport
	fetcher   Fetcher
	notifier  notify.Notifier
	logger    *slog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	mu       sync.Mutex
	notified map[uuid.UUID]struct{}
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures a Channel.
type Option func(*Channel)

// WithBackoff sets the reconnect backoff bounds.
func WithBackoff(min, max time.Duration) Option {
	return func(c *Channel) {
		c.minBackoff = min
		c.maxBackoff = max
	}
}

// New creates a channel for registry's parent resource.
func New(
	registry *jobs.Registry,
	transport Transport,
	fetcher Fetcher,
	notifier notify.Notifier,
	logger *slog.Logger,
	opts ...Option,
) *Channel {
	c := &Channel{
		registry:   registry,
		transport:  transport,
		fetcher:    fetcher,
		notifier:   notifier,
		logger:     logger.With("component", "realtime_channel", "parent_id", registry.ParentID()),
		minBackoff: DefaultMinBackoff,
		maxBackoff: DefaultMaxBackoff,
		notified:   make(map[uuid.UUID]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens the subscription, loads the current listing, and keeps the
// subscription alive until Stop or ctx is cancelled.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	sub, err := c.transport.Subscribe(ctx, c.registry.ParentID(), c.HandleEvent)
	if err != nil {
		cancel()
		close(c.done)
		return fmt.Errorf("failed to subscribe to job changes: %w", err)
	}
	c.logger.InfoContext(ctx, "subscribed to job changes")

	// Subscribing first means nothing committed after the listing is missed;
	// rows pushed while it is in flight survive the reconcile.
	if err := c.Resync(ctx); err != nil {
		c.logger.ErrorContext(ctx, "initial job listing failed", "error", err)
	}

	go c.supervise(ctx, sub)
	return nil
}

// Stop closes the subscription. Events delivered afterwards are ignored.
func (c *Channel) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	c.logger.Debug("realtime channel stopped")
}

// Resync replaces the registry's view with a full listing.
func (c *Channel) Resync(ctx context.Context) error {
	since := c.registry.Version()
	rows, err := c.fetcher.ListJobs(ctx, c.registry.ParentID())
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	if c.isStopped() {
		return nil
	}
	c.registry.Reconcile(rows, since)
	c.logger.DebugContext(ctx, "resynchronized jobs", "count", len(rows))
	return nil
}

func (c *Channel) supervise(ctx context.Context, sub Subscription) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			_ = sub.Close()
			return
		case <-sub.Done():
		}

		c.logger.WarnContext(ctx, "realtime subscription dropped", "error", sub.Err())

		next, err := c.reconnect(ctx)
		if err != nil {
			// Only cancellation ends the retry loop.
			return
		}
		sub = next
		metrics.IncReconnect()
		c.logger.InfoContext(ctx, "realtime subscription restored")

		if err := c.Resync(ctx); err != nil {
			c.logger.ErrorContext(ctx, "resync after reconnect failed", "error", err)
		}
	}
}

func (c *Channel) reconnect(ctx context.Context) (Subscription, error) {
	b := retry.NewExponential(c.minBackoff)
	b = retry.WithCappedDuration(c.maxBackoff, b)
	b = retry.WithJitterPercent(10, b)

	var sub Subscription
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		s, err := c.transport.Subscribe(ctx, c.registry.ParentID(), c.HandleEvent)
		if err != nil {
			c.logger.DebugContext(ctx, "reconnect attempt failed", "error", err)
			return retry.RetryableError(err)
		}
		sub = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// HandleEvent merges one pushed event into the registry. It is safe to call
// with replayed or duplicate events.
func (c *Channel) HandleEvent(ctx context.Context, ev Event) {
	if c.isStopped() {
		return
	}
	metrics.IncRealtimeEvent(string(ev.Type))

	switch ev.Type {
	case EventDelete:
		id := ev.JobID()
		if id == uuid.Nil {
			c.logger.WarnContext(ctx, "delete event without job id")
			return
		}
		c.registry.Remove(id)

	case EventInsert, EventUpdate:
		if ev.New == nil {
			c.logger.WarnContext(ctx, "event without new row", "event_type", ev.Type)
			return
		}
		job := c.completePayload(ctx, *ev.New)
		if !c.registry.Upsert(job) {
			return
		}
		if ev.Type == EventUpdate && ev.Old != nil && ev.Old.Status == domain.JobStatusGenerating {
			c.notifyTransition(ctx, job.ID, job.Status)
		}

	default:
		c.logger.WarnContext(ctx, "unknown event type", "event_type", ev.Type)
	}
}

// completePayload fetches the authoritative row when a completed quiz arrives
// without its questions and the registry does not have them either.
func (c *Channel) completePayload(ctx context.Context, job domain.Job) domain.Job {
	if job.Kind != domain.JobKindQuiz || job.Status != domain.JobStatusCompleted || len(job.Questions) > 0 {
		return job
	}
	if existing, ok := c.registry.Get(job.ID); ok && len(existing.Questions) > 0 {
		return job
	}

	full, err := c.fetcher.GetJob(ctx, job.ID)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to fetch completed job payload", "job_id", job.ID, "error", err)
		return job
	}
	if full.ID != job.ID || !domain.CanTransition(job.Status, full.Status) {
		return job
	}
	return full
}

func (c *Channel) notifyTransition(ctx context.Context, id uuid.UUID, status domain.JobStatus) {
	if status != domain.JobStatusCompleted && status != domain.JobStatusFailed {
		return
	}

	c.mu.Lock()
	if _, done := c.notified[id]; done || c.stopped {
		c.mu.Unlock()
		return
	}
	c.notified[id] = struct{}{}
	c.mu.Unlock()

	job, ok := c.registry.Get(id)
	if !ok {
		return
	}

	metrics.IncJobNotification(string(job.Kind), string(status))
	var err error
	if status == domain.JobStatusCompleted {
		c.logger.InfoContext(ctx, "job completed", "job_id", id, "kind", job.Kind)
		err = c.notifier.JobCompleted(ctx, job)
	} else {
		c.logger.WarnContext(ctx, "job failed", "job_id", id, "kind", job.Kind, "reason", job.Error)
		err = c.notifier.JobFailed(ctx, job)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "failed to deliver notification", "job_id", id, "error", err)
	}
}

func (c *Channel) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
