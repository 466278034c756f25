package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/clock"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/jobs"
	"github.com/phrazzld/scry-studio/internal/metrics"
)

// DefaultCheckInterval is how often a guard re-evaluates expiry.
const DefaultCheckInterval = 5 * time.Minute

// Refresher reissues the access URL of a job's existing audio object.
type Refresher interface {
	RefreshAudio(ctx context.Context, jobID uuid.UUID) (domain.AudioArtifact, error)
}

// Config controls a Guard's schedule.
type Config struct {
	CheckInterval time.Duration
	SoonWindow    time.Duration
}

type refreshCall struct {
	done     chan struct{}
	artifact domain.AudioArtifact
	err      error
}

// Guard watches the audio URL of a single job.
type Guard struct {
	jobID     uuid.UUID
	registry  *jobs.Registry
	refresher Refresher
	clock     clock.Clock
	logger    *slog.Logger
	cfg       Config

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	lastErr   error
	call      *refreshCall
	timer     clock.Timer
	gen       uint64
	started   bool
	stopped   bool
	hookID    int
	onRefresh map[int]func(domain.AudioArtifact)
	onFailure map[int]func(error)
}

// NewGuard creates a guard for jobID. It does nothing until Start.
func NewGuard(
	jobID uuid.UUID,
	registry *jobs.Registry,
	refresher Refresher,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Guard {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Guard{
		jobID:     jobID,
		registry:  registry,
		refresher: refresher,
		clock:     clk,
		logger:    logger.With("component", "expiry_guard", "job_id", jobID),
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateFresh,
		onRefresh: make(map[int]func(domain.AudioArtifact)),
		onFailure: make(map[int]func(error)),
	}
}

// JobID returns the guarded job.
func (g *Guard) JobID() uuid.UUID { return g.jobID }

// Start runs a check immediately and then every CheckInterval until Stop.
func (g *Guard) Start() {
	g.mu.Lock()
	if g.started || g.stopped {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.mu.Unlock()

	g.tick(g.currentGen())
}

// Stop cancels the schedule and any in-flight refresh. Timer callbacks and
// refresh results arriving afterwards are discarded.
func (g *Guard) Stop() {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	g.stopped = true
	g.gen++
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.onRefresh = make(map[int]func(domain.AudioArtifact))
	g.onFailure = make(map[int]func(error))
	g.mu.Unlock()

	g.cancel()
	g.logger.Debug("expiry guard stopped")
}

// State returns the state as of the last check or refresh.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// LastError returns the error of the last failed refresh, if any.
func (g *Guard) LastError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// OnRefreshed registers fn to run after every successful refresh.
func (g *Guard) OnRefreshed(fn func(domain.AudioArtifact)) (unsubscribe func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.hookID
	g.hookID++
	g.onRefresh[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.onRefresh, id)
	}
}

// OnRefreshFailed registers fn to run after every failed refresh.
func (g *Guard) OnRefreshFailed(fn func(error)) (unsubscribe func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.hookID
	g.hookID++
	g.onFailure[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.onFailure, id)
	}
}

// Check evaluates the job's URL and reports whether it has expired. An
// expired URL starts a refresh unless one is already in flight.
func (g *Guard) Check() bool {
	job, ok := g.registry.Get(g.jobID)
	if !ok || job.Audio == nil {
		g.logger.Debug("no audio to check")
		return false
	}

	now := g.clock.Now()
	state := Evaluate(job.Audio, now, g.cfg.SoonWindow)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return state == StateExpired
	}
	if g.call != nil {
		return state == StateExpired
	}

	switch state {
	case StateExpired:
		g.logger.Info("audio url expired", "expires_at", job.Audio.ExpiresAt)
		g.startRefreshLocked()
		return true
	case StateExpiringSoon:
		if g.state != StateRefreshFailed {
			g.state = state
		}
	default:
		g.state = state
		g.lastErr = nil
	}
	return false
}

// Trigger starts a refresh unless one is in flight, without waiting for it.
func (g *Guard) Trigger() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	g.startRefreshLocked()
}

// Refresh reissues the URL and waits for the result. It joins a refresh
// already in flight rather than starting another.
func (g *Guard) Refresh(ctx context.Context) (domain.AudioArtifact, error) {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return domain.AudioArtifact{}, ErrGuardStopped
	}
	call := g.startRefreshLocked()
	g.mu.Unlock()

	select {
	case <-call.done:
		return call.artifact, call.err
	case <-ctx.Done():
		return domain.AudioArtifact{}, ctx.Err()
	}
}

// Wait blocks until no refresh is in flight.
func (g *Guard) Wait() {
	g.mu.Lock()
	call := g.call
	g.mu.Unlock()
	if call != nil {
		<-call.done
	}
}

func (g *Guard) startRefreshLocked() *refreshCall {
	if g.call != nil {
		return g.call
	}
	call := &refreshCall{done: make(chan struct{})}
	g.call = call
	g.state = StateRefreshing
	go g.runRefresh(call, g.gen)
	return call
}

func (g *Guard) runRefresh(call *refreshCall, gen uint64) {
	defer close(call.done)

	artifact, err := g.refresher.RefreshAudio(g.ctx, g.jobID)
	if err != nil {
		call.err = fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	} else {
		call.artifact = artifact
	}

	g.mu.Lock()
	g.call = nil
	if gen != g.gen {
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	if call.err == nil {
		call.err = g.apply(artifact)
	}

	g.mu.Lock()
	if gen != g.gen {
		g.mu.Unlock()
		return
	}
	var onRefresh []func(domain.AudioArtifact)
	var onFailure []func(error)
	if call.err != nil {
		g.state = StateRefreshFailed
		g.lastErr = call.err
		for _, fn := range g.onFailure {
			onFailure = append(onFailure, fn)
		}
	} else {
		g.state = Evaluate(&artifact, g.clock.Now(), g.cfg.SoonWindow)
		g.lastErr = nil
		for _, fn := range g.onRefresh {
			onRefresh = append(onRefresh, fn)
		}
	}
	g.mu.Unlock()

	if call.err != nil {
		metrics.IncArtifactRefresh("failure")
		g.logger.Error("audio url refresh failed; keeping stale url", "error", call.err)
		for _, fn := range onFailure {
			fn(call.err)
		}
		return
	}

	metrics.IncArtifactRefresh("success")
	g.logger.Info("audio url refreshed", "expires_at", artifact.ExpiresAt)
	for _, fn := range onRefresh {
		fn(artifact)
	}
}

// apply writes the reissued URL to the registry. The object must not change.
func (g *Guard) apply(artifact domain.AudioArtifact) error {
	job, ok := g.registry.Get(g.jobID)
	if !ok || job.Audio == nil {
		return ErrNoAudio
	}
	if artifact.ObjectPath == "" {
		artifact.ObjectPath = job.Audio.ObjectPath
	}
	if artifact.ObjectPath != job.Audio.ObjectPath {
		g.logger.Warn("refresh returned a different object",
			"object_path", job.Audio.ObjectPath,
			"refreshed_object_path", artifact.ObjectPath)
	}
	return g.registry.Patch(g.jobID, domain.JobPatch{Audio: &artifact})
}

func (g *Guard) tick(gen uint64) {
	g.mu.Lock()
	if gen != g.gen || g.stopped {
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	g.Check()

	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen || g.stopped {
		return
	}
	g.timer = g.clock.AfterFunc(g.cfg.CheckInterval, func() { g.tick(gen) })
}

func (g *Guard) currentGen() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}
