package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/clock"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/jobs"
	"github.com/phrazzld/scry-studio/internal/metrics"
)

// Defaults for automatic recovery.
const (
	DefaultMaxAutoRetries = 2
	DefaultRetryBaseDelay = time.Second
)

// CredentialRefresher reissues the artifact's access URL. The artifact
// guard implements it.
type CredentialRefresher interface {
	// Trigger starts a refresh unless one is already running.
	Trigger()
	OnRefreshed(fn func(domain.AudioArtifact)) (unsubscribe func())
	OnRefreshFailed(fn func(error)) (unsubscribe func())
}

// ArtifactRemover deletes the stored audio object and the job's audio fields
// on the backend.
type ArtifactRemover interface {
	DeleteAudio(ctx context.Context, jobID uuid.UUID) error
}

// Downloader saves the artifact behind url to dest.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// Config controls automatic recovery.
type Config struct {
	MaxAutoRetries int
	RetryBaseDelay time.Duration
}

// Deps are the collaborators of a Player. Remover and Downloader may be nil
// when the corresponding controls are not offered.
type Deps struct {
	Registry   *jobs.Registry
	Media      Media
	Refresher  CredentialRefresher
	Remover    ArtifactRemover
	Downloader Downloader
	Clock      clock.Clock
	Logger     *slog.Logger
}

// Player plays the audio artifact of one job.
type Player struct {
	jobID uuid.UUID
	deps  Deps
	cfg   Config
	log   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	state           State
	attempts        int
	wantPlaying     bool
	resumeAt        time.Duration
	awaitingRefresh bool
	reissued        bool
	lastErr         error
	retryTimer      clock.Timer
	gen             uint64
	closed          bool
	listenerID      int
	listeners       map[int]func(State)
	unsubscribe     []func()
}

// New creates a player for jobID. The player subscribes to the refresher and
// must be closed when no longer needed.
func New(jobID uuid.UUID, deps Deps, cfg Config) *Player {
	if cfg.MaxAutoRetries < 0 {
		cfg.MaxAutoRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		jobID:     jobID,
		deps:      deps,
		cfg:       cfg,
		log:       deps.Logger.With("component", "audio_player", "job_id", jobID),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
		listeners: make(map[int]func(State)),
	}
	if deps.Refresher != nil {
		p.unsubscribe = append(p.unsubscribe,
			deps.Refresher.OnRefreshed(p.onRefreshed),
			deps.Refresher.OnRefreshFailed(p.onRefreshFailed))
	}
	return p
}

// State returns the current state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Attempts returns how many automatic retries the current load has used.
func (p *Player) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Err returns the error behind the errored or terminal state.
func (p *Player) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Subscribe registers fn for every state change.
func (p *Player) Subscribe(fn func(State)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.listenerID
	p.listenerID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Load loads the job's current audio URL.
func (p *Player) Load() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.attempts = 0
	p.reissued = false
	p.mu.Unlock()
	return p.reload()
}

// Play starts or resumes playback, loading first if needed.
func (p *Player) Play() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.wantPlaying = true
	switch p.state {
	case StatePlaying:
		p.mu.Unlock()
		return nil
	case StateReady:
		p.mu.Unlock()
		return p.startPlaying()
	case StateIdle:
		p.mu.Unlock()
		return p.Load()
	case StateTerminal:
		err := p.lastErr
		p.mu.Unlock()
		if err == nil {
			err = ErrTerminal
		}
		return err
	default:
		// Loading or recovering; playback starts once media is ready.
		p.mu.Unlock()
		return nil
	}
}

// Pause pauses playback.
func (p *Player) Pause() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.wantPlaying = false
	if p.state != StatePlaying {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.deps.Media.Pause(); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}
	p.setState(StateReady, nil)
	return nil
}

// Seek moves the playback position.
func (p *Player) Seek(position time.Duration) error {
	if err := p.requireLoaded(); err != nil {
		return err
	}
	if position < 0 {
		position = 0
	}
	return p.deps.Media.Seek(position)
}

// SetVolume sets the volume, clamped to [0, 1].
func (p *Player) SetVolume(volume float64) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	return p.deps.Media.SetVolume(volume)
}

// Restart seeks to the beginning and plays.
func (p *Player) Restart() error {
	if err := p.requireLoaded(); err != nil {
		p.mu.Lock()
		p.resumeAt = 0
		p.mu.Unlock()
		if errors.Is(err, ErrNotLoaded) {
			return p.Play()
		}
		return err
	}
	if err := p.deps.Media.Seek(0); err != nil {
		return fmt.Errorf("failed to restart: %w", err)
	}
	return p.Play()
}

// Retry is the user-initiated retry. It resets the retry budget and reloads,
// including from the terminal state.
func (p *Player) Retry() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.stopRetryLocked()
	p.attempts = 0
	p.reissued = false
	p.mu.Unlock()

	p.log.Info("manual playback retry")
	return p.reload()
}

// Download saves the artifact into dir and returns the file path.
func (p *Player) Download(ctx context.Context, dir string) (string, error) {
	if p.deps.Downloader == nil {
		return "", fmt.Errorf("download not supported")
	}
	job, ok := p.deps.Registry.Get(p.jobID)
	if !ok || job.Audio == nil {
		return "", ErrNoAudio
	}
	if job.Audio.Expired(p.deps.Clock.Now()) {
		if p.deps.Refresher != nil {
			p.deps.Refresher.Trigger()
		}
		return "", ErrCredentialExpired
	}

	dest := filepath.Join(dir, FileName(job))
	if err := p.deps.Downloader.Download(ctx, job.Audio.URL, dest); err != nil {
		if Classify(err, job.Audio, p.deps.Clock.Now()) == FailureCredentialExpired && p.deps.Refresher != nil {
			p.deps.Refresher.Trigger()
		}
		return "", fmt.Errorf("failed to download audio: %w", err)
	}
	p.log.InfoContext(ctx, "audio downloaded", "path", dest)
	return dest, nil
}

// Delete removes the stored audio and the job's audio fields, then returns
// the player to idle.
func (p *Player) Delete(ctx context.Context) error {
	if p.deps.Remover == nil {
		return fmt.Errorf("delete not supported")
	}
	if err := p.deps.Remover.DeleteAudio(ctx, p.jobID); err != nil {
		return fmt.Errorf("failed to delete audio: %w", err)
	}

	p.mu.Lock()
	p.gen++
	p.stopRetryLocked()
	p.wantPlaying = false
	p.awaitingRefresh = false
	p.reissued = false
	p.attempts = 0
	p.mu.Unlock()

	if err := p.deps.Registry.Patch(p.jobID, domain.JobPatch{ClearAudio: true}); err != nil {
		p.log.WarnContext(ctx, "failed to clear audio locally", "error", err)
	}
	_ = p.deps.Media.Pause()
	p.setState(StateIdle, nil)
	return nil
}

// Close stops any pending retry and detaches from the refresher. Callbacks
// arriving afterwards are ignored.
func (p *Player) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.gen++
	p.stopRetryLocked()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.listeners = make(map[int]func(State))
	p.mu.Unlock()

	p.cancel()
	for _, fn := range unsubscribe {
		fn()
	}
	_ = p.deps.Media.Pause()
}

// FileName is the local file name used for downloads.
func FileName(job domain.Job) string {
	ext := filepath.Ext(job.Audio.ObjectPath)
	if ext == "" {
		ext = ".mp3"
	}
	return job.ID.String() + ext
}

func (p *Player) reload() error {
	job, ok := p.deps.Registry.Get(p.jobID)
	if !ok || job.Audio == nil || job.Audio.URL == "" {
		p.setState(StateIdle, ErrNoAudio)
		return ErrNoAudio
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.gen++
	gen := p.gen
	p.stopRetryLocked()
	if p.state == StatePlaying || p.state == StateReady {
		p.resumeAt = p.deps.Media.Position()
	}
	p.mu.Unlock()
	p.setState(StateLoading, nil)

	err := p.deps.Media.Load(p.ctx, job.Audio.URL)

	p.mu.Lock()
	if gen != p.gen || p.closed {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err != nil {
		return p.fail(err, job)
	}

	p.mu.Lock()
	p.awaitingRefresh = false
	p.reissued = false
	resumeAt, wantPlaying := p.resumeAt, p.wantPlaying
	p.resumeAt = 0
	p.mu.Unlock()

	if resumeAt > 0 {
		if err := p.deps.Media.Seek(resumeAt); err != nil {
			p.log.Warn("failed to restore position", "error", err)
		}
	}
	p.setState(StateReady, nil)
	if wantPlaying {
		return p.startPlaying()
	}
	return nil
}

func (p *Player) startPlaying() error {
	if err := p.deps.Media.Play(); err != nil {
		job, _ := p.deps.Registry.Get(p.jobID)
		return p.fail(err, job)
	}
	p.setState(StatePlaying, nil)
	return nil
}

func (p *Player) fail(err error, job domain.Job) error {
	class := Classify(err, job.Audio, p.deps.Clock.Now())

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}

	// A reissued URL gets one chance. If the host rejects it too, the
	// rejection is not a lapsed credential and the retry budget applies.
	if class == FailureCredentialExpired && p.reissued {
		p.log.Warn("reissued audio url rejected", "error", err)
		class = FailureTransient
	}
	metrics.IncPlaybackFailure(string(class))

	if class == FailureCredentialExpired {
		p.awaitingRefresh = true
		p.mu.Unlock()

		p.log.Info("audio url rejected; waiting for refresh", "error", err)
		p.setState(StateErrored, err)
		if p.deps.Refresher != nil {
			p.deps.Refresher.Trigger()
		}
		return err
	}

	if p.attempts >= p.cfg.MaxAutoRetries {
		attempts := p.attempts
		p.mu.Unlock()

		p.log.Error("playback failed; giving up", "error", err, "attempts", attempts)
		p.setState(StateErrored, err)
		terminal := fmt.Errorf("%w: %w", ErrTerminal, err)
		p.setState(StateTerminal, terminal)
		return terminal
	}

	p.attempts++
	attempt := p.attempts
	delay := RetryDelay(attempt, p.cfg.RetryBaseDelay, job.CreatedAt)
	gen := p.gen
	p.retryTimer = p.deps.Clock.AfterFunc(delay, func() { p.autoRetry(gen) })
	p.mu.Unlock()

	p.log.Warn("playback failed; retrying", "error", err, "attempt", attempt, "delay", delay)
	p.setState(StateErrored, err)
	return err
}

func (p *Player) autoRetry(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.closed {
		p.mu.Unlock()
		return
	}
	p.retryTimer = nil
	p.mu.Unlock()

	_ = p.reload()
}

// HandleMediaError reports a failure raised by the media while playing, such
// as a rejected range request. It is recovered like a load failure.
func (p *Player) HandleMediaError(err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if p.state == StatePlaying || p.state == StateReady {
		p.resumeAt = p.deps.Media.Position()
	}
	p.gen++
	p.mu.Unlock()

	job, _ := p.deps.Registry.Get(p.jobID)
	_ = p.fail(err, job)
}

// onRefreshed loads the reissued URL. A player that is waiting on the
// refresh resets its retry budget and marks the load as reissued; a healthy
// player swaps URLs in place so later range requests carry a valid
// credential.
func (p *Player) onRefreshed(domain.AudioArtifact) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	switch {
	case p.awaitingRefresh:
		p.attempts = 0
		p.awaitingRefresh = false
		p.reissued = true
	case p.state == StatePlaying || p.state == StateReady:
	default:
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.log.Info("audio url refreshed; reloading")
	_ = p.reload()
}

func (p *Player) onRefreshFailed(err error) {
	p.mu.Lock()
	waiting := p.awaitingRefresh && !p.closed
	p.mu.Unlock()
	if waiting {
		p.setState(StateErrored, err)
	}
}

func (p *Player) requireLoaded() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.state != StateReady && p.state != StatePlaying {
		return ErrNotLoaded
	}
	return nil
}

func (p *Player) stopRetryLocked() {
	if p.retryTimer != nil {
		p.retryTimer.Stop()
		p.retryTimer = nil
	}
}

func (p *Player) setState(state State, err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	changed := p.state != state
	p.state = state
	p.lastErr = err
	var listeners []func(State)
	if changed {
		for _, fn := range p.listeners {
			listeners = append(listeners, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}
