package studio

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/artifact"
	"github.com/phrazzld/scry-studio/internal/clock"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/jobs"
	"github.com/phrazzld/scry-studio/internal/notify"
	"github.com/phrazzld/scry-studio/internal/playback"
	"github.com/phrazzld/scry-studio/internal/realtime"
	"github.com/phrazzld/scry-studio/internal/submit"
)

// Mutator applies point updates to a job on the backend. Each call returns
// the updated row, which is authoritative for the fields it touched.
type Mutator interface {
	RenameJob(ctx context.Context, jobID uuid.UUID, title string) (domain.Job, error)
	ScoreJob(ctx context.Context, jobID uuid.UUID, score int) (domain.Job, error)
	DeleteJob(ctx context.Context, jobID uuid.UUID) error
}

// Backend is everything the studio needs from the API.
type Backend interface {
	submit.Client
	realtime.Fetcher
	artifact.Refresher
	playback.ArtifactRemover
	Mutator
}

// Config holds the tunables of the engine's components.
type Config struct {
	Guard    artifact.Config
	Playback playback.Config
}

// Studio owns at most one open Session.
type Studio struct {
	cache     *jobs.Cache
	backend   Backend
	transport realtime.Transport
	notifier  notify.Notifier
	clock     clock.Clock
	logger    *slog.Logger
	cfg       Config

	refresher   *artifact.SharedRefresher
	submitter   *submit.Submitter
	channelOpts []realtime.Option

	mu      sync.Mutex
	session *Session
}

// Option configures a Studio.
type Option func(*Studio)

// WithChannelOptions passes options to every realtime channel.
func WithChannelOptions(opts ...realtime.Option) Option {
	return func(s *Studio) { s.channelOpts = append(s.channelOpts, opts...) }
}

// WithSubmitOptions passes options to the job submitter.
func WithSubmitOptions(opts ...submit.Option) Option {
	return func(s *Studio) {
		s.submitter = submit.New(s.cache, s.backend, s.notifier, s.clock, s.logger, opts...)
	}
}

// New creates a studio.
func New(
	backend Backend,
	transport realtime.Transport,
	notifier notify.Notifier,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
	opts ...Option,
) *Studio {
	s := &Studio{
		cache:     jobs.NewCache(logger),
		backend:   backend,
		transport: transport,
		notifier:  notifier,
		clock:     clk,
		logger:    logger.With("component", "studio"),
		cfg:       cfg,
		refresher: artifact.NewSharedRefresher(backend),
	}
	s.submitter = submit.New(s.cache, backend, notifier, clk, logger)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open closes the current session, if any, and opens one for parentID.
func (s *Studio) Open(ctx context.Context, parentID uuid.UUID) (*Session, error) {
	s.mu.Lock()
	previous := s.session
	s.session = nil
	s.mu.Unlock()

	if previous != nil {
		s.logger.InfoContext(ctx, "switching notebook", "from", previous.parentID, "to", parentID)
		previous.Close()
	}

	registry := s.cache.Registry(parentID)
	session := newSession(s, parentID, registry)
	if err := session.start(ctx); err != nil {
		session.Close()
		return nil, err
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	return session, nil
}

// Current returns the open session, or nil.
func (s *Studio) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Close tears down the open session.
func (s *Studio) Close() {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()
	if session != nil {
		session.Close()
	}
}
