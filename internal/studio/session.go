package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/artifact"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/jobs"
	"github.com/phrazzld/scry-studio/internal/playback"
	"github.com/phrazzld/scry-studio/internal/realtime"
)

// Session is the engine for one open parent resource.
type Session struct {
	studio   *Studio
	parentID uuid.UUID
	registry *jobs.Registry
	channel  *realtime.Channel
	logger   *slog.Logger

	mu          sync.Mutex
	guards      map[uuid.UUID]*artifact.Guard
	players     []*playback.Player
	unsubscribe func()
	closed      bool
}

func newSession(s *Studio, parentID uuid.UUID, registry *jobs.Registry) *Session {
	return &Session{
		studio:   s,
		parentID: parentID,
		registry: registry,
		channel:  realtime.New(registry, s.transport, s.backend, s.notifier, s.logger, s.channelOpts...),
		logger:   s.logger.With("parent_id", parentID),
		guards:   make(map[uuid.UUID]*artifact.Guard),
	}
}

func (s *Session) start(ctx context.Context) error {
	unsubscribe := s.registry.Subscribe(func(jobs.Change) { s.syncGuards() })
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	if err := s.channel.Start(ctx); err != nil {
		return err
	}
	s.syncGuards()
	return nil
}

// ParentID returns the open notebook.
func (s *Session) ParentID() uuid.UUID { return s.parentID }

// Registry returns the shared job registry of the notebook.
func (s *Session) Registry() *jobs.Registry { return s.registry }

// Jobs lists the notebook's jobs, most recent first.
func (s *Session) Jobs() []domain.Job { return s.registry.List() }

// Resync reloads the full job listing.
func (s *Session) Resync(ctx context.Context) error { return s.channel.Resync(ctx) }

// Guard returns the expiry guard of an audio job, if one is running.
func (s *Session) Guard(jobID uuid.UUID) (*artifact.Guard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guards[jobID]
	return g, ok
}

// SubmitQuiz starts a quiz job with questionCount questions.
func (s *Session) SubmitQuiz(ctx context.Context, questionCount int) (domain.Job, error) {
	if s.isClosed() {
		return domain.Job{}, ErrSessionClosed
	}
	return s.studio.submitter.SubmitQuiz(ctx, s.parentID, questionCount)
}

// SubmitAudio starts a deep-dive audio job.
func (s *Session) SubmitAudio(ctx context.Context) (domain.Job, error) {
	if s.isClosed() {
		return domain.Job{}, ErrSessionClosed
	}
	return s.studio.submitter.SubmitAudio(ctx, s.parentID)
}

// Rename sets a job's title optimistically.
func (s *Session) Rename(ctx context.Context, jobID uuid.UUID, title string) error {
	title = strings.TrimSpace(title)
	return s.mutate(ctx, jobID, domain.JobPatch{Title: &title}, "Could not rename job",
		func(ctx context.Context) (domain.Job, error) {
			return s.studio.backend.RenameJob(ctx, jobID, title)
		})
}

// AttachScore records a quiz result optimistically. Only completed quizzes
// accept a score, between zero and the number of questions.
func (s *Session) AttachScore(ctx context.Context, jobID uuid.UUID, score int) error {
	job, ok := s.registry.Get(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	if job.Kind != domain.JobKindQuiz || job.Status != domain.JobStatusCompleted {
		return ErrNotScorable
	}
	if score < 0 || (len(job.Questions) > 0 && score > len(job.Questions)) {
		return fmt.Errorf("%w: %d of %d", domain.ErrInvalidScore, score, len(job.Questions))
	}
	return s.mutate(ctx, jobID, domain.JobPatch{Score: &score}, "Could not save quiz score",
		func(ctx context.Context) (domain.Job, error) {
			return s.studio.backend.ScoreJob(ctx, jobID, score)
		})
}

func (s *Session) mutate(
	ctx context.Context,
	jobID uuid.UUID,
	patch domain.JobPatch,
	failure string,
	call func(context.Context) (domain.Job, error),
) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	token, err := s.registry.ApplyOptimistic(jobID, patch)
	if err != nil {
		return err
	}

	resp, err := call(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "job mutation failed", "job_id", jobID, "fields", patch.Fields(), "error", err)
		if rbErr := s.registry.RollbackEdit(token); rbErr != nil {
			s.logger.DebugContext(ctx, "rollback skipped", "job_id", jobID, "error", rbErr)
		}
		s.raise(ctx, failure, err)
		return fmt.Errorf("%w: %w", ErrMutationFailed, err)
	}

	if err := s.registry.ConfirmEdit(token, resp); err != nil {
		s.logger.DebugContext(ctx, "confirm skipped", "job_id", jobID, "error", err)
	}
	return nil
}

// Delete removes a job optimistically and restores it if the backend
// refuses. A job whose submission failed never reached the backend and is
// only removed locally; a job the backend no longer knows counts as deleted.
func (s *Session) Delete(ctx context.Context, jobID uuid.UUID) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	snapshot, ok := s.registry.Get(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	unsubmitted := s.registry.IsProvisional(jobID) && snapshot.Status == domain.JobStatusFailed
	s.registry.Remove(jobID)
	if unsubmitted {
		s.logger.InfoContext(ctx, "dismissed unsubmitted job", "job_id", jobID)
		return nil
	}

	err := s.studio.backend.DeleteJob(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		s.logger.DebugContext(ctx, "job already gone on the backend", "job_id", jobID)
		err = nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "job delete failed; restoring", "job_id", jobID, "error", err)
		if rErr := s.registry.Restore(snapshot); rErr != nil {
			s.logger.WarnContext(ctx, "failed to restore job", "job_id", jobID, "error", rErr)
		}
		s.raise(ctx, "Could not delete job", err)
		return fmt.Errorf("%w: %w", ErrMutationFailed, err)
	}
	return nil
}

// Player builds a player for an audio job, wired to the job's expiry guard.
// The session closes it on teardown.
func (s *Session) Player(jobID uuid.UUID, media playback.Media, downloader playback.Downloader) (*playback.Player, error) {
	job, ok := s.registry.Get(jobID)
	if !ok || job.Kind != domain.JobKindAudio || job.Audio == nil {
		return nil, ErrNoAudio
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	guard, ok := s.guards[jobID]
	if !ok {
		return nil, ErrNoAudio
	}
	p := playback.New(jobID, playback.Deps{
		Registry:   s.registry,
		Media:      media,
		Refresher:  guard,
		Remover:    s.studio.backend,
		Downloader: downloader,
		Clock:      s.studio.clock,
		Logger:     s.logger,
	}, s.studio.cfg.Playback)
	s.players = append(s.players, p)
	return p, nil
}

// Close stops the channel, every guard and every player, and releases the
// notebook's registry.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	guards := s.guards
	s.guards = make(map[uuid.UUID]*artifact.Guard)
	players := s.players
	s.players = nil
	unsubscribe := s.unsubscribe
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.channel.Stop()
	for _, g := range guards {
		g.Stop()
	}
	for _, p := range players {
		p.Close()
	}
	s.studio.cache.Evict(s.parentID)
	s.logger.Info("session closed")
}

// syncGuards runs a guard for every completed audio job and stops guards of
// jobs that are gone or lost their audio.
func (s *Session) syncGuards() {
	want := make(map[uuid.UUID]struct{})
	for _, job := range s.registry.List() {
		if job.Kind == domain.JobKindAudio && job.Status == domain.JobStatusCompleted && job.Audio != nil {
			want[job.ID] = struct{}{}
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var started, stopped []*artifact.Guard
	for id, g := range s.guards {
		if _, ok := want[id]; !ok {
			delete(s.guards, id)
			stopped = append(stopped, g)
		}
	}
	for id := range want {
		if _, ok := s.guards[id]; ok {
			continue
		}
		g := artifact.NewGuard(id, s.registry, s.studio.refresher, s.studio.clock, s.logger, s.studio.cfg.Guard)
		s.guards[id] = g
		started = append(started, g)
	}
	s.mu.Unlock()

	for _, g := range stopped {
		g.Stop()
	}
	for _, g := range started {
		g.Start()
	}
}

func (s *Session) raise(ctx context.Context, message string, err error) {
	if nErr := s.studio.notifier.Error(ctx, message, err); nErr != nil {
		s.logger.WarnContext(ctx, "failed to deliver notification", "error", nErr)
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
