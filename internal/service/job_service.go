package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/clock"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/events"
	"github.com/phrazzld/scry-studio/internal/metrics"
	"github.com/phrazzld/scry-studio/internal/platform/logger"
	"github.com/phrazzld/scry-studio/internal/store"
)

// Question count bounds for quiz jobs.
const (
	MinQuestions = 1
	MaxQuestions = 10
)

// AudioStore issues access URLs for audio objects and deletes them.
type AudioStore interface {
	Sign(ctx context.Context, objectPath string) (domain.AudioArtifact, error)
	Delete(ctx context.Context, objectPath string) error
}

// SubmitRequest starts a generation job. A nil JobID lets the service mint one.
type SubmitRequest struct {
	JobID    uuid.UUID
	ParentID uuid.UUID
	OwnerID  uuid.UUID
	Kind     domain.JobKind
	Count    int
}

// JobService provides job operations for API handlers and the generation runner.
// Version: 1.0
type JobService interface {
	// Submit records a generating job and emits its insert event, which
	// schedules generation. Resubmitting the same job ID for the same owner,
	// parent and kind returns the existing job.
	Submit(ctx context.Context, req SubmitRequest) (*domain.Job, error)

	// List returns the owner's jobs of a parent resource, most recent first.
	List(ctx context.Context, ownerID, parentID uuid.UUID) ([]domain.Job, error)

	// Get returns one job including its quiz questions.
	Get(ctx context.Context, ownerID, jobID uuid.UUID) (*domain.Job, error)

	// Rename sets a job's title.
	Rename(ctx context.Context, ownerID, jobID uuid.UUID, title string) (*domain.Job, error)

	// Score attaches a result to a completed quiz, between zero and its
	// question count.
	Score(ctx context.Context, ownerID, jobID uuid.UUID, score int) (*domain.Job, error)

	// Delete removes a job and its audio object.
	Delete(ctx context.Context, ownerID, jobID uuid.UUID) error

	// RefreshAudio issues a new URL for the same audio object and stores it.
	RefreshAudio(ctx context.Context, ownerID, jobID uuid.UUID) (domain.AudioArtifact, error)

	// DeleteAudio removes the audio artifact and its object; the job keeps
	// its status.
	DeleteAudio(ctx context.Context, ownerID, jobID uuid.UUID) error

	// CompleteQuiz settles a generating quiz with its questions.
	CompleteQuiz(ctx context.Context, jobID uuid.UUID, questions []domain.QuizQuestion) (*domain.Job, error)

	// CompleteAudio signs objectPath and settles a generating audio job with it.
	CompleteAudio(ctx context.Context, jobID uuid.UUID, objectPath string) (*domain.Job, error)

	// Fail settles a generating job as failed.
	Fail(ctx context.Context, jobID uuid.UUID, reason string) (*domain.Job, error)

	// ListGenerating returns jobs generating for longer than olderThan; zero
	// returns all of them.
	ListGenerating(ctx context.Context, olderThan time.Duration) ([]domain.Job, error)
}

// jobServiceImpl implements the JobService interface
type jobServiceImpl struct {
	db           *sql.DB
	jobs         store.JobStore
	audio        AudioStore
	eventEmitter events.EventEmitter
	clock        clock.Clock
	logger       *slog.Logger
}

// NewJobService creates a new JobService.
// It returns an error if any of the required dependencies are nil.
func NewJobService(
	db *sql.DB,
	jobs store.JobStore,
	audio AudioStore,
	eventEmitter events.EventEmitter,
	clk clock.Clock,
	logger *slog.Logger,
) (JobService, error) {
	if db == nil {
		return nil, &JobServiceError{Operation: "create_service", Message: "db cannot be nil"}
	}
	if jobs == nil {
		return nil, &JobServiceError{Operation: "create_service", Message: "jobs cannot be nil"}
	}
	if audio == nil {
		return nil, &JobServiceError{Operation: "create_service", Message: "audio cannot be nil"}
	}
	if eventEmitter == nil {
		return nil, &JobServiceError{Operation: "create_service", Message: "eventEmitter cannot be nil"}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &jobServiceImpl{
		db:           db,
		jobs:         jobs,
		audio:        audio,
		eventEmitter: eventEmitter,
		clock:        clk,
		logger:       logger.With("component", "job_service"),
	}, nil
}

func (s *jobServiceImpl) Submit(ctx context.Context, req SubmitRequest) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if req.OwnerID == uuid.Nil {
		return nil, fmt.Errorf("%w: owner ID cannot be empty", domain.ErrValidation)
	}
	count := 0
	if req.Kind == domain.JobKindQuiz {
		if req.Count < MinQuestions || req.Count > MaxQuestions {
			return nil, fmt.Errorf("%w: question count must be between %d and %d",
				domain.ErrValidation, MinQuestions, MaxQuestions)
		}
		count = req.Count
	}
	if req.JobID == uuid.Nil {
		req.JobID = uuid.New()
	}

	job, err := domain.NewJob(req.JobID, req.ParentID, req.Kind, s.clock.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	job.OwnerID = req.OwnerID
	job.QuestionCount = count

	if err := s.jobs.Create(ctx, job); err != nil {
		if errors.Is(err, store.ErrDuplicateJob) {
			return s.resubmitted(ctx, req)
		}
		log.Error("failed to create job",
			"error", err,
			"job_id", job.ID,
			"parent_id", job.ParentID)
		return nil, NewJobServiceError("submit_job", "failed to save job", err)
	}

	metrics.IncJobSubmitted(string(job.Kind))
	log.Info("job submitted",
		"job_id", job.ID,
		"parent_id", job.ParentID,
		"kind", job.Kind,
		"count", count)

	s.emit(ctx, events.ChangeInsert, nil, job)
	return job, nil
}

// resubmitted resolves a duplicate job ID: a retried submission of the same
// job returns it, anything else is a conflict.
func (s *jobServiceImpl) resubmitted(ctx context.Context, req SubmitRequest) (*domain.Job, error) {
	existing, err := s.jobs.GetByID(ctx, req.JobID)
	if err != nil {
		return nil, NewJobServiceError("submit_job", "failed to load existing job", err)
	}
	if existing.OwnerID != req.OwnerID || existing.ParentID != req.ParentID || existing.Kind != req.Kind {
		return nil, store.ErrDuplicateJob
	}
	return existing, nil
}

func (s *jobServiceImpl) List(ctx context.Context, ownerID, parentID uuid.UUID) ([]domain.Job, error) {
	list, err := s.jobs.ListByParent(ctx, parentID)
	if err != nil {
		return nil, NewJobServiceError("list_jobs", "failed to list jobs", err)
	}

	owned := make([]domain.Job, 0, len(list))
	for _, j := range list {
		if j.OwnerID == ownerID {
			owned = append(owned, j)
		}
	}
	return owned, nil
}

func (s *jobServiceImpl) Get(ctx context.Context, ownerID, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, NewJobServiceError("get_job", "failed to retrieve job", err)
	}
	if job.OwnerID != ownerID {
		return nil, ErrNotOwned
	}
	return job, nil
}

func (s *jobServiceImpl) Rename(ctx context.Context, ownerID, jobID uuid.UUID, title string) (*domain.Job, error) {
	return s.patch(ctx, "rename_job", ownerID, jobID, domain.JobPatch{Title: &title}, nil)
}

func (s *jobServiceImpl) Score(ctx context.Context, ownerID, jobID uuid.UUID, score int) (*domain.Job, error) {
	return s.patch(ctx, "score_job", ownerID, jobID, domain.JobPatch{Score: &score}, func(job *domain.Job) error {
		if job.Kind != domain.JobKindQuiz || job.Status != domain.JobStatusCompleted {
			return ErrNotScorable
		}
		if score < 0 || score > len(job.Questions) {
			return fmt.Errorf("%w: %d of %d", domain.ErrInvalidScore, score, len(job.Questions))
		}
		return nil
	})
}

// patch applies a metadata update under a row lock after ownership and the
// optional check pass.
func (s *jobServiceImpl) patch(
	ctx context.Context,
	op string,
	ownerID, jobID uuid.UUID,
	p domain.JobPatch,
	check func(*domain.Job) error,
) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var old, updated *domain.Job
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txJobs := s.jobs.WithTx(tx)

		job, err := s.lockOwned(ctx, txJobs, ownerID, jobID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(job); err != nil {
				return err
			}
		}

		updated, err = txJobs.Update(ctx, jobID, p)
		if err != nil {
			return err
		}
		old = job
		return nil
	})
	if err != nil {
		log.Debug("job update rejected", "operation", op, "job_id", jobID, "error", err)
		return nil, NewJobServiceError(op, "failed to update job", err)
	}

	s.emit(ctx, events.ChangeUpdate, old, updated)
	return updated, nil
}

func (s *jobServiceImpl) Delete(ctx context.Context, ownerID, jobID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var deleted *domain.Job
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txJobs := s.jobs.WithTx(tx)

		job, err := s.lockOwned(ctx, txJobs, ownerID, jobID)
		if err != nil {
			return err
		}
		if err := txJobs.Delete(ctx, jobID); err != nil {
			return err
		}
		deleted = job
		return nil
	})
	if err != nil {
		return NewJobServiceError("delete_job", "failed to delete job", err)
	}

	if deleted.Audio != nil {
		s.deleteObject(ctx, deleted.ID, deleted.Audio.ObjectPath)
	}
	log.Info("job deleted", "job_id", jobID, "parent_id", deleted.ParentID)

	s.emit(ctx, events.ChangeDelete, deleted, nil)
	return nil
}

func (s *jobServiceImpl) RefreshAudio(ctx context.Context, ownerID, jobID uuid.UUID) (domain.AudioArtifact, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	job, err := s.Get(ctx, ownerID, jobID)
	if err != nil {
		return domain.AudioArtifact{}, err
	}
	if job.Audio == nil {
		return domain.AudioArtifact{}, ErrNoAudio
	}

	artifact, err := s.audio.Sign(ctx, job.Audio.ObjectPath)
	if err != nil {
		metrics.IncArtifactRefresh("error")
		log.Error("failed to sign audio object",
			"error", err,
			"job_id", jobID,
			"object_path", job.Audio.ObjectPath)
		return domain.AudioArtifact{}, NewJobServiceError("refresh_audio", "failed to sign audio object", err)
	}

	updated, err := s.jobs.Update(ctx, jobID, domain.JobPatch{Audio: &artifact})
	if err != nil {
		metrics.IncArtifactRefresh("error")
		return domain.AudioArtifact{}, NewJobServiceError("refresh_audio", "failed to store audio URL", err)
	}
	metrics.IncArtifactRefresh("success")
	log.Debug("audio URL refreshed", "job_id", jobID, "expires_at", artifact.ExpiresAt)

	s.emit(ctx, events.ChangeUpdate, job, updated)
	return artifact, nil
}

func (s *jobServiceImpl) DeleteAudio(ctx context.Context, ownerID, jobID uuid.UUID) error {
	var old, updated *domain.Job
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txJobs := s.jobs.WithTx(tx)

		job, err := s.lockOwned(ctx, txJobs, ownerID, jobID)
		if err != nil {
			return err
		}
		if job.Audio == nil {
			return nil
		}

		updated, err = txJobs.Update(ctx, jobID, domain.JobPatch{ClearAudio: true})
		if err != nil {
			return err
		}
		old = job
		return nil
	})
	if err != nil {
		return NewJobServiceError("delete_audio", "failed to remove audio", err)
	}
	if old == nil {
		return nil
	}

	s.deleteObject(ctx, jobID, old.Audio.ObjectPath)
	s.emit(ctx, events.ChangeUpdate, old, updated)
	return nil
}

func (s *jobServiceImpl) CompleteQuiz(
	ctx context.Context,
	jobID uuid.UUID,
	questions []domain.QuizQuestion,
) (*domain.Job, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, domain.ErrMissingPayload)
	}
	return s.settle(ctx, "complete_quiz", jobID, func(ctx context.Context, jobs store.JobStore) (*domain.Job, error) {
		return jobs.Complete(ctx, jobID, questions, nil)
	})
}

func (s *jobServiceImpl) CompleteAudio(ctx context.Context, jobID uuid.UUID, objectPath string) (*domain.Job, error) {
	artifact, err := s.audio.Sign(ctx, objectPath)
	if err != nil {
		return nil, NewJobServiceError("complete_audio", "failed to sign audio object", err)
	}

	job, err := s.settle(ctx, "complete_audio", jobID, func(ctx context.Context, jobs store.JobStore) (*domain.Job, error) {
		return jobs.Complete(ctx, jobID, nil, &artifact)
	})
	if errors.Is(err, ErrJobNotFound) || (errors.Is(err, ErrJobSettled) && !s.references(ctx, jobID, objectPath)) {
		s.deleteObject(ctx, jobID, objectPath)
	}
	return job, err
}

// references reports whether the stored job already points at objectPath,
// as it does when a completed job's task runs twice.
func (s *jobServiceImpl) references(ctx context.Context, jobID uuid.UUID, objectPath string) bool {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return !errors.Is(err, store.ErrJobNotFound)
	}
	return job.Audio != nil && job.Audio.ObjectPath == objectPath
}

func (s *jobServiceImpl) Fail(ctx context.Context, jobID uuid.UUID, reason string) (*domain.Job, error) {
	return s.settle(ctx, "fail_job", jobID, func(ctx context.Context, jobs store.JobStore) (*domain.Job, error) {
		return jobs.Fail(ctx, jobID, reason)
	})
}

// settle runs a terminal transition with the previous row locked so the
// emitted event carries both snapshots.
func (s *jobServiceImpl) settle(
	ctx context.Context,
	op string,
	jobID uuid.UUID,
	transition func(context.Context, store.JobStore) (*domain.Job, error),
) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var old, settled *domain.Job
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txJobs := s.jobs.WithTx(tx)

		job, err := txJobs.GetForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if domain.IsTerminal(job.Status) {
			return ErrJobSettled
		}

		settled, err = transition(ctx, txJobs)
		if err != nil {
			return err
		}
		old = job
		return nil
	})
	if err != nil {
		log.Warn("job transition rejected", "operation", op, "job_id", jobID, "error", err)
		return nil, NewJobServiceError(op, "failed to settle job", err)
	}

	log.Info("job settled",
		"job_id", jobID,
		"parent_id", settled.ParentID,
		"kind", settled.Kind,
		"status", settled.Status)
	s.emit(ctx, events.ChangeUpdate, old, settled)
	return settled, nil
}

func (s *jobServiceImpl) ListGenerating(ctx context.Context, olderThan time.Duration) ([]domain.Job, error) {
	list, err := s.jobs.ListGenerating(ctx, olderThan)
	if err != nil {
		return nil, NewJobServiceError("list_generating", "failed to list generating jobs", err)
	}
	return list, nil
}

func (s *jobServiceImpl) lockOwned(
	ctx context.Context,
	jobs store.JobStore,
	ownerID, jobID uuid.UUID,
) (*domain.Job, error) {
	job, err := jobs.GetForUpdate(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, ErrNotOwned
	}
	return job, nil
}

// deleteObject removes an audio object. A failure leaves an orphaned object
// behind, which is logged rather than surfaced since the row is already gone.
func (s *jobServiceImpl) deleteObject(ctx context.Context, jobID uuid.UUID, objectPath string) {
	if err := s.audio.Delete(ctx, objectPath); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to delete audio object",
			"error", err,
			"job_id", jobID,
			"object_path", objectPath)
	}
}

// emit publishes a committed change. Handler failures are logged; the write
// has already happened.
func (s *jobServiceImpl) emit(ctx context.Context, changeType events.ChangeType, old, updated *domain.Job) {
	event := events.NewJobChangeEvent(changeType, old, updated)
	if err := s.eventEmitter.EmitEvent(ctx, event); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to emit job change event",
			"error", err,
			"event_id", event.ID,
			"event_type", changeType,
			"job_id", event.Job().ID)
	}
}
