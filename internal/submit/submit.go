// Package submit starts generation jobs. A submission writes a provisional
// job to the registry, asks the backend to start the worker, and returns as
// soon as the request is accepted; completion is observed only through the
// realtime channel.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/clock"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/jobs"
	"github.com/phrazzld/scry-studio/internal/metrics"
	"github.com/phrazzld/scry-studio/internal/notify"
)

// Question count bounds for quiz submissions.
const (
	MinQuestions = 1
	MaxQuestions = 10
)

// ErrSubmissionFailed is returned when the backend does not accept a job.
var ErrSubmissionFailed = errors.New("job submission failed")

// Request is what the backend needs to start a job. The client chooses the
// job ID so the backend's insert event matches the provisional record.
type Request struct {
	JobID    uuid.UUID      `json:"job_id"`
	ParentID uuid.UUID      `json:"parent_id"`
	Kind     domain.JobKind `json:"kind"`
	Count    int            `json:"count,omitempty"`
}

// Ack is the backend's acceptance of a submission.
type Ack struct {
	JobID uuid.UUID `json:"job_id"`
}

// Client starts generation on the backend.
type Client interface {
	// SubmitJob asks the backend to create the job row and start the worker.
	// It returns once the request is accepted.
	SubmitJob(ctx context.Context, req Request) (Ack, error)
}

// RegistryProvider resolves the registry of a parent resource.
type RegistryProvider interface {
	Registry(parentID uuid.UUID) *jobs.Registry
}

// Submitter starts quiz and audio jobs.
type Submitter struct {
	registries RegistryProvider
	client     Client
	notifier   notify.Notifier
	clock      clock.Clock
	logger     *slog.Logger
	newID      func() uuid.UUID
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithIDGenerator overrides how job IDs are minted.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(s *Submitter) { s.newID = fn }
}

// New creates a Submitter.
func New(
	registries RegistryProvider,
	client Client,
	notifier notify.Notifier,
	clk clock.Clock,
	logger *slog.Logger,
	opts ...Option,
) *Submitter {
	s := &Submitter{
		registries: registries,
		client:     client,
		notifier:   notifier,
		clock:      clk,
		logger:     logger.With("component", "job_submitter"),
		newID:      uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClampQuestionCount bounds n to [MinQuestions, MaxQuestions].
func ClampQuestionCount(n int) int {
	if n < MinQuestions {
		return MinQuestions
	}
	if n > MaxQuestions {
		return MaxQuestions
	}
	return n
}

// SubmitQuiz starts a quiz job with questionCount questions, clamped to the
// supported range.
func (s *Submitter) SubmitQuiz(ctx context.Context, parentID uuid.UUID, questionCount int) (domain.Job, error) {
	count := ClampQuestionCount(questionCount)
	if count != questionCount {
		s.logger.DebugContext(ctx, "clamped question count", "requested", questionCount, "count", count)
	}
	return s.submit(ctx, parentID, domain.JobKindQuiz, count)
}

// SubmitAudio starts a deep-dive audio job.
func (s *Submitter) SubmitAudio(ctx context.Context, parentID uuid.UUID) (domain.Job, error) {
	return s.submit(ctx, parentID, domain.JobKindAudio, 0)
}

func (s *Submitter) submit(ctx context.Context, parentID uuid.UUID, kind domain.JobKind, count int) (domain.Job, error) {
	job, err := domain.NewJob(s.newID(), parentID, kind, s.clock.Now())
	if err != nil {
		return domain.Job{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	registry := s.registries.Registry(parentID)
	if err := registry.InsertProvisional(*job); err != nil {
		return domain.Job{}, fmt.Errorf("failed to record provisional job: %w", err)
	}

	log := s.logger.With("job_id", job.ID, "parent_id", parentID, "kind", kind)
	log.InfoContext(ctx, "submitting generation job", "count", count)

	ack, err := s.client.SubmitJob(ctx, Request{
		JobID:    job.ID,
		ParentID: parentID,
		Kind:     kind,
		Count:    count,
	})
	if err != nil {
		log.ErrorContext(ctx, "job submission failed", "error", err)
		metrics.IncJobSubmissionFailure(string(kind))

		if markErr := registry.MarkFailed(job.ID, err.Error(), s.clock.Now()); markErr != nil {
			log.WarnContext(ctx, "failed to mark provisional job failed", "error", markErr)
		}
		if nErr := s.notifier.Error(ctx, submissionMessage(kind), err); nErr != nil {
			log.WarnContext(ctx, "failed to deliver notification", "error", nErr)
		}
		return domain.Job{}, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	metrics.IncJobSubmitted(string(kind))

	if ack.JobID != uuid.Nil && ack.JobID != job.ID {
		log.WarnContext(ctx, "backend assigned a different job id", "ack_job_id", ack.JobID)
		if err := registry.Rekey(job.ID, ack.JobID); err != nil {
			log.WarnContext(ctx, "failed to rekey provisional job", "error", err)
		}
		job.ID = ack.JobID
	}

	if current, ok := registry.Get(job.ID); ok {
		return current, nil
	}
	return *job, nil
}

func submissionMessage(kind domain.JobKind) string {
	if kind == domain.JobKindAudio {
		return "Could not start audio generation"
	}
	return "Could not start quiz generation"
}
