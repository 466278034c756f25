package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/generation"
	"github.com/phrazzld/scry-studio/internal/metrics"
	"github.com/phrazzld/scry-studio/internal/service"
)

// JobLifecycle settles generating jobs.
// Version: 1.0
type JobLifecycle interface {
	CompleteQuiz(ctx context.Context, jobID uuid.UUID, questions []domain.QuizQuestion) (*domain.Job, error)
	CompleteAudio(ctx context.Context, jobID uuid.UUID, objectPath string) (*domain.Job, error)
	Fail(ctx context.Context, jobID uuid.UUID, reason string) (*domain.Job, error)
	ListGenerating(ctx context.Context, olderThan time.Duration) ([]domain.Job, error)
}

// Generators bundles the backends a generation task calls.
type Generators struct {
	Quiz   generation.QuizGenerator
	Audio  generation.AudioSynthesizer
	Source generation.SourceLoader
}

// GenerationTask produces the artifact for one generating job and settles it.
type GenerationTask struct {
	job        domain.Job
	lifecycle  JobLifecycle
	generators Generators
	logger     *slog.Logger
}

// NewGenerationTask creates a task for job.
func NewGenerationTask(
	job domain.Job,
	lifecycle JobLifecycle,
	generators Generators,
	logger *slog.Logger,
) (*GenerationTask, error) {
	if lifecycle == nil {
		return nil, fmt.Errorf("lifecycle cannot be nil")
	}
	switch job.Kind {
	case domain.JobKindQuiz:
		if generators.Quiz == nil || generators.Source == nil {
			return nil, fmt.Errorf("quiz generation is not configured")
		}
	case domain.JobKindAudio:
		if generators.Audio == nil {
			return nil, fmt.Errorf("audio generation is not configured")
		}
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidJobKind, job.Kind)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GenerationTask{
		job:        job,
		lifecycle:  lifecycle,
		generators: generators,
		logger:     logger.With("job_id", job.ID, "kind", job.Kind),
	}, nil
}

// ID returns the job ID; a job has at most one task.
func (t *GenerationTask) ID() uuid.UUID {
	return t.job.ID
}

// Type returns the task type for the job's kind.
func (t *GenerationTask) Type() string {
	if t.job.Kind == domain.JobKindAudio {
		return TaskTypeAudioGeneration
	}
	return TaskTypeQuizGeneration
}

// Execute generates the artifact and settles the job. A failed generation
// marks the job failed; cancellation leaves it generating so startup
// recovery picks it up again.
func (t *GenerationTask) Execute(ctx context.Context) error {
	start := time.Now()
	err := t.generate(ctx)

	switch {
	case err == nil:
		metrics.IncGenerationTask(string(t.job.Kind), "completed")
		t.logger.Info("generation completed", "duration_ms", time.Since(start).Milliseconds())
		return nil

	case ctx.Err() != nil:
		metrics.IncGenerationTask(string(t.job.Kind), "interrupted")
		return fmt.Errorf("generation interrupted: %w", ctx.Err())

	case errors.Is(err, service.ErrJobSettled), errors.Is(err, service.ErrJobNotFound):
		metrics.IncGenerationTask(string(t.job.Kind), "discarded")
		t.logger.Info("job settled elsewhere, discarding result", "error", err)
		return nil
	}

	metrics.IncGenerationTask(string(t.job.Kind), "failed")
	if _, failErr := t.lifecycle.Fail(ctx, t.job.ID, FailureReason(err)); failErr != nil &&
		!errors.Is(failErr, service.ErrJobSettled) {
		return fmt.Errorf("failed to mark job failed after %v: %w", err, failErr)
	}
	return err
}

func (t *GenerationTask) generate(ctx context.Context) error {
	if t.job.Kind == domain.JobKindAudio {
		objectPath, err := t.generators.Audio.SynthesizeAudio(ctx, generation.AudioRequest{
			JobID:      t.job.ID,
			NotebookID: t.job.ParentID,
		})
		if err != nil {
			return err
		}
		_, err = t.lifecycle.CompleteAudio(ctx, t.job.ID, objectPath)
		return err
	}

	source, err := t.generators.Source.LoadSource(ctx, t.job.ParentID)
	if err != nil {
		return err
	}
	questions, err := t.generators.Quiz.GenerateQuiz(ctx, generation.QuizRequest{
		NotebookID: t.job.ParentID,
		Source:     source,
		Count:      t.job.QuestionCount,
	})
	if err != nil {
		return err
	}
	_, err = t.lifecycle.CompleteQuiz(ctx, t.job.ID, questions)
	return err
}

// FailureReason is the message stored on a failed job. Backend details stay
// in the logs.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, generation.ErrEmptySource):
		return "notebook has no source material"
	case errors.Is(err, generation.ErrContentBlocked):
		return "generation was blocked by the content filter"
	case errors.Is(err, generation.ErrTransientFailure):
		return "generation service unavailable"
	case errors.Is(err, generation.ErrInvalidResponse):
		return "generation returned an unusable result"
	default:
		return "generation failed"
	}
}
