package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/phrazzld/scry-studio/internal/domain"
)

// Notifier is the notification surface exposed to the job engine.
type Notifier interface {
	JobCompleted(ctx context.Context, job domain.Job) error
	JobFailed(ctx context.Context, job domain.Job) error
	Error(ctx context.Context, message string, err error) error
}

// Noop discards every notification.
type Noop struct{}

func (Noop) JobCompleted(context.Context, domain.Job) error   { return nil }
func (Noop) JobFailed(context.Context, domain.Job) error      { return nil }
func (Noop) Error(context.Context, string, error) error       { return nil }

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) JobCompleted(ctx context.Context, job domain.Job) error {
	n.Logger.InfoContext(ctx, "job completed",
		"job_id", job.ID,
		"kind", job.Kind,
		"title", DisplayTitle(job))
	return nil
}

func (n LogNotifier) JobFailed(ctx context.Context, job domain.Job) error {
	n.Logger.WarnContext(ctx, "job failed",
		"job_id", job.ID,
		"kind", job.Kind,
		"reason", job.Error)
	return nil
}

func (n LogNotifier) Error(ctx context.Context, message string, err error) error {
	n.Logger.ErrorContext(ctx, message, "error", err)
	return nil
}

// Multi fans a notification out to every notifier, returning the joined
// errors of those that failed.
type Multi []Notifier

func (m Multi) JobCompleted(ctx context.Context, job domain.Job) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.JobCompleted(ctx, job))
	}
	return errors.Join(errs...)
}

func (m Multi) JobFailed(ctx context.Context, job domain.Job) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.JobFailed(ctx, job))
	}
	return errors.Join(errs...)
}

func (m Multi) Error(ctx context.Context, message string, err error) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.Error(ctx, message, err))
	}
	return errors.Join(errs...)
}

// DisplayTitle returns the job's title or a label derived from its kind.
func DisplayTitle(job domain.Job) string {
	if job.Title != "" {
		return job.Title
	}
	switch job.Kind {
	case domain.JobKindQuiz:
		return "Quiz"
	case domain.JobKindAudio:
		return "Deep-dive audio overview"
	default:
		return string(job.Kind)
	}
}
