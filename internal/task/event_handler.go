package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/events"
	"github.com/phrazzld/scry-studio/internal/service"
)

// JobScheduler accepts generating jobs for background processing.
type JobScheduler interface {
	Submit(job domain.Job) error
}

// JobEventHandler schedules generation for newly inserted jobs.
type JobEventHandler struct {
	scheduler JobScheduler
	lifecycle JobLifecycle
	logger    *slog.Logger
}

var _ events.EventHandler = (*JobEventHandler)(nil)

// NewJobEventHandler creates a new JobEventHandler.
func NewJobEventHandler(scheduler JobScheduler, lifecycle JobLifecycle, logger *slog.Logger) *JobEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobEventHandler{
		scheduler: scheduler,
		lifecycle: lifecycle,
		logger:    logger.With("component", "job_event_handler"),
	}
}

// HandleEvent implements events.EventHandler. A job that cannot be scheduled
// is failed so it does not sit generating until the stuck monitor finds it.
func (h *JobEventHandler) HandleEvent(ctx context.Context, event *events.JobChangeEvent) error {
	if event.Type != events.ChangeInsert || event.New == nil {
		return nil
	}
	job := *event.New
	if job.Status != domain.JobStatusGenerating {
		return nil
	}

	err := h.scheduler.Submit(job)
	if err == nil {
		h.logger.Debug("scheduled generation", "job_id", job.ID, "kind", job.Kind)
		return nil
	}

	h.logger.Error("failed to schedule generation", "job_id", job.ID, "error", err)
	if _, failErr := h.lifecycle.Fail(ctx, job.ID, "generation could not be scheduled"); failErr != nil &&
		!errors.Is(failErr, service.ErrJobSettled) {
		return fmt.Errorf("failed to fail unschedulable job %s: %w", job.ID, failErr)
	}
	return err
}
