package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// JobStore defines the interface for generation job persistence.
// Version: 1.0
type JobStore interface {
	// Create saves a new job in the generating state.
	// Returns ErrDuplicateJob if a job with the same ID exists.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job, including its quiz questions.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// GetForUpdate is GetByID with a row lock; it must run inside a transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// ListByParent returns every job of a parent resource, most recent first.
	ListByParent(ctx context.Context, parentID uuid.UUID) ([]domain.Job, error)

	// ListGenerating returns jobs still generating whose last update is older
	// than olderThan. A zero olderThan returns all of them.
	ListGenerating(ctx context.Context, olderThan time.Duration) ([]domain.Job, error)

	// Complete moves a generating job to completed with its payload.
	// Returns ErrStatusConflict if the job is no longer generating.
	Complete(ctx context.Context, id uuid.UUID, questions []domain.QuizQuestion, audio *domain.AudioArtifact) (*domain.Job, error)

	// Fail moves a generating job to failed.
	// Returns ErrStatusConflict if the job is no longer generating.
	Fail(ctx context.Context, id uuid.UUID, reason string) (*domain.Job, error)

	// Update applies a metadata patch (title, score, audio) and returns the
	// resulting row. Status is never touched.
	Update(ctx context.Context, id uuid.UUID, patch domain.JobPatch) (*domain.Job, error)

	// Delete removes a job.
	// Returns ErrJobNotFound if the job does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new JobStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) JobStore
}
