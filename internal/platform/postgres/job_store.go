package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/platform/logger"
	"github.com/phrazzld/scry-studio/internal/store"
)

// PostgresJobStore implements the store.JobStore interface
// using a PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the JobStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// Create implements store.JobStore.Create
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	questions, err := encodeQuestions(job.Questions)
	if err != nil {
		return err
	}
	audioURL, objectPath, expiresAt := audioColumns(job.Audio)

	query := `
		INSERT INTO generation_jobs (id, parent_id, owner_id, kind, status, question_count, questions,
			audio_url, audio_object_path, audio_expires_at, title, score, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.ParentID,
		job.OwnerID,
		string(job.Kind),
		string(job.Status),
		job.QuestionCount,
		questions,
		audioURL,
		objectPath,
		expiresAt,
		job.Title,
		job.Score,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("duplicate job id on create", slog.String("job_id", job.ID.String()))
			return fmt.Errorf("%w: %s", store.ErrDuplicateJob, job.ID)
		}
		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return MapError(err)
	}

	log.Info("job created",
		slog.String("job_id", job.ID.String()),
		slog.String("parent_id", job.ParentID.String()),
		slog.String("kind", string(job.Kind)))
	return nil
}

// GetByID implements store.JobStore.GetByID
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return s.get(ctx, id, "")
}

// GetForUpdate implements store.JobStore.GetForUpdate
func (s *PostgresJobStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return s.get(ctx, id, " FOR UPDATE")
}

func (s *PostgresJobStore) get(ctx context.Context, id uuid.UUID, suffix string) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1` + suffix

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("job not found", slog.String("job_id", id.String()))
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to get job by ID",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, MapError(err)
	}
	return job, nil
}

// ListByParent implements store.JobStore.ListByParent
func (s *PostgresJobStore) ListByParent(ctx context.Context, parentID uuid.UUID) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM generation_jobs
		WHERE parent_id = $1
		ORDER BY created_at DESC, id ASC`
	return s.list(ctx, query, parentID)
}

// ListGenerating implements store.JobStore.ListGenerating
func (s *PostgresJobStore) ListGenerating(ctx context.Context, olderThan time.Duration) ([]domain.Job, error) {
	if olderThan > 0 {
		query := `SELECT ` + jobColumns + `
			FROM generation_jobs
			WHERE status = 'generating' AND updated_at < $1
			ORDER BY created_at ASC`
		return s.list(ctx, query, s.now().Add(-olderThan))
	}

	query := `SELECT ` + jobColumns + `
		FROM generation_jobs
		WHERE status = 'generating'
		ORDER BY created_at ASC`
	return s.list(ctx, query)
}

func (s *PostgresJobStore) list(ctx context.Context, query string, args ...any) ([]domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query jobs", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	jobs := []domain.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			log.Error("failed to scan job row", slog.String("error", err.Error()))
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating job rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return jobs, nil
}

// Complete implements store.JobStore.Complete
func (s *PostgresJobStore) Complete(
	ctx context.Context,
	id uuid.UUID,
	questions []domain.QuizQuestion,
	audio *domain.AudioArtifact,
) (*domain.Job, error) {
	if len(questions) == 0 && (audio == nil || audio.URL == "") {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrMissingPayload)
	}

	encoded, err := encodeQuestions(questions)
	if err != nil {
		return nil, err
	}
	audioURL, objectPath, expiresAt := audioColumns(audio)

	query := `
		UPDATE generation_jobs
		SET status = 'completed', questions = $2, audio_url = $3, audio_object_path = $4,
			audio_expires_at = $5, error = '', updated_at = $6
		WHERE id = $1 AND status = 'generating'
		RETURNING ` + jobColumns

	return s.transition(ctx, id, domain.JobStatusCompleted, query,
		id, encoded, audioURL, objectPath, expiresAt, s.now())
}

// Fail implements store.JobStore.Fail
func (s *PostgresJobStore) Fail(ctx context.Context, id uuid.UUID, reason string) (*domain.Job, error) {
	query := `
		UPDATE generation_jobs
		SET status = 'failed', error = $2, updated_at = $3
		WHERE id = $1 AND status = 'generating'
		RETURNING ` + jobColumns

	return s.transition(ctx, id, domain.JobStatusFailed, query, id, reason, s.now())
}

// transition runs a guarded status update. The WHERE clause only matches
// generating rows, so a missing row means either an unknown id or a job that
// already reached a terminal state.
func (s *PostgresJobStore) transition(
	ctx context.Context,
	id uuid.UUID,
	to domain.JobStatus,
	query string,
	args ...any,
) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	job, err := scanJob(s.db.QueryRowContext(ctx, query, args...))
	if err == nil {
		log.Info("job status updated",
			slog.String("job_id", id.String()),
			slog.String("status", string(to)))
		return job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to update job status",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()),
			slog.String("status", string(to)))
		return nil, MapError(err)
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM generation_jobs WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrJobNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}

	log.Warn("refusing status change of settled job",
		slog.String("job_id", id.String()),
		slog.String("current", current),
		slog.String("requested", string(to)))
	return nil, fmt.Errorf("%w: job %s is %s", store.ErrStatusConflict, id, current)
}

// Update implements store.JobStore.Update
func (s *PostgresJobStore) Update(ctx context.Context, id uuid.UUID, patch domain.JobPatch) (*domain.Job, error) {
	if patch.Empty() {
		return s.GetByID(ctx, id)
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		sets []string
		args = []any{id}
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Score != nil {
		add("score", *patch.Score)
	}
	if patch.ClearAudio || patch.Audio != nil {
		var audio *domain.AudioArtifact
		if !patch.ClearAudio {
			audio = patch.Audio
		}
		url, objectPath, expiresAt := audioColumns(audio)
		add("audio_url", url)
		add("audio_object_path", objectPath)
		add("audio_expires_at", expiresAt)
	}
	add("updated_at", s.now())

	query := `UPDATE generation_jobs SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + jobColumns

	job, err := scanJob(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to update job",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, MapError(err)
	}

	log.Debug("job updated",
		slog.String("job_id", id.String()),
		slog.Any("fields", patch.Fields()))
	return job, nil
}

// Delete implements store.JobStore.Delete
func (s *PostgresJobStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM generation_jobs WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete job",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrJobNotFound); err != nil {
		return err
	}

	log.Info("job deleted", slog.String("job_id", id.String()))
	return nil
}

// WithTx implements store.JobStore.WithTx
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{
		db:     tx,
		logger: s.logger,
		now:    s.now,
	}
}
