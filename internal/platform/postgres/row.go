package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
)

const jobColumns = `id, parent_id, owner_id, kind, status, question_count, questions,
	audio_url, audio_object_path, audio_expires_at, title, score, error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job        domain.Job
		kind       string
		status     string
		questions  []byte
		audioURL   sql.NullString
		objectPath sql.NullString
		expiresAt  sql.NullTime
		score      sql.NullInt32
	)

	err := row.Scan(
		&job.ID,
		&job.ParentID,
		&job.OwnerID,
		&kind,
		&status,
		&job.QuestionCount,
		&questions,
		&audioURL,
		&objectPath,
		&expiresAt,
		&job.Title,
		&score,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)

	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &job.Questions); err != nil {
			return nil, fmt.Errorf("failed to decode questions of job %s: %w", job.ID, err)
		}
	}

	job.Audio = audioFromColumns(audioURL, objectPath, expiresAt)

	if score.Valid {
		s := int(score.Int32)
		job.Score = &s
	}

	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()

	return &job, nil
}

func audioFromColumns(url, objectPath sql.NullString, expiresAt sql.NullTime) *domain.AudioArtifact {
	if !url.Valid || url.String == "" {
		return nil
	}
	a := &domain.AudioArtifact{URL: url.String, ObjectPath: objectPath.String}
	if expiresAt.Valid {
		exp := expiresAt.Time.UTC()
		a.ExpiresAt = &exp
	}
	return a
}

// audioColumns returns the column values for an artifact; nil clears them.
func audioColumns(a *domain.AudioArtifact) (url, objectPath, expiresAt any) {
	if a == nil {
		return nil, nil, nil
	}
	if a.ExpiresAt != nil {
		expiresAt = a.ExpiresAt.UTC()
	}
	return a.URL, a.ObjectPath, expiresAt
}

func encodeQuestions(questions []domain.QuizQuestion) (any, error) {
	if len(questions) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode questions: %w", err)
	}
	return b, nil
}

// notifyRow is a job row as the change trigger serializes it with to_jsonb,
// minus the questions column.
type notifyRow struct {
	ID              uuid.UUID  `json:"id"`
	ParentID        uuid.UUID  `json:"parent_id"`
	OwnerID         uuid.UUID  `json:"owner_id"`
	Kind            string     `json:"kind"`
	Status          string     `json:"status"`
	QuestionCount   int        `json:"question_count"`
	AudioURL        *string    `json:"audio_url"`
	AudioObjectPath *string    `json:"audio_object_path"`
	AudioExpiresAt  *time.Time `json:"audio_expires_at"`
	Title           string     `json:"title"`
	Score           *int       `json:"score"`
	Error           string     `json:"error"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (r *notifyRow) toDomain() *domain.Job {
	if r == nil {
		return nil
	}
	job := &domain.Job{
		ID:            r.ID,
		ParentID:      r.ParentID,
		OwnerID:       r.OwnerID,
		Kind:          domain.JobKind(r.Kind),
		Status:        domain.JobStatus(r.Status),
		QuestionCount: r.QuestionCount,
		Title:         r.Title,
		Score:         r.Score,
		Error:         r.Error,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if r.AudioURL != nil && *r.AudioURL != "" {
		job.Audio = &domain.AudioArtifact{URL: *r.AudioURL}
		if r.AudioObjectPath != nil {
			job.Audio.ObjectPath = *r.AudioObjectPath
		}
		if r.AudioExpiresAt != nil {
			exp := r.AudioExpiresAt.UTC()
			job.Audio.ExpiresAt = &exp
		}
	}
	return job
}
