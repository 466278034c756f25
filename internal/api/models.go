package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// SubmitJobRequest defines the payload for starting generation. JobID is
// chosen by the client so its provisional record and the server row share
// identity; a zero ID lets the server choose.
type SubmitJobRequest struct {
	JobID uuid.UUID      `json:"job_id"`
	Kind  domain.JobKind `json:"kind"            validate:"required,oneof=quiz audio"`
	Count int            `json:"count,omitempty" validate:"gte=0,lte=10"`
}

// Validate checks fields that depend on the kind.
func (r SubmitJobRequest) Validate() error {
	if r.Kind == domain.JobKindQuiz && r.Count == 0 {
		return fmt.Errorf("%w: quiz jobs require a question count", domain.ErrValidation)
	}
	if r.Kind == domain.JobKindAudio && r.Count != 0 {
		return fmt.Errorf("%w: audio jobs take no question count", domain.ErrValidation)
	}
	return nil
}

// SubmitJobResponse acknowledges a submission.
type SubmitJobResponse struct {
	JobID uuid.UUID `json:"job_id"`
}

// PatchJobRequest edits a job's metadata. At least one field is required.
type PatchJobRequest struct {
	Title *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Score *int    `json:"score,omitempty" validate:"omitempty,gte=0"`
}

// Validate rejects an empty patch.
func (r PatchJobRequest) Validate() error {
	if r.Title == nil && r.Score == nil {
		return fmt.Errorf("%w: patch must set title or score", domain.ErrValidation)
	}
	return nil
}

// JobResponse is the wire form of a job.
type JobResponse struct {
	ID            uuid.UUID             `json:"id"`
	ParentID      uuid.UUID             `json:"parent_id"`
	Kind          domain.JobKind        `json:"kind"`
	Status        domain.JobStatus      `json:"status"`
	QuestionCount int                   `json:"question_count,omitempty"`
	Questions     []domain.QuizQuestion `json:"questions,omitempty"`
	Audio         *domain.AudioArtifact `json:"audio,omitempty"`
	Title         string                `json:"title,omitempty"`
	Score         *int                  `json:"score,omitempty"`
	Error         string                `json:"error,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// jobToResponse converts a domain job; the owner stays server side.
func jobToResponse(job *domain.Job) JobResponse {
	return JobResponse{
		ID:            job.ID,
		ParentID:      job.ParentID,
		Kind:          job.Kind,
		Status:        job.Status,
		QuestionCount: job.QuestionCount,
		Questions:     job.Questions,
		Audio:         job.Audio,
		Title:         job.Title,
		Score:         job.Score,
		Error:         job.Error,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}
}
