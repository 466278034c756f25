package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobKind identifies what a generation job produces.
type JobKind string

// Supported job kinds
const (
	JobKindQuiz  JobKind = "quiz"
	JobKindAudio JobKind = "audio"
)

// JobStatus represents the lifecycle state of a generation job.
type JobStatus string

// Possible job status values. A job only ever moves from generating to one
// of the two terminal states.
const (
	JobStatusGenerating JobStatus = "generating"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job validation errors
var (
	ErrEmptyJobID       = errors.New("job ID cannot be empty")
	ErrEmptyJobParentID = errors.New("job parent ID cannot be empty")
	ErrInvalidJobKind   = errors.New("invalid job kind")
	ErrInvalidJobStatus = errors.New("invalid job status")
	ErrMissingPayload   = errors.New("completed job must carry a payload")
)

// QuizOption is one selectable answer of a quiz question.
type QuizOption struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// QuizQuestion is a single generated question.
type QuizQuestion struct {
	Prompt      string       `json:"prompt"`
	Options     []QuizOption `json:"options"`
	CorrectKey  string       `json:"correct_key"`
	Explanation string       `json:"explanation,omitempty"`
}

// AudioArtifact points at a generated audio object. ObjectPath is stable for
// the lifetime of the artifact; URL and ExpiresAt change whenever the access
// credential is reissued. ExpiresAt is nil for permanent URLs.
type AudioArtifact struct {
	URL        string     `json:"url"`
	ObjectPath string     `json:"object_path"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the artifact's access URL has lapsed at now.
// Permanent URLs never expire.
func (a *AudioArtifact) Expired(now time.Time) bool {
	if a == nil || a.ExpiresAt == nil {
		return false
	}
	return !now.Before(*a.ExpiresAt)
}

// Clone returns a deep copy of the artifact.
func (a *AudioArtifact) Clone() *AudioArtifact {
	if a == nil {
		return nil
	}
	c := *a
	if a.ExpiresAt != nil {
		exp := *a.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}

// Job is a unit of externally executed, asynchronously completed content
// generation owned by a parent resource (a notebook). OwnerID is the user who
// submitted it; it is only enforced by the server. QuestionCount is the
// number of questions requested for a quiz.
type Job struct {
	ID            uuid.UUID      `json:"id"`
	ParentID      uuid.UUID      `json:"parent_id"`
	OwnerID       uuid.UUID      `json:"owner_id"`
	Kind          JobKind        `json:"kind"`
	Status        JobStatus      `json:"status"`
	QuestionCount int            `json:"question_count,omitempty"`
	Questions     []QuizQuestion `json:"questions,omitempty"`
	Audio         *AudioArtifact `json:"audio,omitempty"`
	Title         string         `json:"title,omitempty"`
	Score         *int           `json:"score,omitempty"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewJob creates a job in the generating state. The caller supplies the ID so
// that a client-side provisional record and the server row share identity.
func NewJob(id, parentID uuid.UUID, kind JobKind, now time.Time) (*Job, error) {
	job := &Job{
		ID:        id,
		ParentID:  parentID,
		Kind:      kind,
		Status:    JobStatusGenerating,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks the job's invariants.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.ParentID == uuid.Nil {
		return ErrEmptyJobParentID
	}

	if !IsValidJobKind(j.Kind) {
		return ErrInvalidJobKind
	}

	if !IsValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if j.Status == JobStatusCompleted && !j.HasPayload() {
		return ErrMissingPayload
	}

	return nil
}

// HasPayload reports whether the kind-specific payload is present.
func (j *Job) HasPayload() bool {
	switch j.Kind {
	case JobKindQuiz:
		return len(j.Questions) > 0
	case JobKindAudio:
		return j.Audio != nil && j.Audio.URL != ""
	default:
		return false
	}
}

// Transition moves the job to status, refusing regressions.
func (j *Job) Transition(status JobStatus, now time.Time) error {
	if !CanTransition(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, status)
	}
	j.Status = status
	j.UpdatedAt = now.UTC()
	return nil
}

// Clone returns a deep copy of the job so registry snapshots can be handed
// out without sharing mutable state.
func (j Job) Clone() Job {
	c := j
	if j.Questions != nil {
		c.Questions = make([]QuizQuestion, len(j.Questions))
		for i, q := range j.Questions {
			c.Questions[i] = q
			if q.Options != nil {
				c.Questions[i].Options = append([]QuizOption(nil), q.Options...)
			}
		}
	}
	c.Audio = j.Audio.Clone()
	if j.Score != nil {
		s := *j.Score
		c.Score = &s
	}
	return c
}

// CanTransition reports whether a job may move from one status to another.
// Staying in the same status is allowed so that replayed events are accepted.
func CanTransition(from, to JobStatus) bool {
	if from == to {
		return true
	}
	return from == JobStatusGenerating && (to == JobStatusCompleted || to == JobStatusFailed)
}

// IsTerminal reports whether status is completed or failed.
func IsTerminal(status JobStatus) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// IsValidJobKind checks if the given kind is supported.
func IsValidJobKind(kind JobKind) bool {
	switch kind {
	case JobKindQuiz, JobKindAudio:
		return true
	default:
		return false
	}
}

// IsValidJobStatus checks if the given status is a valid JobStatus.
func IsValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusGenerating, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}
