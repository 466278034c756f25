package main

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/jobs"
	"github.com/stretchr/testify/assert"
)

func TestJobDetail(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	soon := now.Add(42 * time.Minute)
	past := now.Add(-time.Minute)

	tests := map[string]struct {
		job  domain.Job
		want string
	}{
		"failed shows reason": {
			job:  domain.Job{Kind: domain.JobKindQuiz, Status: domain.JobStatusFailed, Error: "generation timed out"},
			want: "generation timed out",
		},
		"generating quiz shows requested count": {
			job:  domain.Job{Kind: domain.JobKindQuiz, Status: domain.JobStatusGenerating, QuestionCount: 5},
			want: "5 questions requested",
		},
		"generating audio": {
			job:  domain.Job{Kind: domain.JobKindAudio, Status: domain.JobStatusGenerating},
			want: "",
		},
		"audio with expiring link": {
			job: domain.Job{Kind: domain.JobKindAudio, Status: domain.JobStatusCompleted,
				Audio: &domain.AudioArtifact{URL: "u", ObjectPath: "p", ExpiresAt: &soon}},
			want: "link expires in 42m0s",
		},
		"audio with lapsed link": {
			job: domain.Job{Kind: domain.JobKindAudio, Status: domain.JobStatusCompleted,
				Audio: &domain.AudioArtifact{URL: "u", ObjectPath: "p", ExpiresAt: &past}},
			want: "link expired",
		},
		"audio with permanent link": {
			job: domain.Job{Kind: domain.JobKindAudio, Status: domain.JobStatusCompleted,
				Audio: &domain.AudioArtifact{URL: "u", ObjectPath: "p"}},
			want: "audio ready",
		},
		"audio removed": {
			job:  domain.Job{Kind: domain.JobKindAudio, Status: domain.JobStatusCompleted},
			want: "audio removed",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, jobDetail(tc.job, now))
		})
	}
}

func TestRenderJobs(t *testing.T) {
	now := time.Now()
	score := 7
	job := domain.Job{
		ID:        uuid.New(),
		Kind:      domain.JobKindQuiz,
		Status:    domain.JobStatusCompleted,
		Questions: make([]domain.QuizQuestion, 3),
		Score:     &score,
		CreatedAt: now,
	}

	out := renderJobs([]domain.Job{job}, now)
	assert.Contains(t, out, job.ID.String())
	assert.Contains(t, out, "Quiz")
	assert.Contains(t, out, "3 questions")
	assert.Contains(t, out, "7")
	assert.Contains(t, out, "SCORE")

	assert.Equal(t, "No jobs", renderJobs(nil, now))
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only-a"}}, nil)
	assert.Contains(t, out, "only-a")
	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestFormatChange(t *testing.T) {
	now := time.Now()
	job := domain.Job{ID: uuid.New(), Kind: domain.JobKindAudio, Status: domain.JobStatusFailed, Error: "worker crashed"}

	line := formatChange(jobs.Change{Op: jobs.OpUpsert, Job: job}, now)
	assert.Contains(t, line, "failed")
	assert.Contains(t, line, "worker crashed")
	assert.Contains(t, line, job.ID.String())

	assert.Contains(t, formatChange(jobs.Change{Op: jobs.OpRemove, Job: job}, now), "removed")
	assert.Contains(t, formatChange(jobs.Change{Op: jobs.OpReset}, now), "resynced")
}

func TestFormatScore(t *testing.T) {
	zero := 0
	assert.Equal(t, "-", formatScore(nil))
	assert.Equal(t, "0", formatScore(&zero))
}
