package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobsList(t *testing.T) {
	env := setupCLIEnv(t)
	now := time.Now().UTC()
	older := completedQuiz(env.api.parentID, "Chapter 1", now.Add(-time.Hour))
	newer := completedQuiz(env.api.parentID, "Chapter 2", now.Add(-time.Minute))
	env.api.add(older)
	env.api.add(newer)

	out, err := env.run(t, "jobs", "list")
	require.NoError(t, err)

	assert.Contains(t, out, older.ID.String())
	assert.Contains(t, out, "Chapter 2")
	assert.Contains(t, out, "1 questions")
	assert.Less(t, indexOf(out, "Chapter 2"), indexOf(out, "Chapter 1"), "newest first")
}

func TestJobsListEmpty(t *testing.T) {
	env := setupCLIEnv(t)

	out, err := env.run(t, "jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No jobs")
}

func TestNotebookFlagRequired(t *testing.T) {
	c := newCommandContext()
	root := newRootCommandWith(c)
	root.SetArgs([]string{"jobs", "list"})

	err := root.Execute()
	assert.ErrorIs(t, err, errNotebookRequired)
}

func TestJobsRenameAndScore(t *testing.T) {
	env := setupCLIEnv(t)
	job := completedQuiz(env.api.parentID, "", time.Now().UTC())
	env.api.add(job)

	out, err := env.run(t, "jobs", "rename", job.ID.String(), "Week 3 review")
	require.NoError(t, err)
	assert.Contains(t, out, "Week 3 review")

	_, err = env.run(t, "jobs", "score", job.ID.String(), "1")
	require.NoError(t, err)

	stored, ok := env.api.get(job.ID)
	require.True(t, ok)
	assert.Equal(t, "Week 3 review", stored.Title)
	require.NotNil(t, stored.Score)
	assert.Equal(t, 1, *stored.Score)
}

func TestJobsScoreRejectsNegative(t *testing.T) {
	env := setupCLIEnv(t)

	_, err := env.run(t, "jobs", "score", uuid.NewString(), "-1")
	assert.ErrorContains(t, err, "non-negative")
}

func TestJobsDelete(t *testing.T) {
	env := setupCLIEnv(t)
	job := completedQuiz(env.api.parentID, "Doomed", time.Now().UTC())
	env.api.add(job)

	out, err := env.run(t, "jobs", "delete", job.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted")

	_, ok := env.api.get(job.ID)
	assert.False(t, ok)
}

func TestQuizSubmitWait(t *testing.T) {
	env := setupCLIEnv(t)
	env.api.onSubmit = func(job domain.Job) {
		old := job
		done := job
		done.Status = domain.JobStatusCompleted
		done.Questions = completedQuiz(job.ParentID, "", job.CreatedAt).Questions
		done.UpdatedAt = time.Now().UTC()
		env.api.add(done)
		env.transport.emit(realtime.Event{Type: realtime.EventUpdate, Old: &old, New: &done})
	}

	out, err := env.run(t, "quiz", "submit", "--count", "3", "--wait")
	require.NoError(t, err)
	assert.Contains(t, out, "Submitted quiz job")
	assert.Contains(t, out, "completed")
}

func TestAudioSubmitWaitReportsFailure(t *testing.T) {
	env := setupCLIEnv(t)
	env.api.onSubmit = func(job domain.Job) {
		old := job
		failed := job
		failed.Status = domain.JobStatusFailed
		failed.Error = "audio synthesis failed"
		failed.UpdatedAt = time.Now().UTC()
		env.api.add(failed)
		env.transport.emit(realtime.Event{Type: realtime.EventUpdate, Old: &old, New: &failed})
	}

	_, err := env.run(t, "audio", "submit", "--wait")
	assert.ErrorContains(t, err, "audio synthesis failed")
}

func TestAudioDownload(t *testing.T) {
	env := setupCLIEnv(t)
	expires := time.Now().Add(time.Hour).UTC()
	created := time.Now().UTC()
	job := domain.Job{
		ID:       uuid.New(),
		ParentID: env.api.parentID,
		Kind:     domain.JobKindAudio,
		Status:   domain.JobStatusCompleted,
		Audio: &domain.AudioArtifact{
			URL:        env.server.URL + "/audio/overview.mp3",
			ObjectPath: "audio/overview.mp3",
			ExpiresAt:  &expires,
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
	env.api.add(job)
	dir := t.TempDir()

	out, err := env.run(t, "audio", "download", job.ID.String(), "--dir", dir)
	require.NoError(t, err)

	path := filepath.Join(dir, job.ID.String()+".mp3")
	assert.Contains(t, out, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ID3fake-audio", string(data))
}

func TestAudioDownloadWithoutAudio(t *testing.T) {
	env := setupCLIEnv(t)
	job := completedQuiz(env.api.parentID, "Not audio", time.Now().UTC())
	env.api.add(job)

	_, err := env.run(t, "audio", "download", job.ID.String())
	assert.Error(t, err)
}

func TestTokenIssue(t *testing.T) {
	t.Setenv("SCRY_AUTH_JWT_SECRET", "thisisasecretkeythatis32charslong!!")
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"token", "issue", "--user", uuid.NewString()})

	require.NoError(t, root.Execute())
	assert.Regexp(t, `^[\w-]+\.[\w-]+\.[\w-]+\n$`, out.String())
}

func TestTokenIssueRejectsBadUser(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"token", "issue", "--user", "nobody"})

	assert.ErrorContains(t, root.Execute(), "invalid user ID")
}

func indexOf(s, substr string) int {
	return strings.Index(s, substr)
}
