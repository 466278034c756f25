package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/jobs"
	"github.com/phrazzld/scry-studio/internal/platform/studioapi"
	"github.com/phrazzld/scry-studio/internal/service"
	"github.com/phrazzld/scry-studio/internal/submit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestClientContract drives the router through the CLI's HTTP client.
func TestClientContract(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	client := studioapi.New(srv.URL, s.token, nil)
	ctx := context.Background()
	notebookID := uuid.New()
	jobID := uuid.New()

	s.svc.On("Submit", mock.Anything, service.SubmitRequest{
		JobID: jobID, ParentID: notebookID, OwnerID: s.userID, Kind: domain.JobKindAudio,
	}).Return(&domain.Job{ID: jobID}, nil)
	ack, err := client.SubmitJob(ctx, submit.Request{JobID: jobID, ParentID: notebookID, Kind: domain.JobKindAudio})
	require.NoError(t, err)
	assert.Equal(t, jobID, ack.JobID)

	job := completedQuiz(s.userID)
	job.ParentID = notebookID
	s.svc.On("List", mock.Anything, s.userID, notebookID).Return([]domain.Job{*job}, nil)
	listed, err := client.ListJobs(ctx, notebookID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, job.Questions, listed[0].Questions)

	renamed := *job
	renamed.Title = "Renamed"
	s.svc.On("Rename", mock.Anything, s.userID, job.ID, "Renamed").Return(&renamed, nil)
	got, err := client.RenameJob(ctx, job.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	missing := uuid.New()
	s.svc.On("Get", mock.Anything, s.userID, missing).Return(nil, service.ErrJobNotFound)
	_, err = client.GetJob(ctx, missing)
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	s.svc.On("DeleteAudio", mock.Anything, s.userID, job.ID).Return(service.ErrJobSettled)
	err = client.DeleteAudio(ctx, job.ID)
	assert.ErrorIs(t, err, studioapi.ErrConflict)

	s.svc.On("Delete", mock.Anything, s.userID, job.ID).Return(nil)
	assert.NoError(t, client.DeleteJob(ctx, job.ID))
}
