package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockJobService struct {
	mock.Mock
}

var _ service.JobService = (*MockJobService)(nil)

func (m *MockJobService) job(args mock.Arguments) (*domain.Job, error) {
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *MockJobService) Submit(ctx context.Context, req service.SubmitRequest) (*domain.Job, error) {
	return m.job(m.Called(ctx, req))
}

func (m *MockJobService) List(ctx context.Context, ownerID, parentID uuid.UUID) ([]domain.Job, error) {
	args := m.Called(ctx, ownerID, parentID)
	jobs, _ := args.Get(0).([]domain.Job)
	return jobs, args.Error(1)
}

func (m *MockJobService) Get(ctx context.Context, ownerID, jobID uuid.UUID) (*domain.Job, error) {
	return m.job(m.Called(ctx, ownerID, jobID))
}

func (m *MockJobService) Rename(ctx context.Context, ownerID, jobID uuid.UUID, title string) (*domain.Job, error) {
	return m.job(m.Called(ctx, ownerID, jobID, title))
}

func (m *MockJobService) Score(ctx context.Context, ownerID, jobID uuid.UUID, score int) (*domain.Job, error) {
	return m.job(m.Called(ctx, ownerID, jobID, score))
}

func (m *MockJobService) Delete(ctx context.Context, ownerID, jobID uuid.UUID) error {
	return m.Called(ctx, ownerID, jobID).Error(0)
}

func (m *MockJobService) RefreshAudio(ctx context.Context, ownerID, jobID uuid.UUID) (domain.AudioArtifact, error) {
	args := m.Called(ctx, ownerID, jobID)
	artifact, _ := args.Get(0).(domain.AudioArtifact)
	return artifact, args.Error(1)
}

func (m *MockJobService) DeleteAudio(ctx context.Context, ownerID, jobID uuid.UUID) error {
	return m.Called(ctx, ownerID, jobID).Error(0)
}

func (m *MockJobService) CompleteQuiz(
	ctx context.Context,
	jobID uuid.UUID,
	questions []domain.QuizQuestion,
) (*domain.Job, error) {
	return m.job(m.Called(ctx, jobID, questions))
}

func (m *MockJobService) CompleteAudio(ctx context.Context, jobID uuid.UUID, objectPath string) (*domain.Job, error) {
	return m.job(m.Called(ctx, jobID, objectPath))
}

func (m *MockJobService) Fail(ctx context.Context, jobID uuid.UUID, reason string) (*domain.Job, error) {
	return m.job(m.Called(ctx, jobID, reason))
}

func (m *MockJobService) ListGenerating(ctx context.Context, olderThan time.Duration) ([]domain.Job, error) {
	args := m.Called(ctx, olderThan)
	jobs, _ := args.Get(0).([]domain.Job)
	return jobs, args.Error(1)
}
