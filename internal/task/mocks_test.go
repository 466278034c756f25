package task

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/generation"
	"github.com/stretchr/testify/mock"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockTask is a Task whose Execute runs fn.
type mockTask struct {
	id       uuid.UUID
	taskType string
	fn       func(ctx context.Context) error
}

func newMockTask(fn func(ctx context.Context) error) *mockTask {
	return &mockTask{id: uuid.New(), taskType: "test", fn: fn}
}

func (t *mockTask) ID() uuid.UUID                     { return t.id }
func (t *mockTask) Type() string                      { return t.taskType }
func (t *mockTask) Execute(ctx context.Context) error { return t.fn(ctx) }

type MockLifecycle struct {
	mock.Mock
}

func (m *MockLifecycle) CompleteQuiz(
	ctx context.Context,
	jobID uuid.UUID,
	questions []domain.QuizQuestion,
) (*domain.Job, error) {
	args := m.Called(ctx, jobID, questions)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *MockLifecycle) CompleteAudio(ctx context.Context, jobID uuid.UUID, objectPath string) (*domain.Job, error) {
	args := m.Called(ctx, jobID, objectPath)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *MockLifecycle) Fail(ctx context.Context, jobID uuid.UUID, reason string) (*domain.Job, error) {
	args := m.Called(ctx, jobID, reason)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *MockLifecycle) ListGenerating(ctx context.Context, olderThan time.Duration) ([]domain.Job, error) {
	args := m.Called(ctx, olderThan)
	jobs, _ := args.Get(0).([]domain.Job)
	return jobs, args.Error(1)
}

type MockQuizGenerator struct {
	mock.Mock
}

func (m *MockQuizGenerator) GenerateQuiz(
	ctx context.Context,
	req generation.QuizRequest,
) ([]domain.QuizQuestion, error) {
	args := m.Called(ctx, req)
	questions, _ := args.Get(0).([]domain.QuizQuestion)
	return questions, args.Error(1)
}

type MockAudioSynthesizer struct {
	mock.Mock
}

func (m *MockAudioSynthesizer) SynthesizeAudio(ctx context.Context, req generation.AudioRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockSourceLoader struct {
	mock.Mock
}

func (m *MockSourceLoader) LoadSource(ctx context.Context, notebookID uuid.UUID) (string, error) {
	args := m.Called(ctx, notebookID)
	return args.String(0), args.Error(1)
}

// recordingScheduler records submitted jobs.
type recordingScheduler struct {
	mu   sync.Mutex
	jobs []domain.Job
	err  error
}

func (s *recordingScheduler) Submit(job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return s.err
}

func generatingJob(kind domain.JobKind) domain.Job {
	return domain.Job{
		ID:            uuid.New(),
		ParentID:      uuid.New(),
		OwnerID:       uuid.New(),
		Kind:          kind,
		Status:        domain.JobStatusGenerating,
		QuestionCount: 3,
		CreatedAt:     time.Now().Add(-time.Minute),
		UpdatedAt:     time.Now().Add(-time.Minute),
	}
}
