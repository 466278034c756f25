package task

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/generation"
	"github.com/phrazzld/scry-studio/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type taskFixture struct {
	lifecycle *MockLifecycle
	quiz      *MockQuizGenerator
	audio     *MockAudioSynthesizer
	source    *MockSourceLoader
}

func newTaskFixture() *taskFixture {
	return &taskFixture{
		lifecycle: &MockLifecycle{},
		quiz:      &MockQuizGenerator{},
		audio:     &MockAudioSynthesizer{},
		source:    &MockSourceLoader{},
	}
}

func (f *taskFixture) generators() Generators {
	return Generators{Quiz: f.quiz, Audio: f.audio, Source: f.source}
}

func (f *taskFixture) task(t *testing.T, job domain.Job) *GenerationTask {
	t.Helper()
	task, err := NewGenerationTask(job, f.lifecycle, f.generators(), setupTestLogger())
	require.NoError(t, err)
	return task
}

func (f *taskFixture) assertExpectations(t *testing.T) {
	f.lifecycle.AssertExpectations(t)
	f.quiz.AssertExpectations(t)
	f.audio.AssertExpectations(t)
	f.source.AssertExpectations(t)
}

func sampleQuestions() []domain.QuizQuestion {
	return []domain.QuizQuestion{{
		Prompt:     "Which planet is largest?",
		Options:    []domain.QuizOption{{Key: "a", Text: "Jupiter"}, {Key: "b", Text: "Mars"}},
		CorrectKey: "a",
	}}
}

func TestGenerationTask_Quiz(t *testing.T) {
	f := newTaskFixture()
	job := generatingJob(domain.JobKindQuiz)
	questions := sampleQuestions()

	f.source.On("LoadSource", mock.Anything, job.ParentID).Return("Jupiter is the largest planet.", nil)
	f.quiz.On("GenerateQuiz", mock.Anything, generation.QuizRequest{
		NotebookID: job.ParentID,
		Source:     "Jupiter is the largest planet.",
		Count:      3,
	}).Return(questions, nil)
	f.lifecycle.On("CompleteQuiz", mock.Anything, job.ID, questions).Return(&domain.Job{}, nil)

	task := f.task(t, job)
	assert.Equal(t, job.ID, task.ID())
	assert.Equal(t, TaskTypeQuizGeneration, task.Type())
	require.NoError(t, task.Execute(context.Background()))
	f.assertExpectations(t)
}

func TestGenerationTask_Audio(t *testing.T) {
	f := newTaskFixture()
	job := generatingJob(domain.JobKindAudio)

	f.audio.On("SynthesizeAudio", mock.Anything, generation.AudioRequest{
		JobID:      job.ID,
		NotebookID: job.ParentID,
	}).Return("audio/overview.mp3", nil)
	f.lifecycle.On("CompleteAudio", mock.Anything, job.ID, "audio/overview.mp3").Return(&domain.Job{}, nil)

	task := f.task(t, job)
	assert.Equal(t, TaskTypeAudioGeneration, task.Type())
	require.NoError(t, task.Execute(context.Background()))
	f.assertExpectations(t)
}

func TestGenerationTask_FailureMarksJobFailed(t *testing.T) {
	f := newTaskFixture()
	job := generatingJob(domain.JobKindQuiz)
	genErr := fmt.Errorf("%w: model refused", generation.ErrContentBlocked)

	f.source.On("LoadSource", mock.Anything, job.ParentID).Return("text", nil)
	f.quiz.On("GenerateQuiz", mock.Anything, mock.Anything).Return(nil, genErr)
	f.lifecycle.On("Fail", mock.Anything, job.ID, "generation was blocked by the content filter").
		Return(&domain.Job{}, nil)

	err := f.task(t, job).Execute(context.Background())
	assert.ErrorIs(t, err, generation.ErrContentBlocked)
	f.assertExpectations(t)
}

func TestGenerationTask_SettledElsewhere(t *testing.T) {
	f := newTaskFixture()
	job := generatingJob(domain.JobKindAudio)

	f.audio.On("SynthesizeAudio", mock.Anything, mock.Anything).Return("audio/x.mp3", nil)
	f.lifecycle.On("CompleteAudio", mock.Anything, job.ID, "audio/x.mp3").Return(nil, service.ErrJobSettled)

	assert.NoError(t, f.task(t, job).Execute(context.Background()))
	f.lifecycle.AssertNotCalled(t, "Fail", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerationTask_CancellationLeavesJobGenerating(t *testing.T) {
	f := newTaskFixture()
	job := generatingJob(domain.JobKindAudio)
	ctx, cancel := context.WithCancel(context.Background())

	f.audio.On("SynthesizeAudio", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("", context.Canceled)

	err := f.task(t, job).Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	f.lifecycle.AssertNotCalled(t, "Fail", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerationTask_FailErrorIsReported(t *testing.T) {
	f := newTaskFixture()
	job := generatingJob(domain.JobKindQuiz)

	f.source.On("LoadSource", mock.Anything, job.ParentID).Return("", generation.ErrEmptySource)
	f.lifecycle.On("Fail", mock.Anything, job.ID, "notebook has no source material").
		Return(nil, errors.New("db down"))

	err := f.task(t, job).Execute(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestNewGenerationTask_Validation(t *testing.T) {
	f := newTaskFixture()

	_, err := NewGenerationTask(generatingJob(domain.JobKindQuiz), nil, f.generators(), nil)
	assert.Error(t, err)

	_, err = NewGenerationTask(generatingJob(domain.JobKindQuiz), f.lifecycle, Generators{Audio: f.audio}, nil)
	assert.Error(t, err)

	_, err = NewGenerationTask(generatingJob(domain.JobKindAudio), f.lifecycle, Generators{Quiz: f.quiz}, nil)
	assert.Error(t, err)

	job := generatingJob("video")
	_, err = NewGenerationTask(job, f.lifecycle, f.generators(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidJobKind)
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{generation.ErrEmptySource, "notebook has no source material"},
		{fmt.Errorf("x: %w", generation.ErrTransientFailure), "generation service unavailable"},
		{generation.ErrInvalidResponse, "generation returned an unusable result"},
		{errors.New("anything else"), "generation failed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FailureReason(tt.err))
	}
}
