package service_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/events"
	"github.com/phrazzld/scry-studio/internal/store"
	"github.com/stretchr/testify/mock"
)

// MockJobStore mocks the store.JobStore interface
type MockJobStore struct {
	mock.Mock
}

func (m *MockJobStore) Create(ctx context.Context, job *domain.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobStore) ListByParent(ctx context.Context, parentID uuid.UUID) ([]domain.Job, error) {
	args := m.Called(ctx, parentID)
	return args.Get(0).([]domain.Job), args.Error(1)
}

func (m *MockJobStore) ListGenerating(ctx context.Context, olderThan time.Duration) ([]domain.Job, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).([]domain.Job), args.Error(1)
}

func (m *MockJobStore) Complete(
	ctx context.Context,
	id uuid.UUID,
	questions []domain.QuizQuestion,
	audio *domain.AudioArtifact,
) (*domain.Job, error) {
	args := m.Called(ctx, id, questions, audio)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobStore) Fail(ctx context.Context, id uuid.UUID, reason string) (*domain.Job, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobStore) Update(ctx context.Context, id uuid.UUID, patch domain.JobPatch) (*domain.Job, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// WithTx returns the same mock so expectations cover transactional calls.
func (m *MockJobStore) WithTx(_ *sql.Tx) store.JobStore {
	return m
}

// MockAudioStore mocks the service.AudioStore interface
type MockAudioStore struct {
	mock.Mock
}

func (m *MockAudioStore) Sign(ctx context.Context, objectPath string) (domain.AudioArtifact, error) {
	args := m.Called(ctx, objectPath)
	return args.Get(0).(domain.AudioArtifact), args.Error(1)
}

func (m *MockAudioStore) Delete(ctx context.Context, objectPath string) error {
	args := m.Called(ctx, objectPath)
	return args.Error(0)
}

// recordingEmitter captures emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.JobChangeEvent
	err    error
}

func (e *recordingEmitter) EmitEvent(_ context.Context, event *events.JobChangeEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.err
}

func (e *recordingEmitter) Events() []*events.JobChangeEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*events.JobChangeEvent(nil), e.events...)
}
