package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/clock"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/jobs"
	"github.com/phrazzld/scry-studio/internal/realtime"
	"github.com/phrazzld/scry-studio/internal/submit"
)

// fakeTransport routes events to the live subscription of each parent.
type fakeTransport struct {
	mu       sync.Mutex
	handlers map[uuid.UUID]realtime.Handler
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[uuid.UUID]realtime.Handler)}
}

func (f *fakeTransport) Subscribe(ctx context.Context, parentID uuid.UUID, h realtime.Handler) (realtime.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := realtime.NewStream(cancel)
	f.mu.Lock()
	f.handlers[parentID] = h
	f.mu.Unlock()
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.handlers, parentID)
		f.mu.Unlock()
		s.Finish(nil)
	}()
	return s, nil
}

func (f *fakeTransport) emit(parentID uuid.UUID, ev realtime.Event) {
	f.mu.Lock()
	h := f.handlers[parentID]
	f.mu.Unlock()
	if h != nil {
		h(context.Background(), ev)
	}
}

func (f *fakeTransport) subscribed(parentID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[parentID]
	return ok
}

// fakeBackend is an in-memory API whose writes are echoed through the
// transport the way the database trigger echoes them.
type fakeBackend struct {
	mu        sync.Mutex
	clock     clock.Clock
	transport *fakeTransport
	rows      map[uuid.UUID]domain.Job
	refreshes int

	submitErr    error
	renameErr    error
	deleteErr    error
	beforeRename func()
	deletes      int
}

func newFakeBackend(clk clock.Clock, transport *fakeTransport) *fakeBackend {
	return &fakeBackend{clock: clk, transport: transport, rows: make(map[uuid.UUID]domain.Job)}
}

func (b *fakeBackend) write(id uuid.UUID, fn func(*domain.Job)) (old, updated domain.Job, err error) {
	b.mu.Lock()
	row, ok := b.rows[id]
	if !ok {
		b.mu.Unlock()
		return domain.Job{}, domain.Job{}, errors.New("404 job not found")
	}
	old = row.Clone()
	fn(&row)
	row.UpdatedAt = b.clock.Now()
	b.rows[id] = row
	b.mu.Unlock()

	updated = row.Clone()
	b.transport.emit(row.ParentID, realtime.Event{Type: realtime.EventUpdate, Old: &old, New: &updated})
	return old, updated, nil
}

func (b *fakeBackend) SubmitJob(_ context.Context, req submit.Request) (submit.Ack, error) {
	if b.submitErr != nil {
		return submit.Ack{}, b.submitErr
	}
	now := b.clock.Now()
	row := domain.Job{ID: req.JobID, ParentID: req.ParentID, Kind: req.Kind, Status: domain.JobStatusGenerating, CreatedAt: now, UpdatedAt: now}
	b.mu.Lock()
	b.rows[row.ID] = row
	b.mu.Unlock()
	b.transport.emit(row.ParentID, realtime.Event{Type: realtime.EventInsert, New: &row})
	return submit.Ack{JobID: row.ID}, nil
}

// completeAudio plays the worker finishing an audio job.
func (b *fakeBackend) completeAudio(id uuid.UUID, ttl time.Duration) {
	_, _, _ = b.write(id, func(j *domain.Job) {
		exp := b.clock.Now().Add(ttl)
		j.Status = domain.JobStatusCompleted
		j.Audio = &domain.AudioArtifact{URL: "https://storage.example.com/audio/" + id.String() + ".mp3?sig=0", ObjectPath: "audio/" + id.String() + ".mp3", ExpiresAt: &exp}
	})
}

// completeQuiz plays the worker finishing a quiz job.
func (b *fakeBackend) completeQuiz(id uuid.UUID, n int) {
	_, _, _ = b.write(id, func(j *domain.Job) {
		j.Status = domain.JobStatusCompleted
		for i := 0; i < n; i++ {
			j.Questions = append(j.Questions, domain.QuizQuestion{Prompt: fmt.Sprintf("Question %d", i+1), CorrectKey: "a",
				Options: []domain.QuizOption{{Key: "a", Text: "Right"}, {Key: "b", Text: "Wrong"}}})
		}
	})
}

func (b *fakeBackend) ListJobs(_ context.Context, parentID uuid.UUID) ([]domain.Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Job
	for _, r := range b.rows {
		if r.ParentID == parentID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (b *fakeBackend) GetJob(_ context.Context, id uuid.UUID) (domain.Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rows[id]
	if !ok {
		return domain.Job{}, errors.New("404 job not found")
	}
	return r.Clone(), nil
}

func (b *fakeBackend) RefreshAudio(_ context.Context, id uuid.UUID) (domain.AudioArtifact, error) {
	b.mu.Lock()
	b.refreshes++
	n := b.refreshes
	b.mu.Unlock()

	var art domain.AudioArtifact
	_, updated, err := b.write(id, func(j *domain.Job) {
		exp := b.clock.Now().Add(time.Hour)
		j.Audio.URL = fmt.Sprintf("https://storage.example.com/audio/%s.mp3?sig=%d", id, n)
		j.Audio.ExpiresAt = &exp
	})
	if err != nil {
		return art, err
	}
	return *updated.Audio, nil
}

func (b *fakeBackend) Refreshes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshes
}

func (b *fakeBackend) DeleteAudio(_ context.Context, id uuid.UUID) error {
	_, _, err := b.write(id, func(j *domain.Job) { j.Audio = nil })
	return err
}

func (b *fakeBackend) Deletes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deletes
}

func (b *fakeBackend) RenameJob(_ context.Context, id uuid.UUID, title string) (domain.Job, error) {
	if b.beforeRename != nil {
		b.beforeRename()
	}
	if b.renameErr != nil {
		return domain.Job{}, b.renameErr
	}
	_, updated, err := b.write(id, func(j *domain.Job) { j.Title = title })
	return updated, err
}

func (b *fakeBackend) ScoreJob(_ context.Context, id uuid.UUID, score int) (domain.Job, error) {
	_, updated, err := b.write(id, func(j *domain.Job) { j.Score = &score })
	return updated, err
}

func (b *fakeBackend) DeleteJob(_ context.Context, id uuid.UUID) error {
	b.mu.Lock()
	b.deletes++
	b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.mu.Lock()
	row, ok := b.rows[id]
	delete(b.rows, id)
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("api: http 404: %w", jobs.ErrJobNotFound)
	}
	b.transport.emit(row.ParentID, realtime.Event{Type: realtime.EventDelete, Old: &row})
	return nil
}

// recordingMedia records URLs and fails every load with loadErr when set.
type recordingMedia struct {
	mu       sync.Mutex
	urls     []string
	playing  bool
	position time.Duration
	loadErr  error
}

func (m *recordingMedia) Load(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, url)
	m.playing = false
	return m.loadErr
}

func (m *recordingMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = true
	return nil
}

func (m *recordingMedia) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
	return nil
}

func (m *recordingMedia) Seek(p time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = p
	return nil
}

func (m *recordingMedia) SetVolume(float64) error { return nil }

func (m *recordingMedia) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *recordingMedia) URLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.urls...)
}

func (m *recordingMedia) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}
