package playback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/clock"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMedia fails loads from a queue of errors and records everything.
type fakeMedia struct {
	mu       sync.Mutex
	loads    []string
	failures []error
	playing  bool
	position time.Duration
	volume   float64
}

func (m *fakeMedia) Load(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads = append(m.loads, url)
	m.playing = false
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return err
	}
	return nil
}

func (m *fakeMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = true
	return nil
}

func (m *fakeMedia) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
	return nil
}

func (m *fakeMedia) Seek(p time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = p
	return nil
}

func (m *fakeMedia) SetVolume(v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
	return nil
}

func (m *fakeMedia) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *fakeMedia) Loads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loads...)
}

// fakeRefresher records triggers; tests complete refreshes by hand.
type fakeRefresher struct {
	mu        sync.Mutex
	triggers  int
	refreshed map[int]func(domain.AudioArtifact)
	failed    map[int]func(error)
	next      int
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{refreshed: map[int]func(domain.AudioArtifact){}, failed: map[int]func(error){}}
}

func (f *fakeRefresher) Trigger() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
}

func (f *fakeRefresher) OnRefreshed(fn func(domain.AudioArtifact)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.refreshed[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.refreshed, id)
	}
}

func (f *fakeRefresher) OnRefreshFailed(fn func(error)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.failed[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.failed, id)
	}
}

func (f *fakeRefresher) complete(a domain.AudioArtifact) {
	f.mu.Lock()
	var hooks []func(domain.AudioArtifact)
	for _, fn := range f.refreshed {
		hooks = append(hooks, fn)
	}
	f.mu.Unlock()
	for _, fn := range hooks {
		fn(a)
	}
}

func (f *fakeRefresher) Triggers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggers
}

type mockRemover struct {
	calls     []uuid.UUID
	DeleteErr error
}

func (m *mockRemover) DeleteAudio(_ context.Context, id uuid.UUID) error {
	m.calls = append(m.calls, id)
	return m.DeleteErr
}

var created = time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)

type fixture struct {
	clock     *clock.Fake
	registry  *jobs.Registry
	media     *fakeMedia
	refresher *fakeRefresher
	remover   *mockRemover
	job       domain.Job
	player    *Player
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		clock:     clock.NewFake(created),
		registry:  jobs.NewRegistry(uuid.New(), logger),
		media:     &fakeMedia{},
		refresher: newFakeRefresher(),
		remover:   &mockRemover{},
	}
	exp := created.Add(time.Hour)
	f.job = domain.Job{
		ID:        uuid.New(),
		ParentID:  f.registry.ParentID(),
		Kind:      domain.JobKindAudio,
		Status:    domain.JobStatusCompleted,
		Audio:     &domain.AudioArtifact{URL: "https://storage.example.com/a.mp3?sig=1", ObjectPath: "audio/a.mp3", ExpiresAt: &exp},
		CreatedAt: created,
		UpdatedAt: created,
	}
	f.registry.Upsert(f.job)
	f.player = New(f.job.ID, Deps{
		Registry:  f.registry,
		Media:     f.media,
		Refresher: f.refresher,
		Remover:   f.remover,
		Clock:     f.clock,
		Logger:    logger,
	}, Config{MaxAutoRetries: 2, RetryBaseDelay: time.Second})
	t.Cleanup(f.player.Close)
	return f
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()
	base := time.Second

	d1 := RetryDelay(1, base, created)
	d2 := RetryDelay(2, base, created)
	assert.GreaterOrEqual(t, d1, base)
	assert.LessOrEqual(t, d1, base+base/4)
	assert.GreaterOrEqual(t, d2, 2*base)
	assert.LessOrEqual(t, d2, 2*base+base/4)
	assert.Equal(t, d1, RetryDelay(1, base, created), "jitter is deterministic per job")
}

func TestClassify(t *testing.T) {
	t.Parallel()
	past := created.Add(-time.Minute)
	future := created.Add(time.Hour)

	assert.Equal(t, FailureCredentialExpired, Classify(ErrCredentialExpired, nil, created))
	assert.Equal(t, FailureCredentialExpired, Classify(errors.New("network"), &domain.AudioArtifact{ExpiresAt: &past}, created))
	assert.Equal(t, FailureTransient, Classify(errors.New("decode"), &domain.AudioArtifact{ExpiresAt: &future}, created))
	assert.Equal(t, FailureTransient, Classify(errors.New("decode"), &domain.AudioArtifact{}, created))
}

func TestPlayer_LoadPlayPause(t *testing.T) {
	f := newFixture(t)

	var states []State
	f.player.Subscribe(func(s State) { states = append(states, s) })

	require.NoError(t, f.player.Play())
	assert.Equal(t, StatePlaying, f.player.State())
	assert.Equal(t, []State{StateLoading, StateReady, StatePlaying}, states)

	require.NoError(t, f.player.Pause())
	assert.Equal(t, StateReady, f.player.State())

	require.NoError(t, f.player.SetVolume(1.7))
	assert.Equal(t, 1.0, f.media.volume)
	require.NoError(t, f.player.Seek(42*time.Second))
	assert.Equal(t, 42*time.Second, f.media.Position())
}

func TestPlayer_TransientFailuresGoTerminal(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("decode error")
	f.media.failures = []error{boom, boom, boom, boom}

	assert.Error(t, f.player.Load())
	assert.Equal(t, StateErrored, f.player.State())
	assert.Equal(t, 1, f.player.Attempts())

	f.clock.Advance(2 * time.Second)
	assert.Len(t, f.media.Loads(), 2)
	assert.Equal(t, StateErrored, f.player.State())

	f.clock.Advance(3 * time.Second)
	assert.Len(t, f.media.Loads(), 3)
	assert.Equal(t, StateTerminal, f.player.State())
	assert.ErrorIs(t, f.player.Err(), ErrTerminal)

	f.clock.Advance(time.Hour)
	assert.Len(t, f.media.Loads(), 3, "no automatic reloads after terminal")
	assert.Equal(t, 0, f.clock.Pending())

	// Manual retry is distinct from the automatic path and resets the budget.
	f.media.failures = nil
	require.NoError(t, f.player.Retry())
	assert.Equal(t, StateReady, f.player.State())
	assert.Equal(t, 0, f.player.Attempts())
}

func TestPlayer_CredentialFailureDoesNotConsumeBudget(t *testing.T) {
	f := newFixture(t)
	f.media.failures = []error{errors.New("decode error"), ErrCredentialExpired}

	assert.Error(t, f.player.Play(), "first load fails transiently")

	assert.Equal(t, 1, f.player.Attempts())
	f.clock.Advance(2 * time.Second)

	// Second load is rejected for an expired credential.
	assert.Equal(t, StateErrored, f.player.State())
	assert.Equal(t, 1, f.player.Attempts(), "credential failures do not consume the budget")
	assert.Equal(t, 1, f.refresher.Triggers())
	assert.Equal(t, 0, f.clock.Pending(), "no same-url reload is scheduled")

	exp := created.Add(2 * time.Hour)
	fresh := domain.AudioArtifact{URL: "https://storage.example.com/a.mp3?sig=2", ObjectPath: "audio/a.mp3", ExpiresAt: &exp}
	require.NoError(t, f.registry.Patch(f.job.ID, domain.JobPatch{Audio: &fresh}))
	f.refresher.complete(fresh)

	assert.Equal(t, StatePlaying, f.player.State())
	assert.Equal(t, 0, f.player.Attempts(), "refresh resets the counter")
	loads := f.media.Loads()
	assert.Equal(t, fresh.URL, loads[len(loads)-1])
}

func TestPlayer_RejectedReissuedURLUsesRetryBudget(t *testing.T) {
	f := newFixture(t)
	f.media.failures = []error{
		ErrCredentialExpired, ErrCredentialExpired, ErrCredentialExpired,
		ErrCredentialExpired, ErrCredentialExpired, ErrCredentialExpired,
	}

	var states []State
	f.player.Subscribe(func(s State) { states = append(states, s) })

	assert.ErrorIs(t, f.player.Play(), ErrCredentialExpired)
	require.Equal(t, 1, f.refresher.Triggers())

	exp := created.Add(2 * time.Hour)
	fresh := domain.AudioArtifact{URL: "https://storage.example.com/a.mp3?sig=2", ObjectPath: "audio/a.mp3", ExpiresAt: &exp}
	require.NoError(t, f.registry.Patch(f.job.ID, domain.JobPatch{Audio: &fresh}))
	f.refresher.complete(fresh)

	assert.Equal(t, 1, f.refresher.Triggers(), "a rejected reissued url does not trigger another refresh")
	assert.Equal(t, 1, f.player.Attempts())
	assert.Equal(t, StateErrored, f.player.State())

	f.clock.Advance(2 * time.Second)
	assert.Equal(t, 2, f.player.Attempts())
	f.clock.Advance(3 * time.Second)

	assert.Equal(t, StateTerminal, f.player.State())
	assert.ErrorIs(t, f.player.Err(), ErrTerminal)
	assert.ErrorIs(t, f.player.Err(), ErrCredentialExpired)
	assert.Len(t, f.media.Loads(), 4)
	assert.Equal(t, 1, f.refresher.Triggers())

	f.clock.Advance(time.Hour)
	assert.Len(t, f.media.Loads(), 4)
	require.GreaterOrEqual(t, len(states), 2)
	assert.Equal(t, []State{StateErrored, StateTerminal}, states[len(states)-2:])
}

func TestPlayer_PlayFromTerminalRequiresRetry(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("decode error")
	f.media.failures = []error{boom, boom, boom}

	assert.Error(t, f.player.Load())
	f.clock.Advance(2 * time.Second)
	f.clock.Advance(3 * time.Second)
	require.Equal(t, StateTerminal, f.player.State())

	err := f.player.Play()
	assert.ErrorIs(t, err, ErrTerminal)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, f.media.Loads(), 3, "play does not reload from terminal")

	require.NoError(t, f.player.Retry())
	assert.Equal(t, StatePlaying, f.player.State())
}

func TestPlayer_ExpiredArtifactClassifiedAsCredential(t *testing.T) {
	f := newFixture(t)
	f.media.failures = []error{errors.New("network error")}
	f.clock.Advance(61 * time.Minute)

	assert.Error(t, f.player.Load())
	assert.Equal(t, 0, f.player.Attempts())
	assert.Equal(t, 1, f.refresher.Triggers())
}

func TestPlayer_MediaErrorWhilePlayingResumesAfterRefresh(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.player.Play())
	require.NoError(t, f.player.Seek(90*time.Second))

	f.player.HandleMediaError(ErrCredentialExpired)
	assert.Equal(t, StateErrored, f.player.State())

	exp := created.Add(2 * time.Hour)
	fresh := domain.AudioArtifact{URL: "https://storage.example.com/a.mp3?sig=2", ObjectPath: "audio/a.mp3", ExpiresAt: &exp}
	require.NoError(t, f.registry.Patch(f.job.ID, domain.JobPatch{Audio: &fresh}))
	f.refresher.complete(fresh)

	assert.Equal(t, StatePlaying, f.player.State())
	assert.Equal(t, 90*time.Second, f.media.Position(), "position is restored")
}

func TestPlayer_CloseCancelsPendingRetry(t *testing.T) {
	f := newFixture(t)
	f.media.failures = []error{errors.New("decode error")}

	assert.Error(t, f.player.Load())
	require.Equal(t, 1, f.clock.Pending())

	f.player.Close()
	f.clock.Advance(time.Minute)
	assert.Len(t, f.media.Loads(), 1)
	assert.ErrorIs(t, f.player.Play(), ErrClosed)

	f.refresher.complete(domain.AudioArtifact{URL: "late"})
	assert.Len(t, f.media.Loads(), 1, "refresh after close is ignored")
}

func TestPlayer_Delete(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.player.Play())

	require.NoError(t, f.player.Delete(context.Background()))
	assert.Equal(t, []uuid.UUID{f.job.ID}, f.remover.calls)
	assert.Equal(t, StateIdle, f.player.State())

	got, _ := f.registry.Get(f.job.ID)
	assert.Nil(t, got.Audio)
	assert.ErrorIs(t, f.player.Play(), ErrNoAudio)
}

func TestPlayer_DeleteFailureKeepsAudio(t *testing.T) {
	f := newFixture(t)
	f.remover.DeleteErr = errors.New("forbidden")

	assert.Error(t, f.player.Delete(context.Background()))
	got, _ := f.registry.Get(f.job.ID)
	assert.NotNil(t, got.Audio)
}

func TestPlayer_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ID3-audio-bytes"))
	}))
	defer srv.Close()

	f := newFixture(t)
	require.NoError(t, f.registry.Patch(f.job.ID, domain.JobPatch{Audio: &domain.AudioArtifact{URL: srv.URL + "/a.mp3", ObjectPath: "audio/a.mp3"}}))
	f.player.deps.Downloader = HTTPDownloader{Client: srv.Client()}

	dir := t.TempDir()
	path, err := f.player.Download(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, f.job.ID.String()+".mp3"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio-bytes", string(data))
}

func TestHTTPMedia_ClassifiesHostResponses(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		credential bool
		ok         bool
	}{
		{"ok", http.StatusPartialContent, "x", false, true},
		{"forbidden", http.StatusForbidden, "", true, false},
		{"unauthorized", http.StatusUnauthorized, "", true, false},
		{"expired token", http.StatusBadRequest, "<Code>ExpiredToken</Code>", true, false},
		{"bad request", http.StatusBadRequest, "malformed", false, false},
		{"server error", http.StatusInternalServerError, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "bytes=0-0", r.Header.Get("Range"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			m := NewHTTPMedia(srv.Client(), clock.NewFake(created))
			err := m.Load(context.Background(), srv.URL)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.credential, errors.Is(err, ErrCredentialExpired))
		})
	}
}

func TestHTTPMedia_Position(t *testing.T) {
	clk := clock.NewFake(created)
	m := NewHTTPMedia(nil, clk)
	assert.ErrorIs(t, m.Play(), ErrNotLoaded)

	m.url = "loaded"
	require.NoError(t, m.Play())
	clk.Advance(10 * time.Second)
	require.NoError(t, m.Pause())
	clk.Advance(time.Minute)
	assert.Equal(t, 10*time.Second, m.Position())

	require.NoError(t, m.Seek(time.Minute))
	require.NoError(t, m.Play())
	clk.Advance(5 * time.Second)
	assert.Equal(t, 65*time.Second, m.Position())
}
