package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/config"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/realtime"
)

// stubTransport hands events to the subscribed channel on demand.
type stubTransport struct {
	mu      sync.Mutex
	handler realtime.Handler
}

func (t *stubTransport) Subscribe(_ context.Context, _ uuid.UUID, h realtime.Handler) (realtime.Subscription, error) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()

	streamCtx, cancel := context.WithCancel(context.Background())
	stream := realtime.NewStream(cancel)
	go func() {
		<-streamCtx.Done()
		stream.Finish(nil)
	}()
	return stream, nil
}

func (t *stubTransport) emit(ev realtime.Event) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h(context.Background(), ev)
	}
}

// fakeAPI is an in-memory job API for one notebook.
type fakeAPI struct {
	t         *testing.T
	parentID  uuid.UUID
	transport *stubTransport

	mu   sync.Mutex
	jobs map[uuid.UUID]domain.Job
	// onSubmit runs after a submission is acknowledged.
	onSubmit func(domain.Job)
}

func newFakeAPI(t *testing.T, transport *stubTransport) *fakeAPI {
	return &fakeAPI{
		t:         t,
		parentID:  uuid.New(),
		transport: transport,
		jobs:      make(map[uuid.UUID]domain.Job),
	}
}

func (a *fakeAPI) add(job domain.Job) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobs[job.ID] = job
}

func (a *fakeAPI) get(id uuid.UUID) (domain.Job, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	job, ok := a.jobs[id]
	return job, ok
}

func (a *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notebooks/{id}/jobs", func(w http.ResponseWriter, _ *http.Request) {
		a.mu.Lock()
		list := make([]domain.Job, 0, len(a.jobs))
		for _, job := range a.jobs {
			list = append(list, job)
		}
		a.mu.Unlock()
		sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
		writeJSON(w, http.StatusOK, list)
	})
	mux.HandleFunc("POST /api/notebooks/{id}/jobs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			JobID uuid.UUID      `json:"job_id"`
			Kind  domain.JobKind `json:"kind"`
			Count int            `json:"count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
			return
		}
		job, err := domain.NewJob(body.JobID, a.parentID, body.Kind, time.Now())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		job.QuestionCount = body.Count
		a.add(*job)
		writeJSON(w, http.StatusAccepted, map[string]uuid.UUID{"job_id": job.ID})
		if a.onSubmit != nil {
			go a.onSubmit(*job)
		}
	})
	mux.HandleFunc("PATCH /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := uuid.Parse(r.PathValue("id"))
		job, ok := a.get(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		var body struct {
			Title *string `json:"title"`
			Score *int    `json:"score"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Title != nil {
			job.Title = *body.Title
		}
		if body.Score != nil {
			job.Score = body.Score
		}
		job.UpdatedAt = time.Now()
		a.add(job)
		writeJSON(w, http.StatusOK, job)
	})
	mux.HandleFunc("DELETE /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := uuid.Parse(r.PathValue("id"))
		a.mu.Lock()
		_, ok := a.jobs[id]
		delete(a.jobs, id)
		a.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /audio/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake-audio"))
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type cliEnv struct {
	api       *fakeAPI
	server    *httptest.Server
	transport *stubTransport
}

func setupCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	transport := &stubTransport{}
	api := newFakeAPI(t, transport)
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	t.Setenv("SCRY_CLIENT_BASE_URL", server.URL)
	t.Setenv("SCRY_CLIENT_LOG_LEVEL", "error")
	t.Setenv("SCRY_CLIENT_REALTIME_TRANSPORT", "postgres")
	t.Setenv("SCRY_CLIENT_REALTIME_DATABASE_URL", "postgres://studio@localhost:5432/studio")
	t.Setenv("SCRY_CLIENT_DOWNLOAD_DIR", t.TempDir())

	return &cliEnv{api: api, server: server, transport: transport}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := newCommandContext()
	c.httpClient = e.server.Client()
	c.newTransport = func(config.ClientRealtimeConfig, *slog.Logger) (realtime.Transport, func(), error) {
		return e.transport, func() {}, nil
	}

	root := newRootCommandWith(c)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--notebook", e.api.parentID.String()}, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func completedQuiz(parentID uuid.UUID, title string, created time.Time) domain.Job {
	return domain.Job{
		ID:            uuid.New(),
		ParentID:      parentID,
		OwnerID:       uuid.New(),
		Kind:          domain.JobKindQuiz,
		Status:        domain.JobStatusCompleted,
		QuestionCount: 1,
		Questions: []domain.QuizQuestion{{
			Prompt:     "What is 2+2?",
			Options:    []domain.QuizOption{{Key: "a", Text: "4"}, {Key: "b", Text: "5"}},
			CorrectKey: "a",
		}},
		Title:     title,
		CreatedAt: created,
		UpdatedAt: created,
	}
}
