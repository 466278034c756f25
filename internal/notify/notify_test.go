package notify_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReturnsNoopWithoutTopic(t *testing.T) {
	n := notify.New("  ", time.Second)
	assert.IsType(t, notify.Noop{}, n)
	assert.NoError(t, n.JobCompleted(context.Background(), domain.Job{}))
}

func TestNtfyNotifier_JobCompleted(t *testing.T) {
	var gotTitle, gotTags, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotTags = r.Header.Get("Tags")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := notify.New(srv.URL, time.Second)
	job := domain.Job{ID: uuid.New(), Kind: domain.JobKindQuiz, Title: "Cell biology"}

	require.NoError(t, n.JobCompleted(context.Background(), job))
	assert.Equal(t, "Scry - Cell biology ready", gotTitle)
	assert.Equal(t, "scry,quiz,completed", gotTags)
	assert.Contains(t, gotBody, job.ID.String())
}

func TestNtfyNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic disabled", http.StatusForbidden)
	}))
	defer srv.Close()

	n := notify.New(srv.URL, time.Second)
	err := n.Error(context.Background(), "rename failed", errors.New("boom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestInbox_PushAndDismiss(t *testing.T) {
	inbox := notify.NewInbox()

	var seen [][]notify.Notification
	unsubscribe := inbox.Subscribe(func(items []notify.Notification) { seen = append(seen, items) })

	job := domain.Job{ID: uuid.New(), Kind: domain.JobKindAudio}
	require.NoError(t, inbox.JobCompleted(context.Background(), job))
	require.NoError(t, inbox.Error(context.Background(), "Could not submit quiz", errors.New("offline")))

	items := inbox.List()
	require.Len(t, items, 2)
	assert.Equal(t, notify.KindJobCompleted, items[0].Kind)
	assert.Equal(t, job.ID, items[0].JobID)
	assert.Equal(t, "Deep-dive audio overview ready", items[0].Title)
	assert.Equal(t, notify.KindError, items[1].Kind)
	assert.Equal(t, "offline", items[1].Message)

	assert.True(t, inbox.Dismiss(items[0].ID))
	assert.False(t, inbox.Dismiss(items[0].ID))
	assert.Len(t, inbox.List(), 1)
	assert.Len(t, seen, 3)

	unsubscribe()
	require.NoError(t, inbox.JobFailed(context.Background(), job))
	assert.Len(t, seen, 3)
}

type failingNotifier struct{ notify.Noop }

func (failingNotifier) JobCompleted(context.Context, domain.Job) error {
	return errors.New("unreachable")
}

func TestMulti_FansOut(t *testing.T) {
	inbox := notify.NewInbox()
	m := notify.Multi{inbox, failingNotifier{}}

	err := m.JobCompleted(context.Background(), domain.Job{Kind: domain.JobKindQuiz})
	assert.Error(t, err)
	assert.Len(t, inbox.List(), 1)

	assert.NoError(t, m.JobFailed(context.Background(), domain.Job{Kind: domain.JobKindQuiz}))
}
