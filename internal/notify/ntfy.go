package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/scry-studio/internal/domain"
)

const userAgent = "scry-studio/0.1"

// NtfyNotifier publishes notifications to an ntfy topic URL.
type NtfyNotifier struct {
	endpoint string
	client   *http.Client
}

// New returns an ntfy-backed notifier for topicURL, or Noop when no topic is
// configured.
func New(topicURL string, timeout time.Duration) Notifier {
	topicURL = strings.TrimSpace(topicURL)
	if topicURL == "" {
		return Noop{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NtfyNotifier{endpoint: topicURL, client: &http.Client{Timeout: timeout}}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

func (n *NtfyNotifier) JobCompleted(ctx context.Context, job domain.Job) error {
	return n.send(ctx, payload{
		title:   "Scry - " + DisplayTitle(job) + " ready",
		message: fmt.Sprintf("%s job %s finished generating.", job.Kind, job.ID),
		tags:    []string{"scry", string(job.Kind), "completed"},
	})
}

func (n *NtfyNotifier) JobFailed(ctx context.Context, job domain.Job) error {
	msg := fmt.Sprintf("%s job %s failed", job.Kind, job.ID)
	if job.Error != "" {
		msg += ": " + job.Error
	}
	return n.send(ctx, payload{
		title:    "Scry - Generation failed",
		message:  msg,
		tags:     []string{"scry", string(job.Kind), "failed"},
		priority: "high",
	})
}

func (n *NtfyNotifier) Error(ctx context.Context, message string, err error) error {
	var builder strings.Builder
	builder.WriteString(strings.TrimSpace(message))
	if err != nil {
		builder.WriteString(": ")
		builder.WriteString(strings.TrimSpace(err.Error()))
	}
	return n.send(ctx, payload{
		title:    "Scry - Error",
		message:  builder.String(),
		tags:     []string{"scry", "error"},
		priority: "high",
	})
}

func (n *NtfyNotifier) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
