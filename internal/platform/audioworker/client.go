// Package audioworker is the HTTP client of the external worker that owns
// notebook content and synthesizes deep-dive audio overviews.
package audioworker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/generation"
)

const (
	defaultTimeout = 10 * time.Minute
	maxErrorBody   = 4 << 10
)

// Client talks to the audio worker.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ generation.AudioSynthesizer = (*Client)(nil)
	_ generation.SourceLoader     = (*Client)(nil)
)

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a client for the worker at baseURL. timeout bounds a single
// synthesis call; zero uses a ten minute default.
func New(baseURL string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "audio_worker_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type synthesizeRequest struct {
	JobID      uuid.UUID `json:"job_id"`
	NotebookID uuid.UUID `json:"notebook_id"`
}

type synthesizeResponse struct {
	ObjectPath string `json:"object_path"`
}

type sourceResponse struct {
	Text string `json:"text"`
}

// SynthesizeAudio asks the worker to render the notebook's audio overview and
// waits for the object path of the finished file.
func (c *Client) SynthesizeAudio(ctx context.Context, req generation.AudioRequest) (string, error) {
	log := c.logger.With("job_id", req.JobID, "notebook_id", req.NotebookID)
	start := time.Now()

	var resp synthesizeResponse
	if err := c.do(ctx, http.MethodPost, "/v1/audio", synthesizeRequest(req), &resp); err != nil {
		log.ErrorContext(ctx, "audio synthesis failed", "error", err)
		return "", err
	}
	if resp.ObjectPath == "" {
		return "", fmt.Errorf("%w: worker returned no object path", generation.ErrInvalidResponse)
	}

	log.InfoContext(ctx, "audio synthesized",
		"object_path", resp.ObjectPath,
		"duration_ms", time.Since(start).Milliseconds())
	return resp.ObjectPath, nil
}

// LoadSource fetches the concatenated text of a notebook's sources.
func (c *Client) LoadSource(ctx context.Context, notebookID uuid.UUID) (string, error) {
	var resp sourceResponse
	if err := c.do(ctx, http.MethodGet, "/v1/notebooks/"+notebookID.String()+"/source", nil, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", generation.ErrEmptySource
	}
	return resp.Text, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("audio worker: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("audio worker: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: audio worker %s %s: %v", generation.ErrTransientFailure, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: audio worker: decode response: %v", generation.ErrInvalidResponse, err)
	}
	return nil
}

// statusError classifies a non-2xx worker response.
func statusError(code int, body string) error {
	switch {
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: audio worker: http %d: %s", generation.ErrTransientFailure, code, body)
	case code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: audio worker: %s", generation.ErrContentBlocked, body)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: audio worker: notebook not found", generation.ErrGenerationFailed)
	default:
		return fmt.Errorf("%w: audio worker: http %d: %s", generation.ErrGenerationFailed, code, body)
	}
}
