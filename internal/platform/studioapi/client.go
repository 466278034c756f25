// Package studioapi is the HTTP client the studio engine uses to reach the
// job API server.
package studioapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/jobs"
	"github.com/phrazzld/scry-studio/internal/studio"
	"github.com/phrazzld/scry-studio/internal/submit"
)

const defaultTimeout = 30 * time.Second

// Errors returned for API status codes.
var (
	ErrConflict = errors.New("request conflicts with job state")
	ErrRejected = errors.New("request rejected by server")
	ErrServer   = errors.New("server error")
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	TraceID    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api: http %d: %s", e.StatusCode, e.Message)
	if e.TraceID != "" {
		msg += " (trace " + e.TraceID + ")"
	}
	return msg
}

// Unwrap maps the status code onto a sentinel.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return jobs.ErrJobNotFound
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return domain.ErrUnauthorized
	case e.StatusCode == http.StatusConflict:
		return ErrConflict
	case e.StatusCode >= 500:
		return ErrServer
	default:
		return ErrRejected
	}
}

// Client implements studio.Backend over the job API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ studio.Backend = (*Client)(nil)

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

// New creates a client for the API at baseURL authenticating with a bearer token.
func New(baseURL, token string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.With("component", "studio_api_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type submitBody struct {
	JobID uuid.UUID      `json:"job_id"`
	Kind  domain.JobKind `json:"kind"`
	Count int            `json:"count,omitempty"`
}

type patchBody struct {
	Title *string `json:"title,omitempty"`
	Score *int    `json:"score,omitempty"`
}

type errorBody struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id"`
}

// SubmitJob implements submit.Client.
func (c *Client) SubmitJob(ctx context.Context, req submit.Request) (submit.Ack, error) {
	var ack submit.Ack
	err := c.do(ctx, http.MethodPost, notebookJobsPath(req.ParentID),
		submitBody{JobID: req.JobID, Kind: req.Kind, Count: req.Count}, &ack)
	return ack, err
}

// ListJobs implements realtime.Fetcher.
func (c *Client) ListJobs(ctx context.Context, parentID uuid.UUID) ([]domain.Job, error) {
	var list []domain.Job
	if err := c.do(ctx, http.MethodGet, notebookJobsPath(parentID), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetJob implements realtime.Fetcher.
func (c *Client) GetJob(ctx context.Context, jobID uuid.UUID) (domain.Job, error) {
	var job domain.Job
	err := c.do(ctx, http.MethodGet, jobPath(jobID), nil, &job)
	return job, err
}

// RefreshAudio implements artifact.Refresher.
func (c *Client) RefreshAudio(ctx context.Context, jobID uuid.UUID) (domain.AudioArtifact, error) {
	var audio domain.AudioArtifact
	err := c.do(ctx, http.MethodPost, jobPath(jobID)+"/audio/refresh", nil, &audio)
	return audio, err
}

// DeleteAudio implements playback.ArtifactRemover.
func (c *Client) DeleteAudio(ctx context.Context, jobID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, jobPath(jobID)+"/audio", nil, nil)
}

// RenameJob implements studio.Mutator.
func (c *Client) RenameJob(ctx context.Context, jobID uuid.UUID, title string) (domain.Job, error) {
	var job domain.Job
	err := c.do(ctx, http.MethodPatch, jobPath(jobID), patchBody{Title: &title}, &job)
	return job, err
}

// ScoreJob implements studio.Mutator.
func (c *Client) ScoreJob(ctx context.Context, jobID uuid.UUID, score int) (domain.Job, error) {
	var job domain.Job
	err := c.do(ctx, http.MethodPatch, jobPath(jobID), patchBody{Score: &score}, &job)
	return job, err
}

// DeleteJob implements studio.Mutator.
func (c *Client) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, jobPath(jobID), nil, nil)
}

func notebookJobsPath(parentID uuid.UUID) string {
	return "/api/notebooks/" + parentID.String() + "/jobs"
}

func jobPath(jobID uuid.UUID) string {
	return "/api/jobs/" + jobID.String()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.DebugContext(ctx, "api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var eb errorBody
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb); err == nil {
			if eb.Error != "" {
				apiErr.Message = eb.Error
			}
			apiErr.TraceID = eb.TraceID
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s %s response: %w", method, path, err)
	}
	return nil
}
