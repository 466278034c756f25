package playback

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/scry-studio/internal/clock"
)

// checkResponse maps artifact host responses onto the failure taxonomy.
// Signed URL hosts answer a lapsed signature with 401 or 403, and some with
// a 400 whose body mentions the expiry.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: artifact host returned %d", ErrCredentialExpired, resp.StatusCode)
	case resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(string(body)), "expired"):
		return fmt.Errorf("%w: artifact host returned 400: %s", ErrCredentialExpired, strings.TrimSpace(string(body)))
	default:
		return fmt.Errorf("artifact host returned %d", resp.StatusCode)
	}
}

// HTTPMedia is a headless Media that verifies the artifact is reachable and
// tracks the playback position against a clock. It is what the CLI plays
// through.
type HTTPMedia struct {
	client *http.Client
	clock  clock.Clock

	mu        sync.Mutex
	url       string
	playing   bool
	startedAt time.Time
	offset    time.Duration
	volume    float64
}

// NewHTTPMedia creates a headless media element.
func NewHTTPMedia(client *http.Client, clk clock.Clock) *HTTPMedia {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPMedia{client: client, clock: clk, volume: 1}
}

// Load requests the first byte of url.
func (m *HTTPMedia) Load(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("invalid artifact url: %w", err)
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach artifact host: %w", err)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.url = url
	m.playing = false
	m.offset = 0
	return nil
}

func (m *HTTPMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.url == "" {
		return ErrNotLoaded
	}
	if !m.playing {
		m.playing = true
		m.startedAt = m.clock.Now()
	}
	return nil
}

func (m *HTTPMedia) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playing {
		m.offset += m.clock.Now().Sub(m.startedAt)
		m.playing = false
	}
	return nil
}

func (m *HTTPMedia) Seek(position time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offset = position
	if m.playing {
		m.startedAt = m.clock.Now()
	}
	return nil
}

func (m *HTTPMedia) SetVolume(volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = volume
	return nil
}

func (m *HTTPMedia) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playing {
		return m.offset + m.clock.Now().Sub(m.startedAt)
	}
	return m.offset
}

// HTTPDownloader fetches artifacts to local files.
type HTTPDownloader struct {
	Client *http.Client
}

// Download streams url into dest, replacing it atomically.
func (d HTTPDownloader) Download(ctx context.Context, url, dest string) error {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("invalid artifact url: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach artifact host: %w", err)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	return os.Rename(tmp.Name(), dest)
}
