package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/artifact"
	"github.com/phrazzld/scry-studio/internal/clock"
	"github.com/phrazzld/scry-studio/internal/config"
	"github.com/phrazzld/scry-studio/internal/notify"
	"github.com/phrazzld/scry-studio/internal/platform/logger"
	"github.com/phrazzld/scry-studio/internal/platform/postgres"
	"github.com/phrazzld/scry-studio/internal/platform/redisbus"
	"github.com/phrazzld/scry-studio/internal/platform/studioapi"
	"github.com/phrazzld/scry-studio/internal/playback"
	"github.com/phrazzld/scry-studio/internal/realtime"
	"github.com/phrazzld/scry-studio/internal/studio"
	"github.com/spf13/cobra"
)

const (
	httpTimeout   = 30 * time.Second
	notifyTimeout = 10 * time.Second
)

var errNotebookRequired = errors.New("--notebook is required")

// transportFactory builds the realtime transport; the returned func releases
// it.
type transportFactory func(cfg config.ClientRealtimeConfig, log *slog.Logger) (realtime.Transport, func(), error)

type commandContext struct {
	notebookFlag string
	stop         context.CancelFunc

	configOnce sync.Once
	config     *config.ClientConfig
	configErr  error

	newTransport transportFactory
	httpClient   *http.Client
	clock        clock.Clock
}

func newCommandContext() *commandContext {
	return &commandContext{
		newTransport: newTransport,
		httpClient:   &http.Client{Timeout: httpTimeout},
		clock:        clock.Real{},
	}
}

func (c *commandContext) ensureConfig() (*config.ClientConfig, error) {
	c.configOnce.Do(func() {
		cfg, err := config.LoadClient()
		if err != nil {
			c.configErr = fmt.Errorf("failed to load configuration: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) notebookID() (uuid.UUID, error) {
	raw := strings.TrimSpace(c.notebookFlag)
	if raw == "" {
		return uuid.Nil, errNotebookRequired
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid notebook ID %q: %w", raw, err)
	}
	return id, nil
}

// withSession opens the notebook named by --notebook, runs fn and tears the
// session down again.
func (c *commandContext) withSession(cmd *cobra.Command, fn func(*studio.Session) error) error {
	parentID, err := c.notebookID()
	if err != nil {
		return err
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	log := logger.SetupWithWriter(cmd.ErrOrStderr(), cfg.LogLevel)

	transport, release, err := c.newTransport(cfg.Realtime, log)
	if err != nil {
		return err
	}
	defer release()

	backend := studioapi.New(cfg.BaseURL, cfg.Token, log, studioapi.WithHTTPClient(c.httpClient))
	engine := studio.New(backend, transport, c.notifier(cfg, log), c.clock, log, studio.Config{
		Guard: artifact.Config{
			CheckInterval: cfg.Expiry.CheckInterval,
			SoonWindow:    cfg.Expiry.SoonWindow,
		},
		Playback: playback.Config{
			MaxAutoRetries: cfg.Playback.MaxAutoRetries,
			RetryBaseDelay: cfg.Playback.RetryBaseDelay,
		},
	})
	defer engine.Close()

	ctx := logger.WithLogger(cmd.Context(), log.With("notebook_id", parentID))
	session, err := engine.Open(ctx, parentID)
	if err != nil {
		return fmt.Errorf("failed to open notebook %s: %w", parentID, err)
	}
	return fn(session)
}

func (c *commandContext) notifier(cfg *config.ClientConfig, log *slog.Logger) notify.Notifier {
	notifiers := notify.Multi{notify.LogNotifier{Logger: log}}
	if cfg.NtfyTopic != "" {
		notifiers = append(notifiers, notify.New(cfg.NtfyTopic, notifyTimeout))
	}
	return notifiers
}

func newTransport(cfg config.ClientRealtimeConfig, log *slog.Logger) (realtime.Transport, func(), error) {
	switch cfg.Transport {
	case "redis":
		bus, err := redisbus.New(cfg.RedisURL, log)
		if err != nil {
			return nil, nil, err
		}
		return bus, func() { _ = bus.Close() }, nil
	case "postgres":
		return postgres.NewNotifyTransport(cfg.DatabaseURL, log), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown realtime transport %q", cfg.Transport)
	}
}

func parseJobID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid job ID %q: %w", raw, err)
	}
	return id, nil
}
