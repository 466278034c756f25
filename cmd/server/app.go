package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/scry-studio/internal/api"
	"github.com/phrazzld/scry-studio/internal/clock"
	"github.com/phrazzld/scry-studio/internal/config"
	"github.com/phrazzld/scry-studio/internal/events"
	"github.com/phrazzld/scry-studio/internal/metrics"
	"github.com/phrazzld/scry-studio/internal/platform/audioworker"
	"github.com/phrazzld/scry-studio/internal/platform/gemini"
	"github.com/phrazzld/scry-studio/internal/platform/postgres"
	"github.com/phrazzld/scry-studio/internal/platform/redisbus"
	"github.com/phrazzld/scry-studio/internal/platform/storage"
	"github.com/phrazzld/scry-studio/internal/redact"
	"github.com/phrazzld/scry-studio/internal/service"
	"github.com/phrazzld/scry-studio/internal/service/auth"
	"github.com/phrazzld/scry-studio/internal/task"
)

const shutdownTimeout = 10 * time.Second

// application holds the wired server components.
type application struct {
	config     *config.Config
	logger     *slog.Logger
	db         *sql.DB
	bus        *redisbus.Bus
	jobService service.JobService
	jwtService auth.JWTService
	runner     *task.TaskRunner
}

// openDatabase opens the pool; the returned error never carries the URL's
// password.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := postgres.Open(ctx, cfg.URL, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime)
	if err != nil {
		return nil, errors.New(redact.Error(err))
	}
	return db, nil
}

// newApplication connects to backing services, migrates the schema and wires
// the job service, generation runner and API.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	metrics.MustRegister()

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app := &application{config: cfg, logger: logger, db: db}

	if err := postgres.Migrate(ctx, db, "up", logger); err != nil {
		app.cleanup()
		return nil, err
	}

	if err := app.wire(ctx); err != nil {
		app.cleanup()
		return nil, err
	}
	return app, nil
}

func (app *application) wire(ctx context.Context) error {
	cfg := app.config

	signer, err := storage.New(ctx, cfg.Storage, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create storage signer: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(app.logger)
	if cfg.Realtime.Transport == "redis" {
		if cfg.Redis.URL == "" {
			return errors.New("redis transport requires redis.url")
		}
		bus, err := redisbus.New(cfg.Redis.URL, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create redis bus: %w", err)
		}
		app.bus = bus
		if err := bus.Ping(ctx); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}
		emitter.RegisterHandler(bus)
	}

	jobStore := postgres.NewPostgresJobStore(app.db, app.logger)
	app.jobService, err = service.NewJobService(app.db, jobStore, signer, emitter, clock.Real{}, app.logger)
	if err != nil {
		return err
	}

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to create JWT service: %w", err)
	}

	generators, err := buildGenerators(ctx, cfg, app.logger)
	if err != nil {
		return err
	}
	app.runner = task.NewTaskRunner(
		app.jobService,
		task.NewGenerationTaskFactory(app.jobService, generators, app.logger),
		runnerConfig(cfg.Worker),
		app.logger,
	)
	emitter.RegisterHandler(task.NewJobEventHandler(app.runner, app.jobService, app.logger))
	return nil
}

func runnerConfig(cfg config.WorkerConfig) task.TaskRunnerConfig {
	return task.TaskRunnerConfig{
		WorkerCount:        cfg.Count,
		QueueSize:          cfg.QueueSize,
		StuckJobAge:        cfg.StuckJobAge,
		StuckCheckInterval: cfg.StuckCheckInterval,
	}
}

// buildGenerators creates the generation backends. Without an audio worker
// URL neither audio synthesis nor source loading is available, and jobs
// needing them fail when scheduled.
func buildGenerators(ctx context.Context, cfg *config.Config, logger *slog.Logger) (task.Generators, error) {
	quiz, err := gemini.NewGeminiGenerator(ctx, logger, cfg.LLM)
	if err != nil {
		return task.Generators{}, fmt.Errorf("failed to create quiz generator: %w", err)
	}
	return withAudioWorker(task.Generators{Quiz: quiz}, cfg.Worker, logger), nil
}

func withAudioWorker(generators task.Generators, cfg config.WorkerConfig, logger *slog.Logger) task.Generators {
	if cfg.AudioWorkerURL == "" {
		logger.Warn("audio worker URL not configured; audio and quiz jobs will fail")
		return generators
	}
	worker := audioworker.New(cfg.AudioWorkerURL, cfg.AudioTimeout, logger)
	generators.Audio = worker
	generators.Source = worker
	return generators
}

// run starts the runner and serves HTTP until ctx is cancelled.
func (app *application) run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.runner.Start(ctx); err != nil {
		return err
	}
	defer app.runner.Stop()

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: api.NewRouter(api.RouterDeps{
			JobService: app.jobService,
			JWTService: app.jwtService,
			DB:         app.db,
			Logger:     app.logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		app.logger.Info("shutting down server")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	app.logger.Info("server shutdown completed")
	return nil
}

// cleanup releases resources.
func (app *application) cleanup() {
	if app.bus != nil {
		if err := app.bus.Close(); err != nil {
			app.logger.Error("failed to close redis bus", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}
}
