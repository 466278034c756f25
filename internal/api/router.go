package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	apimiddleware "github.com/phrazzld/scry-studio/internal/api/middleware"
	"github.com/phrazzld/scry-studio/internal/api/shared"
	"github.com/phrazzld/scry-studio/internal/service"
	"github.com/phrazzld/scry-studio/internal/service/auth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps holds what the router needs to build its handlers.
type RouterDeps struct {
	JobService service.JobService
	JWTService auth.JWTService
	// DB is pinged by /health when set.
	DB     *sql.DB
	Logger *slog.Logger
}

// NewRouter builds the HTTP routes.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.NewTraceMiddleware(deps.Logger))

	jobHandler := NewJobHandler(deps.JobService, deps.Logger)
	authMiddleware := apimiddleware.NewAuthMiddleware(deps.JWTService)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Route("/notebooks/{notebookID}/jobs", func(r chi.Router) {
			r.Post("/", jobHandler.SubmitJob)
			r.Get("/", jobHandler.ListJobs)
		})

		r.Route("/jobs/{jobID}", func(r chi.Router) {
			r.Get("/", jobHandler.GetJob)
			r.Patch("/", jobHandler.PatchJob)
			r.Delete("/", jobHandler.DeleteJob)
			r.Post("/audio/refresh", jobHandler.RefreshAudio)
			r.Delete("/audio", jobHandler.DeleteAudio)
		})
	})

	r.Get("/health", healthHandler(deps.DB))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Database unavailable", err)
				return
			}
		}
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}
