package serverhttp

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"dvmap-service/internal/config"
	"dvmap-service/internal/middleware"
	stdHnd "dvmap-service/internal/standardize/handler"
	"dvmap-service/server/http/handlers"
)

func NewRouter(cfg config.Config, deps stdHnd.Deps, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()
	h := stdHnd.New(deps, logger)

	// порядок важен: recover -> realIP -> requestID -> logging -> metrics -> cors -> limit
	r.Use(middleware.Recover(logger))
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(middleware.CORS(cfg.Origins()))
	r.Use(middleware.LimitBytes(int64(cfg.MaxUploadMB) << 20))

	r.Get("/health", handlers.Health)
	if deps.Metrics != nil {
		r.Method("GET", "/metrics", deps.Metrics.Handler())
	}

	r.Post("/convert", h.Convert)
	r.Post("/resolve", h.Resolve)
	r.Get("/schema", h.Schema)
	r.Get("/runs", h.Runs)
	r.Get("/runs/{id}", h.Run)
	r.Get("/review", h.Backlog)

	return r
}
