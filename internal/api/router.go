package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterConfig struct {
	Service SchedulingService
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(chimiddleware.Recoverer)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Service))
		r.Post("/preview", previewConflictsHandler(cfg.Service))
		r.Patch("/{id}", rescheduleAppointmentHandler(cfg.Service))
		r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Service))
	})

	r.Route("/waiting-entries", func(r chi.Router) {
		r.Post("/", enqueueWaitingHandler(cfg.Service))
		r.Get("/next", promoteNextHandler(cfg.Service))
	})

	r.Post("/availability-windows/{id}/recount", recountWindowHandler(cfg.Service))

	return r
}
