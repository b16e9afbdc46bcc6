package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/appointment-routing-saga/internal/observability/metrics"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

type RouterConfig struct {
	Service        AppointmentService
	Idempotency    IdempotencyStore // optional
	Dependencies   []Dependency
	Logger         *logging.Logger
	Metrics        *metrics.SagaMetrics
	MetricsHandler http.Handler // defaults to promhttp.Handler()
	RequestTimeout time.Duration
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)

	h := &handlers{
		svc:     cfg.Service,
		idem:    cfg.Idempotency,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}

	r.Route("/appointments", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Post("/", h.createAppointment)
		// {id} is an insured id here and an appointment id below.
		r.Get("/{id}", h.listAppointments)
		r.Get("/{id}/trace", h.getTrace)
		r.Post("/{id}/cancel", h.cancelAppointment)
		r.Post("/{id}/retry", h.retryAppointment)
	})

	return r
}
