package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/prn-tf/waverly-store/internal/storefront"
)

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Storefront  *storefront.Storefront
	Logger      zerolog.Logger
	Metrics     bool
	MetricsPath string
}

// NewRouter assembles the HTTP handler: request ID, logging and metrics
// middleware, the JSON API under /api, plus health and metrics endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.Metrics {
		r.Use(requestMetrics)
	}

	r.Get("/health", handleHealth(cfg.Storefront))

	if cfg.Metrics {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	api := NewAPIHandler(cfg.Storefront, cfg.Logger)
	r.Route("/api", api.RegisterRoutes)

	return r
}

// handleHealth reports liveness plus the storefront lifecycle state.
// It returns 503 until the storefront is ready so load balancers hold
// traffic during initialization.
func handleHealth(sf *storefront.Storefront) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := sf.State()
		status := http.StatusOK
		if state != storefront.StateReady {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]string{
			"status": state.String(),
		})
	}
}
