// Package http serves the insights API together with the health, readiness and
// metrics endpoints.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/energy-weather-insights/internal/observability"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the /api/v1 routes plus /healthz, /readyz, and /metrics.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	api        InsightsService
	validate   *validator.Validate
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server. Every checker must pass for /readyz to
// report ready.
func NewServer(addr string, api InsightsService, checkers []ReadinessChecker, metrics *observability.Metrics, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     r,
			ReadTimeout: 10 * time.Second,
			// Multi-year snow drift requests wait on the archive.
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:   r,
		api:      api,
		validate: newValidator(),
		metrics:  metrics,
		logger:   logger,
	}

	r.Use(requestID)
	r.Use(s.recoverer)
	r.Use(s.requestLogger)
	r.Use(s.instrument)
	r.Use(middleware.Compress(5, "application/json"))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", handleReady(checkers))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/api/v1", s.mountV1)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errRouteNotFound)
	})

	return s
}

func (s *Server) mountV1(r chi.Router) {
	r.Route("/price-areas", func(r chi.Router) {
		r.Get("/", s.handlePriceAreas)
		r.Get("/locate", s.handleLocate)
		r.Get("/means", s.handleAreaMeans)
	})
	r.Get("/snowdrift", s.handleSnowDrift)
	r.Route("/weather", func(r chi.Router) {
		r.Get("/", s.handleWeather)
		r.Get("/outliers/temperature", s.handleTemperatureOutliers)
		r.Get("/anomalies/precipitation", s.handlePrecipitationAnomalies)
		r.Get("/local", s.handleLocalWeather)
	})
	r.Route("/energy", func(r chi.Router) {
		r.Get("/totals", s.handleEnergyTotals)
		r.Get("/series", s.handleEnergySeries)
		r.Get("/years", s.handleEnergyYears)
		r.Get("/stl", s.handleEnergySTL)
		r.Get("/spectrogram", s.handleEnergySpectrogram)
	})
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checkers []ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var errs []error
		for _, c := range checkers {
			if err := c.CheckReadiness(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
