package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ReadinessCheck reports whether one dependency is ready to serve.
type ReadinessCheck func() bool

// Router builds the operational HTTP routes: /metrics, /healthz and /readyz.
func Router(rec *Recorder, checks map[string]ReadinessCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if rec != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		status := http.StatusOK
		result := make(map[string]bool, len(checks))
		for name, check := range checks {
			ok := check != nil && check()
			result[name] = ok
			if !ok {
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, status, map[string]any{"ready": status == http.StatusOK, "checks": result})
	})

	return r
}

// Server serves the operational routes until Shutdown is called.
type Server struct {
	srv    *http.Server
	logger zerolog.Logger
}

// NewServer binds the operational routes to port.
func NewServer(port int, handler http.Handler, logger zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       30 * time.Second,
		},
		logger: logger,
	}
}

// Start listens in the background. Listener failures are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("metrics server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
