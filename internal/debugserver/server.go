// Package debugserver exposes health and metrics endpoints while a crawl is
// in flight. The listener is optional and off by default.
package debugserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server wraps the HTTP listener.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// New constructs a Server bound to addr.
func New(addr string, logger *zap.Logger) *Server {
	r := chi.NewRouter()
	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in a background goroutine until Shutdown is called.
func (s *Server) Start() {
	go func() {
		s.logger.Info("debug listener started", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("debug listener failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler returns the router for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
