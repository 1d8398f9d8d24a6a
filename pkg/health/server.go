// Package health serves the operational HTTP endpoints: a JSON health
// report and Prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/esquie-bot/esquie/pkg/logger"
	"github.com/esquie-bot/esquie/pkg/serializer"
)

// Status reports live bot state.
type Status interface {
	Connected() bool
	Slot() serializer.Snapshot
}

// Response is the /healthz body.
type Response struct {
	Status    string              `json:"status"` // "healthy" or "degraded"
	Version   string              `json:"version"`
	Gateway   string              `json:"gateway"` // "connected" or "disconnected"
	Slot      serializer.Snapshot `json:"slot"`
	Uptime    string              `json:"uptime"`
	Timestamp string              `json:"timestamp"`
}

type Server struct {
	status  Status
	version string
	started time.Time
	srv     *http.Server
}

func NewServer(addr, version string, status Status) *Server {
	s := &Server{status: status, version: version, started: time.Now()}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.Health)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	resp := Response{
		Status:    "healthy",
		Version:   s.version,
		Gateway:   "connected",
		Slot:      s.status.Slot(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK
	if !s.status.Connected() {
		resp.Status = "degraded"
		resp.Gateway = "disconnected"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.InfoCF("health", "HTTP server listening", map[string]interface{}{"addr": s.srv.Addr})
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			logger.DebugCF("health", "request completed", map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"latency":    time.Since(start).String(),
				"request_id": chimw.GetReqID(r.Context()),
			})
		}()
		next.ServeHTTP(ww, r)
	})
}
