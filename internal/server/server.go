// Package server exposes the traversal engine over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanonone/kektorgraph/pkg/engine"
)

// Server holds the HTTP interface and the engine it serves.
type Server struct {
	Engine *engine.Engine

	httpServer *http.Server
	handler    http.Handler
	tasks      *TaskManager
	logger     *slog.Logger

	// background traversals started by async requests
	ctx    context.Context
	cancel context.CancelFunc
}

const (
	// TaskTTL is how long a finished async task stays readable.
	TaskTTL           = 15 * time.Minute
	taskSweepInterval = time.Minute
)

// NewServer wires the routes and middlewares. The engine must already be open
// and stays owned by the caller.
func NewServer(eng *engine.Engine, httpAddr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		Engine: eng,
		tasks:  NewTaskManager(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	mux := http.NewServeMux()
	s.registerHTTPHandlers(mux)

	// Recovery must be outer-most to catch everything.
	var handler http.Handler = mux
	handler = s.LoggingMiddleware(handler)
	handler = s.RecoveryMiddleware(handler)

	rootMux := http.NewServeMux()
	rootMux.HandleFunc("GET /healthz", s.handleHealthz)
	rootMux.Handle("GET /metrics", promhttp.Handler())
	rootMux.Handle("/", handler)
	s.handler = rootMux
	s.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           rootMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.sweepTasks(taskSweepInterval)
	return s
}

// sweepTasks evicts expired async tasks until Shutdown.
func (s *Server) sweepTasks(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.tasks.Sweep(now, TaskTTL); n > 0 {
				s.logger.Debug("Expired async tasks evicted", "count", n)
			}
		}
	}
}

// Handler returns the root handler, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Run blocks serving HTTP until Shutdown.
func (s *Server) Run() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server startup failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and cancels running async traversals.
// It does not close the engine.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown of HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}
	s.cancel()
}
