package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 5 * time.Second

// maxCommandBody limits the size of a command request.
const maxCommandBody = 1 << 20

// Server serves the control API:
//
//	POST /api/commands  run a command, reply with its Result
//	GET  /api/commands  list supported channels
//	GET  /api/events    websocket of events; commands are accepted too
//	GET  /metrics       Prometheus metrics, when configured
//	GET  /health        liveness check
type Server struct {
	addr       string
	dispatcher *Dispatcher
	hub        *Hub
	router     *chi.Mux
	logger     *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	metrics http.Handler
	logger  *slog.Logger
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(o *serverOptions) {
		o.metrics = h
	}
}

// WithServerLogger sets the logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, d *Dispatcher, hub *Hub, opts ...ServerOption) *Server {
	o := serverOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		addr:       addr,
		dispatcher: d,
		hub:        hub,
		logger:     o.logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/commands", s.handleListCommands)
		r.Post("/commands", s.handleCommand)
		r.Get("/events", hub.ServeHTTP)
	})
	if o.metrics != nil {
		r.Handle("/metrics", o.metrics)
	}

	s.router = r
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("control server error: %w", err)
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down control server: %w", err)
	}
	s.logger.Info("control server stopped")
	return nil
}

func (s *Server) handleListCommands(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"commands": s.dispatcher.Commands()})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd Command
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBody)).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, Result{
			Status: http.StatusBadRequest,
			Error:  fmt.Sprintf("invalid command: %v", err),
		})
		return
	}

	result := s.dispatcher.Dispatch(r.Context(), cmd)
	writeJSON(w, result.Status, result)
}

// logRequests logs each request with slog.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
