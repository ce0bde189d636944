package infrastructure

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// MetricsServer exposes the prometheus endpoint while a batch run is active
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
	started  time.Time
	logger   *slog.Logger
}

// NewMetricsServer creates a server for addr serving metrics on /metrics
func NewMetricsServer(addr string, metrics http.Handler, logger *slog.Logger) *MetricsServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MetricsServer{logger: logger}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.routes(metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *MetricsServer) routes(metrics http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.getHealth)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

func (s *MetricsServer) getHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": time.Since(s.started).Seconds(),
	})
}

// Start binds the address and serves in the background
func (s *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.started = time.Now()

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("metrics server listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *MetricsServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Shutdown stops the server
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
