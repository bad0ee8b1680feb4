package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/awahab1116/video-streaming/internal/config"
	"github.com/awahab1116/video-streaming/internal/metrics"
	"github.com/awahab1116/video-streaming/internal/signaling"
)

// Server is the HTTP surface of the signaling service: the websocket
// endpoint plus health and metrics.
type Server struct {
	log     *slog.Logger
	cfg     config.Server
	hub     *signaling.Hub
	metrics *metrics.Metrics

	started time.Time
	mux     *http.ServeMux
	srv     *http.Server
}

// New wires the routes and middleware chain. The hub must already be
// running (or started before Serve).
func New(cfg config.Server, hub *signaling.Hub, m *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		log:     logger,
		cfg:     cfg,
		hub:     hub,
		metrics: m,
		started: time.Now(),
		mux:     http.NewServeMux(),
	}

	s.registerRoutes()

	handler := chain(s.mux,
		recoverMiddleware(s.log),
		requestIDMiddleware(),
		requestLoggerMiddleware(s.log),
	)

	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Handler exposes the full middleware-wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Serve(l net.Listener) error {
	s.log.Info("http server serving", "addr", l.Addr().String())
	return s.srv.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.srv.Close()
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /ws", ServeWS(s.hub, s.cfg.AllowedOrigins, s.log))

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"uptime_seconds": int64(time.Since(s.started).Seconds()),
		})
	})

	s.mux.Handle("GET /metrics", metrics.PrometheusHandler(s.metrics))
}
