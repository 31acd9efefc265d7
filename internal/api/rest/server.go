package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentinelops/anomaly-sentinel/internal/api/websocket"
	"github.com/sentinelops/anomaly-sentinel/internal/infrastructure/config"
	auditsvc "github.com/sentinelops/anomaly-sentinel/internal/service/audit"
	"github.com/sentinelops/anomaly-sentinel/internal/service/detection"
)

// Server exposes the trigger surface, the audit surface and the live event
// stream.
type Server struct {
	httpServer *http.Server
	handler    *Handler
	hub        *websocket.EventHub
	logger     *slog.Logger
}

// Handler carries the services the routes dispatch to.
type Handler struct {
	detector detection.Service
	ledger   *auditsvc.Service
	health   func(ctx context.Context) error
	logger   *slog.Logger
}

func NewServer(cfg *config.ServerConfig, detector detection.Service, ledger *auditsvc.Service,
	hub *websocket.EventHub, health func(ctx context.Context) error, logger *slog.Logger) *Server {

	handler := &Handler{
		detector: detector,
		ledger:   ledger,
		health:   health,
		logger:   logger,
	}

	server := &Server{
		handler: handler,
		hub:     hub,
		logger:  logger,
	}

	mux := server.setupRoutes()
	var h http.Handler = mux
	h = RecoverMiddleware(logger)(h)
	h = LoggingMiddleware(logger)(h)

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return server
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handler.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	v1 := http.NewServeMux()
	v1.HandleFunc("POST /cycles/run", s.handler.handleRunCycle)
	v1.HandleFunc("GET /audit/verify", s.handler.handleAuditVerify)
	v1.HandleFunc("GET /audit/blocks", s.handler.handleAuditSearch)
	v1.HandleFunc("GET /audit/blocks/{cycle_id}", s.handler.handleAuditCycle)
	v1.HandleFunc("GET /audit/recent", s.handler.handleAuditRecent)
	v1.HandleFunc("GET /audit/report", s.handler.handleAuditReport)
	if s.hub != nil {
		v1.Handle("/events/stream", s.hub)
	}

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", v1))
	return mux
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
