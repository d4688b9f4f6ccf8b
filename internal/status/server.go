package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eternisai/assignment-relay/internal/logger"
	"github.com/eternisai/assignment-relay/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Server exposes /health and /metrics for the relay process.
type Server struct {
	srv    *http.Server
	logger *logger.Logger
}

// NewRouter builds the gin engine serving the status routes.
func NewRouter(handler *Handler, collector *metrics.Collector) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(collector.Handler()))

	return router
}

// NewServer creates a status server listening on port.
func NewServer(port string, handler *Handler, collector *metrics.Collector, logger *logger.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:    ":" + port,
			Handler: NewRouter(handler, collector),
		},
		logger: logger.WithComponent("status_server"),
	}
}

// Start serves in the background. Listen failures are logged.
func (s *Server) Start() {
	s.logger.Info("🔁  status server listening", slog.String("addr", s.srv.Addr))

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server failed", slog.String("error", err.Error()))
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
