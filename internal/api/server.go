package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/vigilstack/vigil-rca/internal/config"
)

// Server wraps the HTTP server and its lifecycle helpers.
type Server struct {
	cfg        config.ServerConfig
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the router with CORS middleware and binds it to the
// configured address.
func NewServer(cfg config.ServerConfig, corsCfg config.CORSConfig, handlers *Handlers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := mux.NewRouter()
	handlers.Register(router)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: corsCfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	return &Server{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:         cfg.Address,
			Handler:      corsMiddleware.Handler(router),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start serves requests until Shutdown is invoked.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("address", s.cfg.Address))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GracefulTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// GracefulTimeout returns the configured graceful timeout duration.
func (s *Server) GracefulTimeout() time.Duration {
	return s.cfg.GracefulTimeout
}
