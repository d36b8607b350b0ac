package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"vehicle-counter-go/internal/api/handlers"
	"vehicle-counter-go/internal/config"
	"vehicle-counter-go/internal/services"
)

type Server struct {
	config    *config.Config
	container *services.ServiceContainer
	router    *gin.Engine
	server    *http.Server
	grpc      *HealthServer

	healthHandler *handlers.HealthHandler
	videoHandler  *handlers.VideoHandler
	systemHandler *handlers.SystemHandler
}

// NewServer builds the HTTP server around an already wired container
func NewServer(cfg *config.Config, container *services.ServiceContainer) (*Server, error) {
	if container == nil || container.JobManager == nil {
		return nil, errors.New("service container has no job manager")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:        cfg,
		container:     container,
		router:        gin.New(),
		healthHandler: handlers.NewHealthHandler(cfg.WorkerID, cfg.Version),
		videoHandler:  handlers.NewVideoHandler(cfg.UploadDir, container.JobManager),
		systemHandler: handlers.NewSystemHandler(cfg.WorkerID, container.JobManager),
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.setupSwagger()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
	}

	if cfg.GRPCHealthPort > 0 {
		s.grpc = NewHealthServer()
	}

	return s, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP (and the gRPC health endpoint when enabled) until Shutdown
func (s *Server) Start() error {
	if s.grpc != nil {
		addr := fmt.Sprintf(":%d", s.config.GRPCHealthPort)
		go func() {
			if err := s.grpc.ListenAndServe(addr); err != nil {
				log.Error().Err(err).Str("addr", addr).Msg("gRPC health server stopped")
			}
		}()
	}

	log.Info().Int("port", s.config.Port).Msg("Starting vehicle counter API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then stops the jobs and the publisher
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Stopping vehicle counter API...")

	var errs []error
	if err := s.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if s.grpc != nil {
		s.grpc.Stop()
	}
	if err := s.container.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("services shutdown: %w", err))
	}
	return errors.Join(errs...)
}
