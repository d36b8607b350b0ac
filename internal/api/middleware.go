package api

import (
	"vehicle-counter-go/internal/api/middleware"
)

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestContext())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.CORS(s.config.CORSAllowOrigins))
	s.router.Use(middleware.BodyLimit(s.config.MaxUploadBytes))
}
