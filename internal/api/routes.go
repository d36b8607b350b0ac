package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.WorkerInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	s.router.POST("/process-video/", s.videoHandler.ProcessVideo)

	jobs := s.router.Group("/jobs")
	{
		jobs.GET("", s.videoHandler.ListJobs)
		jobs.POST("", s.videoHandler.SubmitJob)
		jobs.GET("/:id", s.videoHandler.GetJob)
	}

	system := s.router.Group("/system")
	{
		system.GET("/stats", s.systemHandler.GetStats)
	}
}
