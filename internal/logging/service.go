package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewServiceLogger derives a logger tagged with the service name from the
// global logger. Call it after the global logger has been configured.
func NewServiceLogger(service string) zerolog.Logger {
	return log.With().Str("service", service).Logger()
}

func WithJob(base zerolog.Logger, jobID string) zerolog.Logger {
	return base.With().Str("job_id", jobID).Logger()
}
