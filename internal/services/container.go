package services

import (
	"context"
	"errors"

	"vehicle-counter-go/internal/config"
	"vehicle-counter-go/internal/services/jobs"
	"vehicle-counter-go/internal/services/messaging"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config     *config.Config
	Publisher  messaging.Publisher
	JobManager *jobs.Manager
}

// NewServiceContainer wires the publisher and the job manager with the
// OpenCV-backed video runner.
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	publisher := messaging.NewPublisher(cfg)
	return NewServiceContainerWithRunner(cfg, publisher, jobs.NewVideoRunner(cfg, publisher))
}

// NewServiceContainerWithRunner wires the container around a custom runner
func NewServiceContainerWithRunner(cfg *config.Config, publisher messaging.Publisher, runner jobs.Runner) (*ServiceContainer, error) {
	manager, err := jobs.NewManager(jobs.Options{
		Tracking:       cfg.Tracking(),
		MaxConcurrent:  cfg.MaxConcurrentJobs,
		Retention:      cfg.JobRetention,
		ResultsSubject: cfg.NatsResultsSubject,
	}, runner, publisher)
	if err != nil {
		return nil, err
	}

	return &ServiceContainer{
		Config:     cfg,
		Publisher:  publisher,
		JobManager: manager,
	}, nil
}

// Shutdown stops the jobs first so their final results can still be published
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	var errs []error
	if sc.JobManager != nil {
		if err := sc.JobManager.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if sc.Publisher != nil {
		if err := sc.Publisher.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
