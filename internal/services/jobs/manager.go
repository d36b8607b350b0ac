// Package jobs runs uploaded videos through the counting pipeline with
// bounded concurrency and keeps their state in memory.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"vehicle-counter-go/internal/logging"
	"vehicle-counter-go/internal/models"
	"vehicle-counter-go/internal/services/pipeline"
	"vehicle-counter-go/internal/tracking"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrShuttingDown = errors.New("job manager is shutting down")
)

// RunOutput is what a Runner produced for one job
type RunOutput struct {
	pipeline.Result
	AnnotatedPath string
}

// Runner processes the staged video of job with the given tracker.
// Partial results must be returned together with any error.
type Runner interface {
	Run(ctx context.Context, job models.Job, tracker *tracking.Tracker) (RunOutput, error)
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, job models.Job, tracker *tracking.Tracker) (RunOutput, error)

func (f RunnerFunc) Run(ctx context.Context, job models.Job, tracker *tracking.Tracker) (RunOutput, error) {
	return f(ctx, job, tracker)
}

// Options configures a Manager
type Options struct {
	Tracking       tracking.Config
	MaxConcurrent  int
	Retention      time.Duration // terminal jobs older than this are forgotten, 0 keeps them
	ResultsSubject string
}

// Manager owns the job table. Every job gets its own Tracker so concurrent
// videos never share counting state.
type Manager struct {
	opts      Options
	runner    Runner
	publisher models.MessagePublisher
	sem       *semaphore.Weighted
	log       zerolog.Logger

	mu     sync.RWMutex
	jobs   map[string]*models.Job
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// NewManager creates a manager. publisher may be nil.
func NewManager(opts Options, runner Runner, publisher models.MessagePublisher) (*Manager, error) {
	if err := opts.Tracking.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxConcurrent < 1 {
		return nil, fmt.Errorf("max concurrent jobs must be at least 1, got %d", opts.MaxConcurrent)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:      opts,
		runner:    runner,
		publisher: publisher,
		sem:       semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		log:       logging.NewServiceLogger("jobs"),
		jobs:      make(map[string]*models.Job),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}, nil
}

// Process runs a job for the staged video and waits for it to finish.
// Cancelling ctx cancels the job.
func (m *Manager) Process(ctx context.Context, filename, videoPath string) (models.Job, error) {
	job, err := m.submit(filename, videoPath)
	if err != nil {
		return models.Job{}, err
	}
	defer m.wg.Done()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	runErr := m.run(runCtx, job.ID)

	final, err := m.Get(job.ID)
	if err != nil {
		return models.Job{}, err
	}
	return final, runErr
}

// Enqueue registers a job and runs it in the background
func (m *Manager) Enqueue(filename, videoPath string) (models.Job, error) {
	job, err := m.submit(filename, videoPath)
	if err != nil {
		return models.Job{}, err
	}

	go func() {
		defer m.wg.Done()
		_ = m.run(m.ctx, job.ID)
	}()

	return job, nil
}

// Get returns a snapshot of the job
func (m *Manager) Get(id string) (models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return models.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return *job, nil
}

// List returns snapshots of all known jobs, oldest first
func (m *Manager) List() []models.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]models.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		list = append(list, *job)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// Stats returns the number of jobs per status
func (m *Manager) Stats() map[models.JobStatus]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[models.JobStatus]int, 4)
	for _, job := range m.jobs {
		stats[job.Status]++
	}
	return stats
}

// Shutdown rejects new jobs, cancels running ones and waits for them to
// record their final state.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Info().Msg("All jobs stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for jobs to stop: %w", ctx.Err())
	}
}

// submit registers a queued job and reserves a slot in the wait group
func (m *Manager) submit(filename, videoPath string) (models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return models.Job{}, ErrShuttingDown
	}
	m.pruneLocked()

	job := &models.Job{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    models.JobStatusQueued,
		CreatedAt: m.now(),
		VideoPath: videoPath,
	}
	m.jobs[job.ID] = job
	m.wg.Add(1)

	m.log.Info().Str("job_id", job.ID).Str("filename", filename).Msg("Job queued")
	return *job, nil
}

// run executes the job and returns the error it finished with
func (m *Manager) run(ctx context.Context, id string) error {
	logger := logging.WithJob(m.log, id)
	defer m.cleanup(id, logger)

	if err := m.sem.Acquire(ctx, 1); err != nil {
		err = fmt.Errorf("job cancelled before start: %w", err)
		m.finish(id, RunOutput{}, err)
		return err
	}
	defer m.sem.Release(1)

	job, ok := m.update(id, func(j *models.Job) {
		j.Status = models.JobStatusRunning
		j.StartedAt = m.now()
	})
	if !ok {
		return ErrJobNotFound
	}
	logger.Info().Str("filename", job.Filename).Msg("Job started")

	tracker, err := tracking.New(m.opts.Tracking)
	if err != nil {
		m.finish(id, RunOutput{}, err)
		return err
	}

	out, err := m.runner.Run(ctx, job, tracker)
	m.finish(id, out, err)
	return err
}

func (m *Manager) finish(id string, out RunOutput, runErr error) {
	job, ok := m.update(id, func(j *models.Job) {
		j.Counts = out.Counts
		j.Frames = out.Frames
		j.Tracks = out.Tracks
		j.AnnotatedPath = out.AnnotatedPath
		j.FinishedAt = m.now()
		if runErr != nil {
			j.Status = models.JobStatusFailed
			j.Error = runErr.Error()
		} else {
			j.Status = models.JobStatusCompleted
		}
	})
	if !ok {
		return
	}

	logger := logging.WithJob(m.log, id)
	if runErr != nil {
		logger.Error().Err(runErr).
			Int("up", job.Counts.Up).
			Int("down", job.Counts.Down).
			Msg("Job failed")
	} else {
		logger.Info().
			Int("up", job.Counts.Up).
			Int("down", job.Counts.Down).
			Int64("frames", job.Frames).
			Dur("duration", out.Duration).
			Msg("Job completed")
	}

	if m.publisher != nil && m.opts.ResultsSubject != "" {
		if err := m.publisher.Publish(m.opts.ResultsSubject, job.Result()); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish job result")
		}
	}
}

// cleanup removes the staged upload
func (m *Manager) cleanup(id string, logger zerolog.Logger) {
	job, err := m.Get(id)
	if err != nil || job.VideoPath == "" {
		return
	}
	if err := os.Remove(job.VideoPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Str("path", job.VideoPath).Msg("Failed to remove staged video")
	}
}

func (m *Manager) update(id string, fn func(*models.Job)) (models.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	fn(job)
	return *job, true
}

func (m *Manager) pruneLocked() {
	if m.opts.Retention <= 0 {
		return
	}
	cutoff := m.now().Add(-m.opts.Retention)
	for id, job := range m.jobs {
		if job.Status.IsTerminal() && job.FinishedAt.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
}
