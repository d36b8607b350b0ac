package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-counter-go/internal/models"
	"vehicle-counter-go/internal/tracking"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	results  []models.JobResult
}

func (p *recordingPublisher) Publish(subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	if r, ok := data.(models.JobResult); ok {
		p.results = append(p.results, r)
	}
	return nil
}

func testOptions() Options {
	return Options{
		Tracking:       tracking.DefaultConfig(),
		MaxConcurrent:  2,
		ResultsSubject: "vehicles.results",
	}
}

func stageFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o644))
	return path
}

// downwardRunner feeds one vehicle moving down across the line
func downwardRunner() Runner {
	return RunnerFunc(func(ctx context.Context, job models.Job, tr *tracking.Tracker) (RunOutput, error) {
		for _, y := range []int{520, 530, 552, 570} {
			tr.Advance([]models.BoundingBox{{X: 100, Y: y - 45, Width: 90, Height: 90}})
		}
		return RunOutput{}.with(tr), nil
	})
}

func (o RunOutput) with(tr *tracking.Tracker) RunOutput {
	o.Counts = tr.Counts()
	o.Frames = tr.Frames()
	o.Tracks = tr.TotalTracks()
	return o
}

func TestNewManager_Validation(t *testing.T) {
	opts := testOptions()
	opts.MaxConcurrent = 0
	_, err := NewManager(opts, downwardRunner(), nil)
	assert.Error(t, err)

	opts = testOptions()
	opts.Tracking.MatchRadius = 0
	_, err = NewManager(opts, downwardRunner(), nil)
	assert.ErrorIs(t, err, tracking.ErrInvalidConfig)
}

func TestManager_ProcessCompletes(t *testing.T) {
	pub := &recordingPublisher{}
	m, err := NewManager(testOptions(), downwardRunner(), pub)
	require.NoError(t, err)

	path := stageFile(t)
	job, err := m.Process(context.Background(), "cars.mp4", path)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "cars.mp4", job.Filename)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, models.Counts{Up: 0, Down: 1}, job.Counts)
	assert.Equal(t, int64(4), job.Frames)
	assert.Equal(t, 1, job.Tracks)
	assert.False(t, job.StartedAt.IsZero())
	assert.False(t, job.FinishedAt.IsZero())
	assert.Empty(t, job.Error)

	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist, "staged upload is removed")

	require.Len(t, pub.results, 1)
	assert.Equal(t, []string{"vehicles.results"}, pub.subjects)
	assert.Equal(t, job.ID, pub.results[0].JobID)
	assert.Equal(t, models.JobStatusCompleted, pub.results[0].Status)
	assert.Equal(t, 1, pub.results[0].Counts.Down)
}

func TestManager_ProcessFailure(t *testing.T) {
	boom := errors.New("decoder exploded")
	runner := RunnerFunc(func(ctx context.Context, job models.Job, tr *tracking.Tracker) (RunOutput, error) {
		tr.Advance(nil)
		return RunOutput{}.with(tr), boom
	})
	m, err := NewManager(testOptions(), runner, nil)
	require.NoError(t, err)

	path := stageFile(t)
	job, err := m.Process(context.Background(), "bad.mp4", path)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, "decoder exploded", job.Error)
	assert.Equal(t, int64(1), job.Frames)

	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestManager_EachJobGetsFreshTracker(t *testing.T) {
	var mu sync.Mutex
	seen := map[*tracking.Tracker]bool{}
	runner := RunnerFunc(func(ctx context.Context, job models.Job, tr *tracking.Tracker) (RunOutput, error) {
		mu.Lock()
		seen[tr] = true
		mu.Unlock()
		assert.Equal(t, int64(0), tr.Frames())
		assert.Equal(t, models.Counts{}, tr.Counts())
		return downwardRunner().Run(ctx, job, tr)
	})
	m, err := NewManager(testOptions(), runner, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		job, err := m.Process(context.Background(), "cars.mp4", "")
		require.NoError(t, err)
		assert.Equal(t, 1, job.Counts.Down, "counts never leak between jobs")
	}
	assert.Len(t, seen, 3)
}

func TestManager_EnqueueRunsInBackground(t *testing.T) {
	release := make(chan struct{})
	runner := RunnerFunc(func(ctx context.Context, job models.Job, tr *tracking.Tracker) (RunOutput, error) {
		<-release
		return downwardRunner().Run(ctx, job, tr)
	})
	m, err := NewManager(testOptions(), runner, nil)
	require.NoError(t, err)

	job, err := m.Enqueue("cars.mp4", "")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, job.Status)

	require.Eventually(t, func() bool {
		j, _ := m.Get(job.ID)
		return j.Status == models.JobStatusRunning
	}, time.Second, 5*time.Millisecond)

	close(release)

	require.Eventually(t, func() bool {
		j, _ := m.Get(job.ID)
		return j.Status == models.JobStatusCompleted
	}, time.Second, 5*time.Millisecond)

	final, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, final.Counts.Down)
}

func TestManager_ConcurrencyBound(t *testing.T) {
	var running, peak int32
	release := make(chan struct{})
	runner := RunnerFunc(func(ctx context.Context, job models.Job, tr *tracking.Tracker) (RunOutput, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&running, -1)
		return RunOutput{}, nil
	})
	m, err := NewManager(testOptions(), runner, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := m.Enqueue("cars.mp4", "")
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return m.Stats()[models.JobStatusRunning] == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, m.Stats()[models.JobStatusQueued])

	close(release)
	require.Eventually(t, func() bool {
		return m.Stats()[models.JobStatusCompleted] == 5
	}, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestManager_GetUnknown(t *testing.T) {
	m, err := NewManager(testOptions(), downwardRunner(), nil)
	require.NoError(t, err)

	_, err = m.Get("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestManager_ListOrdered(t *testing.T) {
	m, err := NewManager(testOptions(), downwardRunner(), nil)
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	a, err := m.Process(context.Background(), "a.mp4", "")
	require.NoError(t, err)
	b, err := m.Process(context.Background(), "b.mp4", "")
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
}

func TestManager_RetentionPrunesTerminalJobs(t *testing.T) {
	opts := testOptions()
	opts.Retention = time.Minute
	m, err := NewManager(opts, downwardRunner(), nil)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	old, err := m.Process(context.Background(), "old.mp4", "")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	fresh, err := m.Process(context.Background(), "fresh.mp4", "")
	require.NoError(t, err)

	_, err = m.Get(old.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = m.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestManager_ShutdownCancelsRunningJobs(t *testing.T) {
	started := make(chan struct{})
	runner := RunnerFunc(func(ctx context.Context, job models.Job, tr *tracking.Tracker) (RunOutput, error) {
		tr.Advance([]models.BoundingBox{{X: 100, Y: 400, Width: 90, Height: 90}})
		close(started)
		<-ctx.Done()
		return RunOutput{}.with(tr), ctx.Err()
	})
	m, err := NewManager(testOptions(), runner, nil)
	require.NoError(t, err)

	job, err := m.Enqueue("cars.mp4", "")
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	final, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.Contains(t, final.Error, context.Canceled.Error())
	assert.Equal(t, int64(1), final.Frames, "partial progress is kept")

	_, err = m.Enqueue("late.mp4", "")
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestManager_ProcessCancelledByCaller(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, job models.Job, tr *tracking.Tracker) (RunOutput, error) {
		<-ctx.Done()
		return RunOutput{}, ctx.Err()
	})
	m, err := NewManager(testOptions(), runner, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	job, err := m.Process(ctx, "cars.mp4", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.JobStatusFailed, job.Status)
}
