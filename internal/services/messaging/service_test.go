package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-counter-go/internal/config"
	"vehicle-counter-go/internal/models"
)

func TestNewPublisher_Disabled(t *testing.T) {
	cfg := &config.Config{NatsEnabled: false}

	pub := NewPublisher(cfg)
	assert.IsType(t, NoopPublisher{}, pub)
	assert.False(t, pub.IsConnected())
	assert.NoError(t, pub.Publish("vehicles.crossings", map[string]int{"up": 1}))
	assert.NoError(t, pub.Shutdown(context.Background()))
}

func TestNewPublisher_UnreachableFallsBackToNoop(t *testing.T) {
	cfg := &config.Config{
		NatsEnabled:        true,
		NatsURL:            "nats://127.0.0.1:1",
		WorkerID:           "counter-test",
		NatsConnectTimeout: 200 * time.Millisecond,
		NatsMaxReconnects:  0,
	}

	pub := NewPublisher(cfg)
	assert.IsType(t, NoopPublisher{}, pub)
}

func runTestServer(t *testing.T) *config.Config {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	srv := natsserver.RunServer(&opts)
	t.Cleanup(srv.Shutdown)

	return &config.Config{
		NatsEnabled:          true,
		NatsURL:              srv.ClientURL(),
		WorkerID:             "counter-test",
		NatsConnectTimeout:   time.Second,
		NatsReconnectWait:    100 * time.Millisecond,
		NatsMaxReconnects:    0,
		NatsCrossingsSubject: "vehicles.crossings",
		NatsResultsSubject:   "vehicles.results",
	}
}

func TestService_PublishCrossingEvent(t *testing.T) {
	cfg := runTestServer(t)

	pub := NewPublisher(cfg)
	svc, ok := pub.(*Service)
	require.True(t, ok, "expected a NATS publisher, got %T", pub)
	defer svc.Shutdown(context.Background())
	assert.True(t, svc.IsConnected())

	received := make(chan []byte, 1)
	_, err := svc.Subscribe(cfg.NatsCrossingsSubject, func(data []byte) { received <- data })
	require.NoError(t, err)

	event := models.CrossingEvent{
		TrackID:    3,
		Direction:  models.DirectionDown,
		Center:     models.Point{X: 145, Y: 552},
		FrameIndex: 2,
		JobID:      "job-42",
	}
	require.NoError(t, svc.Publish(cfg.NatsCrossingsSubject, event))

	select {
	case data := <-received:
		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "down", got["direction"])
		assert.Equal(t, "job-42", got["job_id"])
		assert.Equal(t, float64(3), got["track_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("crossing event not delivered")
	}
}

func TestService_PublishJobResult(t *testing.T) {
	cfg := runTestServer(t)

	svc, err := NewService(cfg)
	require.NoError(t, err)
	defer svc.Shutdown(context.Background())

	received := make(chan []byte, 1)
	_, err = svc.Subscribe(cfg.NatsResultsSubject, func(data []byte) { received <- data })
	require.NoError(t, err)

	job := models.Job{ID: "job-7", Status: models.JobStatusCompleted, Counts: models.Counts{Up: 2, Down: 5}, Frames: 300}
	require.NoError(t, svc.Publish(cfg.NatsResultsSubject, job.Result()))

	select {
	case data := <-received:
		var got models.JobResult
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "job-7", got.JobID)
		assert.Equal(t, models.JobStatusCompleted, got.Status)
		assert.Equal(t, models.Counts{Up: 2, Down: 5}, got.Counts)
	case <-time.After(2 * time.Second):
		t.Fatal("job result not delivered")
	}
}

func TestService_PublishUnmarshalable(t *testing.T) {
	cfg := runTestServer(t)

	svc, err := NewService(cfg)
	require.NoError(t, err)
	defer svc.Shutdown(context.Background())

	assert.Error(t, svc.Publish(cfg.NatsCrossingsSubject, make(chan int)))
}
