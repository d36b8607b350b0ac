package logging

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-counter-go/internal/config"
)

func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestServiceLoggerWithJob(t *testing.T) {
	buf := captureGlobal(t)

	logger := WithJob(NewServiceLogger("jobs"), "job-1")
	logger.Info().Msg("hello")

	line := decodeLine(t, buf)
	assert.Equal(t, "jobs", line["service"])
	assert.Equal(t, "job-1", line["job_id"])
	assert.Equal(t, "hello", line["message"])
}

func TestGinContextFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureGlobal(t)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(RequestIDKey, "req-42")
	c.Set(JobIDKey, "job-7")
	c.Set(StartTimeKey, time.Now())

	Info(c).Msg("request")

	line := decodeLine(t, buf)
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, "job-7", line["job_id"])
	assert.Contains(t, line, "duration")
}

func TestGinContextNil(t *testing.T) {
	buf := captureGlobal(t)

	Warn(nil).Msg("no context")

	line := decodeLine(t, buf)
	assert.Equal(t, "warn", line["level"])
	assert.NotContains(t, line, "request_id")
}

func TestSetupLevel(t *testing.T) {
	prevLevel := zerolog.GlobalLevel()
	prev := log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prevLevel)
		log.Logger = prev
	})

	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			Setup(&config.Config{LogLevel: tt.level, WorkerID: "counter-test"}, &buf)
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

func TestStartLogdy_InvalidPort(t *testing.T) {
	w, url, err := StartLogdy(&config.Config{LogdyHost: "localhost", LogdyPort: 0})
	assert.Error(t, err)
	assert.Nil(t, w)
	assert.Empty(t, url)
}
