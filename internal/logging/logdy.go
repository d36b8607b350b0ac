package logging

import (
	"fmt"
	"io"
	"strconv"

	"github.com/logdyhq/logdy-core/logdy"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"vehicle-counter-go/internal/config"
)

// logdyWriter forwards each log line to the embedded Logdy UI
type logdyWriter struct {
	logger logdy.Logdy
}

func (w *logdyWriter) Write(p []byte) (n int, err error) {
	w.logger.LogString(string(p))
	return len(p), nil
}

// StartLogdy starts the embedded Logdy web UI and returns a writer to tee
// logs into, plus the UI URL.
func StartLogdy(cfg *config.Config) (io.Writer, string, error) {
	if cfg.LogdyPort <= 0 || cfg.LogdyPort > 65535 {
		return nil, "", fmt.Errorf("invalid logdy port %d", cfg.LogdyPort)
	}

	portStr := strconv.Itoa(cfg.LogdyPort)
	ld := logdy.InitializeLogdy(logdy.Config{
		ServerIp:   cfg.LogdyHost,
		ServerPort: portStr,
	}, nil)

	url := fmt.Sprintf("http://%s:%s", cfg.LogdyHost, portStr)
	log.Info().Str("url", url).Msg("Logdy UI available")
	return &logdyWriter{logger: ld}, url, nil
}

// Setup configures the global zerolog logger: console output, level from
// cfg.LogLevel, worker id on every line and optional Logdy tee.
func Setup(cfg *config.Config, out io.Writer) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	if cfg.LogdyEnabled {
		if lw, _, err := StartLogdy(cfg); err != nil {
			log.Warn().Err(err).Msg("Failed to start Logdy, continuing without it")
		} else {
			w = zerolog.MultiLevelWriter(w, lw)
		}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Str("worker_id", cfg.WorkerID).Logger()
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("Invalid log level, using info")
	}
}
