package overlay

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"vehicle-counter-go/internal/services/pipeline"
	"vehicle-counter-go/internal/tracking"
)

const (
	codec      = "MJPG"
	defaultFPS = 25.0
)

// Writer renders every processed frame and appends it to an annotated video.
// It implements pipeline.Observer[gocv.Mat].
type Writer struct {
	path    string
	cfg     tracking.Config
	writer  *gocv.VideoWriter
	canvas  gocv.Mat
	log     zerolog.Logger
	written int64
	failed  bool
}

// NewWriter creates <dir>/<name>.avi sized to the source video
func NewWriter(dir, name string, fps float64, width, height int, cfg tracking.Config, logger zerolog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create annotate output dir: %w", err)
	}
	if fps <= 0 {
		fps = defaultFPS
	}

	path := filepath.Join(dir, name+".avi")
	vw, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open video writer %s: %w", path, err)
	}

	logger.Info().Str("path", path).Float64("fps", fps).Msg("Writing annotated output")
	return &Writer{
		path:   path,
		cfg:    cfg,
		writer: vw,
		canvas: gocv.NewMat(),
		log:    logger,
	}, nil
}

// Path returns the output file
func (w *Writer) Path() string {
	return w.path
}

// Observe draws the frame state on a copy of frame and writes it
func (w *Writer) Observe(frame gocv.Mat, state pipeline.FrameState) {
	if w.failed || frame.Empty() {
		return
	}

	frame.CopyTo(&w.canvas)
	Render(&w.canvas, w.cfg, state)

	if err := w.writer.Write(w.canvas); err != nil {
		// One bad write disables the writer for the rest of the video.
		w.failed = true
		w.log.Warn().Err(err).Str("path", w.path).Int64("written", w.written).Msg("Failed to write annotated frame, disabling output")
		return
	}
	w.written++
}

// Close flushes and releases the writer
func (w *Writer) Close() error {
	w.canvas.Close()
	return w.writer.Close()
}
