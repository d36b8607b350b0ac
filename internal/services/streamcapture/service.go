package streamcapture

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// ErrNotOpened is returned when OpenCV cannot open the video
var ErrNotOpened = errors.New("video capture is not opened")

// Properties describes the opened video
type Properties struct {
	FPS        float64
	Width      int
	Height     int
	FrameCount int
}

// FileSource reads frames from a video file with OpenCV VideoCapture.
// The Mat returned by Next is reused and only valid until the next call.
type FileSource struct {
	path  string
	cap   *gocv.VideoCapture
	frame gocv.Mat
	props Properties
	read  int64
}

// OpenFile opens the video at path for sequential decoding
func OpenFile(path string) (*FileSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat video %s: %w", path, err)
	}

	cap, err := gocv.OpenVideoCaptureWithAPI(path, gocv.VideoCaptureAny)
	if err != nil {
		return nil, fmt.Errorf("failed to open video %s: %w", path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotOpened, path)
	}

	props := Properties{
		FPS:        cap.Get(gocv.VideoCaptureFPS),
		Width:      int(cap.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(cap.Get(gocv.VideoCaptureFrameHeight)),
		FrameCount: int(cap.Get(gocv.VideoCaptureFrameCount)),
	}

	log.Info().
		Str("path", path).
		Float64("fps", props.FPS).
		Int("width", props.Width).
		Int("height", props.Height).
		Int("frame_count", props.FrameCount).
		Msg("VideoCapture opened successfully")

	return &FileSource{
		path:  path,
		cap:   cap,
		frame: gocv.NewMat(),
		props: props,
	}, nil
}

// Properties returns what OpenCV reported when the file was opened
func (s *FileSource) Properties() Properties {
	return s.props
}

// Next decodes the next frame. ok is false at end of stream.
func (s *FileSource) Next(ctx context.Context) (gocv.Mat, bool, error) {
	select {
	case <-ctx.Done():
		return s.frame, false, ctx.Err()
	default:
	}

	if ok := s.cap.Read(&s.frame); !ok || s.frame.Empty() {
		log.Debug().Str("path", s.path).Int64("frames_read", s.read).Msg("End of video stream")
		return s.frame, false, nil
	}
	s.read++
	return s.frame, true, nil
}

// FramesRead returns how many frames have been decoded
func (s *FileSource) FramesRead() int64 {
	return s.read
}

// Close releases the capture and the frame buffer
func (s *FileSource) Close() error {
	s.frame.Close()
	return s.cap.Close()
}
