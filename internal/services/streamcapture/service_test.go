package streamcapture

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestOpenFile_Missing(t *testing.T) {
	src, err := OpenFile(filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Nil(t, src)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenFile_NotAVideo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.mp4")
	require.NoError(t, os.WriteFile(path, []byte("definitely not an mp4"), 0o644))

	src, err := OpenFile(path)
	if src != nil {
		src.Close()
	}
	assert.Error(t, err)
}

func writeTestVideo(t *testing.T, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.avi")

	vw, err := gocv.VideoWriterFile(path, "MJPG", 10, 320, 240, true)
	if err != nil {
		t.Skipf("video writer unavailable: %v", err)
	}
	if !vw.IsOpened() {
		_ = vw.Close()
		t.Skip("MJPG writer not supported by this OpenCV build")
	}
	frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()
	for i := 0; i < frames; i++ {
		require.NoError(t, vw.Write(frame))
	}
	require.NoError(t, vw.Close())
	return path
}

func TestFileSource_ReadsEveryFrame(t *testing.T) {
	path := writeTestVideo(t, 5)

	src, err := OpenFile(path)
	require.NoError(t, err)
	defer src.Close()

	props := src.Properties()
	assert.Equal(t, 320, props.Width)
	assert.Equal(t, 240, props.Height)

	ctx := context.Background()
	var n int
	for {
		frame, ok, err := src.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.False(t, frame.Empty())
		n++
	}
	assert.Equal(t, 5, n)
	assert.Equal(t, int64(5), src.FramesRead())
}

func TestFileSource_NextCancelled(t *testing.T) {
	path := writeTestVideo(t, 2)

	src, err := OpenFile(path)
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := src.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), src.FramesRead())
}
