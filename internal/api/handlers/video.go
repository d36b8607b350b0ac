package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"vehicle-counter-go/internal/api/middleware"
	"vehicle-counter-go/internal/logging"
	"vehicle-counter-go/internal/models"
)

// JobService runs staged videos through the counting pipeline
type JobService interface {
	Process(ctx context.Context, filename, videoPath string) (models.Job, error)
	Enqueue(filename, videoPath string) (models.Job, error)
	Get(id string) (models.Job, error)
	List() []models.Job
	Stats() map[models.JobStatus]int
}

type VideoHandler struct {
	uploadDir string
	jobs      JobService
}

func NewVideoHandler(uploadDir string, jobs JobService) *VideoHandler {
	return &VideoHandler{
		uploadDir: uploadDir,
		jobs:      jobs,
	}
}

// ProcessVideo godoc
// @Summary Count vehicles in a video
// @Description Upload a video, process it synchronously and return how many vehicles crossed the counting line in each direction
// @Tags videos
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Video file"
// @Success 200 {object} models.Counts
// @Failure 400 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /process-video/ [post]
func (h *VideoHandler) ProcessVideo(c *gin.Context) {
	header, path, ok := h.stageUpload(c)
	if !ok {
		return
	}

	job, err := h.jobs.Process(c.Request.Context(), header.Filename, path)
	if job.ID != "" {
		c.Set(logging.JobIDKey, job.ID)
	} else {
		// never became a job, so nothing else removes the upload
		_ = removeStaged(path)
	}
	if err != nil {
		logging.Error(c).Err(err).Str("filename", header.Filename).Msg("Video processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logging.Info(c).
		Str("filename", header.Filename).
		Int("up", job.Counts.Up).
		Int("down", job.Counts.Down).
		Msg("Video processed")
	c.JSON(http.StatusOK, job.Counts)
}

// stageUpload writes the multipart "file" field under the upload dir.
// On failure the response has been written and ok is false.
func (h *VideoHandler) stageUpload(c *gin.Context) (*multipart.FileHeader, string, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds size limit"})
			return nil, "", false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return nil, "", false
	}

	path, err := h.reservePath(header.Filename)
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to stage upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, "", false
	}

	if err := c.SaveUploadedFile(header, path); err != nil {
		_ = removeStaged(path)
		logging.Error(c).Err(err).Str("path", path).Msg("Failed to save upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to save upload: %v", err)})
		return nil, "", false
	}

	logging.Debug(c).Str("filename", header.Filename).Str("path", path).Int64("size", header.Size).Msg("Upload staged")
	return header, path, true
}

// reservePath creates an empty uniquely named file keeping the upload's
// extension so the decoder can probe the container format.
func (h *VideoHandler) reservePath(filename string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if strings.ContainsAny(ext, `/\*`) {
		ext = ""
	}
	f, err := os.CreateTemp(h.uploadDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = removeStaged(path)
		return "", fmt.Errorf("failed to close staging file: %w", err)
	}
	return path, nil
}

func removeStaged(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
