package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vehicle-counter-go/internal/logging"
	"vehicle-counter-go/internal/models"
	"vehicle-counter-go/internal/services/jobs"
)

type JobsResponse struct {
	Total int          `json:"total" example:"1"`
	Jobs  []models.Job `json:"jobs"`
}

// SubmitJob godoc
// @Summary Submit a video for background counting
// @Description Upload a video and return immediately with a job that can be polled
// @Tags jobs
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Video file"
// @Success 202 {object} models.Job
// @Failure 400 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /jobs [post]
func (h *VideoHandler) SubmitJob(c *gin.Context) {
	header, path, ok := h.stageUpload(c)
	if !ok {
		return
	}

	job, err := h.jobs.Enqueue(header.Filename, path)
	if err != nil {
		_ = removeStaged(path)
		status := http.StatusInternalServerError
		if errors.Is(err, jobs.ErrShuttingDown) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.Set(logging.JobIDKey, job.ID)
	logging.Info(c).Str("filename", header.Filename).Msg("Job submitted")
	c.Header("Location", "/jobs/"+job.ID)
	c.JSON(http.StatusAccepted, job)
}

// ListJobs godoc
// @Summary List jobs
// @Description List all known jobs, oldest first
// @Tags jobs
// @Produce json
// @Success 200 {object} JobsResponse
// @Router /jobs [get]
func (h *VideoHandler) ListJobs(c *gin.Context) {
	list := h.jobs.List()
	c.JSON(http.StatusOK, JobsResponse{Total: len(list), Jobs: list})
}

// GetJob godoc
// @Summary Get job status
// @Description Get status and counts of a job
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} models.Job
// @Failure 404 {object} map[string]string
// @Router /jobs/{id} [get]
func (h *VideoHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}
