package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"vehicle-counter-go/internal/models"
)

// SystemHandler handles system-related endpoints
type SystemHandler struct {
	WorkerID  string
	jobs      JobService
	startedAt time.Time
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(workerID string, jobs JobService) *SystemHandler {
	return &SystemHandler{
		WorkerID:  workerID,
		jobs:      jobs,
		startedAt: time.Now(),
	}
}

// @Summary Get system stats
// @Description Get runtime statistics and job counts per status
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /system/stats [get]
func (h *SystemHandler) GetStats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := h.jobs.Stats()
	jobCounts := gin.H{}
	for _, s := range []models.JobStatus{
		models.JobStatusQueued,
		models.JobStatusRunning,
		models.JobStatusCompleted,
		models.JobStatusFailed,
	} {
		jobCounts[s.String()] = stats[s]
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats": gin.H{
			"worker_id":      h.WorkerID,
			"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
			"memory_mb":      m.Alloc / 1024 / 1024,
			"cpu_cores":      runtime.NumCPU(),
			"goroutines":     runtime.NumGoroutine(),
			"go_version":     runtime.Version(),
			"jobs":           jobCounts,
		},
		"timestamp": time.Now().Unix(),
	})
}
