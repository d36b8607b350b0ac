package models

import (
	"time"
)

// JobStatus represents the processing state of an uploaded video
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// String returns the string representation of JobStatus
func (js JobStatus) String() string {
	return string(js)
}

// IsValid checks if the job status is valid
func (js JobStatus) IsValid() bool {
	switch js {
	case JobStatusQueued, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the job will not change state again
func (js JobStatus) IsTerminal() bool {
	return js == JobStatusCompleted || js == JobStatusFailed
}

// Job is one video submitted for counting
type Job struct {
	ID         string    `json:"job_id"`
	Filename   string    `json:"filename"`
	Status     JobStatus `json:"status"`
	Counts     Counts    `json:"counts"`
	Frames     int64     `json:"frames"`
	Tracks     int       `json:"tracks"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Annotated output written for this job, if enabled
	AnnotatedPath string `json:"annotated_path,omitempty"`

	// Staged upload on local disk, removed when the job finishes
	VideoPath string `json:"-"`
}

// JobResult is published once a job reaches a terminal state
type JobResult struct {
	JobID      string    `json:"job_id"`
	Status     JobStatus `json:"status"`
	Counts     Counts    `json:"counts"`
	Frames     int64     `json:"frames"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Result builds the published summary for the job
func (j *Job) Result() JobResult {
	return JobResult{
		JobID:      j.ID,
		Status:     j.Status,
		Counts:     j.Counts,
		Frames:     j.Frames,
		Error:      j.Error,
		FinishedAt: j.FinishedAt,
	}
}
