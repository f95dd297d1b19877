package dto

import (
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
)

// ListJobsRequest holds the GET /jobs query parameters
type ListJobsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// CreateJobResponse is returned by POST /jobs
type CreateJobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type JobDTO struct {
	ID           string   `json:"id"`
	Status       string   `json:"status"`
	Progress     int      `json:"progress"`
	OriginalName string   `json:"originalName"`
	Platforms    []string `json:"platforms"`
	Error        string   `json:"error,omitempty"`
	CreatedAt    string   `json:"createdAt"`
	StartedAt    *string  `json:"startedAt,omitempty"`
	CompletedAt  *string  `json:"completedAt,omitempty"`
}

// NewJobDTO converts a domain job to its wire form
func NewJobDTO(job *domain.Job) JobDTO {
	return JobDTO{
		ID:           job.ID,
		Status:       string(job.Status),
		Progress:     job.Progress,
		OriginalName: job.OriginalName,
		Platforms:    domain.PlatformStrings(job.Platforms),
		Error:        job.ErrorMessage,
		CreatedAt:    formatTime(job.CreatedAt),
		StartedAt:    formatTimePtr(job.StartedAt),
		CompletedAt:  formatTimePtr(job.CompletedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
