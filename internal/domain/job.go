package domain

import "time"

// JobStatus is the lifecycle state of a repurposing job
type JobStatus string

// Job status constants
const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Progress milestones written by the state machine
const (
	ProgressQueued    = 0
	ProgressStarted   = 10
	ProgressReportCap = 99
	ProgressCompleted = 100
)

// transitions lists the allowed edges of the job state machine
var transitions = map[JobStatus][]JobStatus{
	JobStatusQueued:     {JobStatusProcessing, JobStatusFailed},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed},
}

// IsValid reports whether s is one of the known statuses
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether the state machine allows from -> to
func CanTransition(from, to JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is one repurposing request for one uploaded video
type Job struct {
	ID           string
	OriginalName string
	InputPath    string
	OutputDir    string
	Platforms    []Platform
	Status       JobStatus
	Progress     int
	ErrorMessage string
	WorkerID     string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	UpdatedAt    time.Time
}

// NewJob carries the fields supplied when a job is created. ID is generated
// when empty.
type NewJob struct {
	ID           string
	OriginalName string
	InputPath    string
	OutputDir    string
	Platforms    []Platform
}

// JobFilter selects a page of jobs ordered newest first
type JobFilter struct {
	Status   JobStatus
	PageSize int
	// Cursor is the (created_at, id) of the last job of the previous page
	Cursor *JobCursor
}

// JobCursor identifies a position in the created_at DESC, id DESC ordering
type JobCursor struct {
	CreatedAt time.Time
	ID        string
}

// JobPage is one page of a job listing
type JobPage struct {
	Jobs    []*Job
	HasMore bool
}

// JobMessage represents a job message from RabbitMQ
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}
