package storage

import (
	"context"
	"sort"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
)

const (
	// DefaultPageSize is used when a listing does not ask for a page size
	DefaultPageSize = 20
	// MaxPageSize caps the number of jobs returned per page
	MaxPageSize = 100
)

// Repository is the single source of truth for jobs and their generated contents.
// Every status change is one atomic write; reads always observe the latest write.
type Repository interface {
	// CreateJob persists a new QUEUED job under the supplied id, or a fresh one
	CreateJob(ctx context.Context, job domain.NewJob) (*domain.Job, error)
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter domain.JobFilter) (*domain.JobPage, error)

	// MarkProcessing moves QUEUED -> PROCESSING and records the start time
	MarkProcessing(ctx context.Context, jobID string) (*domain.Job, error)
	// MarkCompleted moves PROCESSING -> COMPLETED; repeating it is a no-op
	MarkCompleted(ctx context.Context, jobID string) (*domain.Job, error)
	// MarkFailed moves QUEUED or PROCESSING -> FAILED; repeating it is a no-op
	MarkFailed(ctx context.Context, jobID, message string) (*domain.Job, error)

	// ClaimInvocation records the worker running the job's single processor invocation
	ClaimInvocation(ctx context.Context, jobID, workerID string) (*domain.Job, error)
	// ReportProgress raises the progress of a PROCESSING job, never lowering it
	ReportProgress(ctx context.Context, jobID string, progress int) (*domain.Job, error)

	SaveContents(ctx context.Context, jobID string, contents []domain.Content) error
	ListContents(ctx context.Context, jobID string) ([]domain.Content, error)

	Ping(ctx context.Context) error
}

// normalizePageSize applies the default and the upper bound
func normalizePageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

// clampProgress keeps processor-reported progress below the completion mark
func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > domain.ProgressReportCap {
		return domain.ProgressReportCap
	}
	return p
}

// sortContents orders contents by the canonical platform order
func sortContents(contents []domain.Content) {
	rank := make(map[domain.Platform]int)
	for i, p := range domain.Platforms() {
		rank[p] = i
	}
	sort.SliceStable(contents, func(i, j int) bool {
		ri, iok := rank[contents[i].Platform]
		rj, jok := rank[contents[j].Platform]
		if iok != jok {
			return iok
		}
		if ri != rj {
			return ri < rj
		}
		return contents[i].Platform < contents[j].Platform
	})
}
