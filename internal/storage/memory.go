package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/google/uuid"
)

// Memory is an in-process Repository. It backs the memory database driver
// and the tests; data does not survive a restart.
type Memory struct {
	mu       sync.RWMutex
	jobs     map[string]*domain.Job
	contents map[string]map[domain.Platform]*domain.Content
	now      func() time.Time
}

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{
		jobs:     make(map[string]*domain.Job),
		contents: make(map[string]map[domain.Platform]*domain.Content),
		now:      time.Now,
	}
}

func cloneJob(j *domain.Job) *domain.Job {
	c := *j
	c.Platforms = append([]domain.Platform(nil), j.Platforms...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func cloneContent(c *domain.Content) domain.Content {
	out := *c
	if c.Creative != nil {
		cr := *c.Creative
		out.Creative = &cr
	}
	if c.Metric != nil {
		m := *c.Metric
		out.Metric = &m
	}
	return out
}

// CreateJob stores a new QUEUED job
func (m *Memory) CreateJob(_ context.Context, job domain.NewJob) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := job.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := m.jobs[id]; exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobExists, id)
	}

	now := m.now()
	j := &domain.Job{
		ID:           id,
		OriginalName: job.OriginalName,
		InputPath:    job.InputPath,
		OutputDir:    job.OutputDir,
		Platforms:    append([]domain.Platform(nil), job.Platforms...),
		Status:       domain.JobStatusQueued,
		Progress:     domain.ProgressQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.jobs[j.ID] = j

	return cloneJob(j), nil
}

// GetJob returns a copy of the stored job
func (m *Memory) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return cloneJob(j), nil
}

// ListJobs returns one page of jobs, newest first
func (m *Memory) ListJobs(_ context.Context, filter domain.JobFilter) (*domain.JobPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*domain.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.Cursor != nil && !afterCursor(j, filter.Cursor) {
			continue
		}
		all = append(all, j)
	}

	sort.Slice(all, func(a, b int) bool {
		if !all[a].CreatedAt.Equal(all[b].CreatedAt) {
			return all[a].CreatedAt.After(all[b].CreatedAt)
		}
		return all[a].ID > all[b].ID
	})

	pageSize := normalizePageSize(filter.PageSize)
	page := &domain.JobPage{}
	if len(all) > pageSize {
		page.HasMore = true
		all = all[:pageSize]
	}
	page.Jobs = make([]*domain.Job, len(all))
	for i, j := range all {
		page.Jobs[i] = cloneJob(j)
	}
	return page, nil
}

// afterCursor reports whether j sorts after the cursor in (created_at, id) DESC order
func afterCursor(j *domain.Job, c *domain.JobCursor) bool {
	if j.CreatedAt.Before(c.CreatedAt) {
		return true
	}
	return j.CreatedAt.Equal(c.CreatedAt) && j.ID < c.ID
}

// MarkProcessing moves a QUEUED job to PROCESSING
func (m *Memory) MarkProcessing(_ context.Context, jobID string) (*domain.Job, error) {
	return m.transition(jobID, domain.JobStatusProcessing, func(j *domain.Job, now time.Time) {
		j.StartedAt = &now
		if j.Progress < domain.ProgressStarted {
			j.Progress = domain.ProgressStarted
		}
	})
}

// MarkCompleted moves a PROCESSING job to COMPLETED with full progress
func (m *Memory) MarkCompleted(_ context.Context, jobID string) (*domain.Job, error) {
	return m.transition(jobID, domain.JobStatusCompleted, func(j *domain.Job, now time.Time) {
		j.Progress = domain.ProgressCompleted
		j.CompletedAt = &now
	})
}

// MarkFailed moves a QUEUED or PROCESSING job to FAILED
func (m *Memory) MarkFailed(_ context.Context, jobID, message string) (*domain.Job, error) {
	return m.transition(jobID, domain.JobStatusFailed, func(j *domain.Job, now time.Time) {
		j.ErrorMessage = message
		j.CompletedAt = &now
	})
}

func (m *Memory) transition(jobID string, to domain.JobStatus, apply func(*domain.Job, time.Time)) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if j.Status == to && to.IsTerminal() {
		return cloneJob(j), nil
	}
	if !domain.CanTransition(j.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, j.Status, to)
	}

	now := m.now()
	j.Status = to
	j.UpdatedAt = now
	apply(j, now)

	return cloneJob(j), nil
}

// ClaimInvocation records workerID as the owner of the job's processor run
func (m *Memory) ClaimInvocation(_ context.Context, jobID, workerID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if j.Status != domain.JobStatusProcessing {
		return nil, fmt.Errorf("%w: cannot run processor for %s job", domain.ErrInvalidTransition, j.Status)
	}
	if j.WorkerID != "" {
		return nil, domain.ErrAlreadyClaimed
	}

	j.WorkerID = workerID
	j.UpdatedAt = m.now()
	return cloneJob(j), nil
}

// ReportProgress raises the progress of a PROCESSING job
func (m *Memory) ReportProgress(_ context.Context, jobID string, progress int) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if j.Status != domain.JobStatusProcessing {
		return nil, fmt.Errorf("%w: progress reported for %s job", domain.ErrInvalidTransition, j.Status)
	}

	if p := clampProgress(progress); p > j.Progress {
		j.Progress = p
		j.UpdatedAt = m.now()
	}
	return cloneJob(j), nil
}

// SaveContents upserts one content per platform
func (m *Memory) SaveContents(_ context.Context, jobID string, contents []domain.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[jobID]; !ok {
		return domain.ErrJobNotFound
	}

	byPlatform, ok := m.contents[jobID]
	if !ok {
		byPlatform = make(map[domain.Platform]*domain.Content)
		m.contents[jobID] = byPlatform
	}

	for _, c := range contents {
		stored := cloneContent(&c)
		stored.JobID = jobID
		if existing, ok := byPlatform[c.Platform]; ok {
			stored.ID = existing.ID
			stored.CreatedAt = existing.CreatedAt
			// an upsert without creative or metric keeps the previous ones
			if stored.Creative == nil {
				stored.Creative = existing.Creative
			}
			if stored.Metric == nil {
				stored.Metric = existing.Metric
			}
		} else {
			stored.ID = uuid.NewString()
			stored.CreatedAt = m.now()
		}
		byPlatform[c.Platform] = &stored
	}
	return nil
}

// ListContents returns the job's contents in canonical platform order
func (m *Memory) ListContents(_ context.Context, jobID string) ([]domain.Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byPlatform := m.contents[jobID]
	out := make([]domain.Content, 0, len(byPlatform))
	for _, c := range byPlatform {
		out = append(out, cloneContent(c))
	}
	sortContents(out)
	return out, nil
}

// Ping always succeeds
func (m *Memory) Ping(context.Context) error {
	return nil
}
