package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/cuongbtq/clip-repurposer/shared/postgresql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE PostgreSQL reports for a duplicate key
const uniqueViolation = "23505"

const jobColumns = `
	job_id, original_name, input_path, output_dir, platforms, status, progress,
	error_message, worker_id, created_at, started_at, completed_at, updated_at
`

// jobRow maps the jobs table
type jobRow struct {
	JobID        string         `db:"job_id"`
	OriginalName string         `db:"original_name"`
	InputPath    string         `db:"input_path"`
	OutputDir    string         `db:"output_dir"`
	Platforms    pq.StringArray `db:"platforms"`
	Status       string         `db:"status"`
	Progress     int            `db:"progress"`
	ErrorMessage sql.NullString `db:"error_message"`
	WorkerID     sql.NullString `db:"worker_id"`
	CreatedAt    time.Time      `db:"created_at"`
	StartedAt    sql.NullTime   `db:"started_at"`
	CompletedAt  sql.NullTime   `db:"completed_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *jobRow) toDomain() *domain.Job {
	job := &domain.Job{
		ID:           r.JobID,
		OriginalName: r.OriginalName,
		InputPath:    r.InputPath,
		OutputDir:    r.OutputDir,
		Platforms:    make([]domain.Platform, len(r.Platforms)),
		Status:       domain.JobStatus(r.Status),
		Progress:     r.Progress,
		ErrorMessage: r.ErrorMessage.String,
		WorkerID:     r.WorkerID.String,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	for i, p := range r.Platforms {
		job.Platforms[i] = domain.Platform(p)
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		job.StartedAt = &t
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		job.CompletedAt = &t
	}
	return job
}

// contentRow maps contents joined with its creative text and metric
type contentRow struct {
	ContentID           string          `db:"content_id"`
	JobID               string          `db:"job_id"`
	Platform            string          `db:"platform"`
	VideoPath           sql.NullString  `db:"video_path"`
	ThumbnailPath       sql.NullString  `db:"thumbnail_path"`
	MetadataPath        sql.NullString  `db:"metadata_path"`
	Duration            float64         `db:"duration"`
	StartTimestamp      float64         `db:"start_timestamp"`
	CreatedAt           time.Time       `db:"created_at"`
	Headline            sql.NullString  `db:"headline"`
	Description         sql.NullString  `db:"description"`
	CallToAction        sql.NullString  `db:"call_to_action"`
	PredictedEngagement sql.NullFloat64 `db:"predicted_engagement"`
	EngagementLevel     sql.NullString  `db:"engagement_level"`
}

func (r *contentRow) toDomain() domain.Content {
	c := domain.Content{
		ID:             r.ContentID,
		JobID:          r.JobID,
		Platform:       domain.Platform(r.Platform),
		VideoPath:      r.VideoPath.String,
		ThumbnailPath:  r.ThumbnailPath.String,
		MetadataPath:   r.MetadataPath.String,
		Duration:       r.Duration,
		StartTimestamp: r.StartTimestamp,
		CreatedAt:      r.CreatedAt,
	}
	if r.Headline.Valid || r.Description.Valid || r.CallToAction.Valid {
		c.Creative = &domain.CreativeText{
			Headline:     r.Headline.String,
			Description:  r.Description.String,
			CallToAction: r.CallToAction.String,
		}
	}
	if r.PredictedEngagement.Valid {
		c.Metric = &domain.EngagementMetric{
			PredictedEngagement: r.PredictedEngagement.Float64,
			EngagementLevel:     domain.EngagementLevel(r.EngagementLevel.String),
		}
	}
	return c
}

// Postgres implements Repository on PostgreSQL via sqlx
type Postgres struct {
	db     *sqlx.DB
	pg     *postgresql.Client
	logger *slog.Logger
}

// NewPostgres creates a Postgres repository
func NewPostgres(pg *postgresql.Client, logger *slog.Logger) *Postgres {
	return &Postgres{
		db:     pg.GetDB(),
		pg:     pg,
		logger: logger,
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

// CreateJob inserts a new QUEUED job
func (s *Postgres) CreateJob(ctx context.Context, job domain.NewJob) (*domain.Job, error) {
	query := `
		INSERT INTO jobs (
			job_id, original_name, input_path, output_dir, platforms,
			status, progress, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, NOW(), NOW()
		)
		RETURNING ` + jobColumns

	id := job.ID
	if id == "" {
		id = uuid.NewString()
	}

	var row jobRow
	err := s.db.GetContext(ctx, &row, query,
		id,
		job.OriginalName,
		job.InputPath,
		job.OutputDir,
		pq.StringArray(domain.PlatformStrings(job.Platforms)),
		domain.JobStatusQueued,
		domain.ProgressQueued,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobExists, id)
		}
		return nil, unavailable("create job", err)
	}

	s.logger.Info("Job created",
		slog.String("job_id", row.JobID),
		slog.Any("platforms", []string(row.Platforms)),
	)

	return row.toDomain(), nil
}

// GetJob retrieves a job by its ID
func (s *Postgres) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	var row jobRow
	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, unavailable("get job", err)
	}

	return row.toDomain(), nil
}

// ListJobs returns one page of jobs, newest first
func (s *Postgres) ListJobs(ctx context.Context, filter domain.JobFilter) (*domain.JobPage, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	// Order by created_at DESC, job_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, job_id DESC"

	// Fetch one extra to determine if there are more results
	pageSize := normalizePageSize(filter.PageSize)
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, pageSize+1)

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, unavailable("list jobs", err)
	}

	page := &domain.JobPage{}
	if len(rows) > pageSize {
		page.HasMore = true
		rows = rows[:pageSize]
	}
	page.Jobs = make([]*domain.Job, len(rows))
	for i := range rows {
		page.Jobs[i] = rows[i].toDomain()
	}

	return page, nil
}

// MarkProcessing moves a QUEUED job to PROCESSING
func (s *Postgres) MarkProcessing(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    progress = GREATEST(progress, $2),
		    started_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
		RETURNING ` + jobColumns

	job, err := s.transition(ctx, query, jobID, domain.JobStatusProcessing,
		domain.JobStatusProcessing, domain.ProgressStarted, jobID, domain.JobStatusQueued)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(job.Status)),
	)
	return job, nil
}

// MarkCompleted moves a PROCESSING job to COMPLETED with full progress
func (s *Postgres) MarkCompleted(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    progress = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
		RETURNING ` + jobColumns

	job, err := s.transition(ctx, query, jobID, domain.JobStatusCompleted,
		domain.JobStatusCompleted, domain.ProgressCompleted, jobID, domain.JobStatusProcessing)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(job.Status)),
	)
	return job, nil
}

// MarkFailed moves a QUEUED or PROCESSING job to FAILED with the given message
func (s *Postgres) MarkFailed(ctx context.Context, jobID, message string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    error_message = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status IN ($4, $5)
		RETURNING ` + jobColumns

	job, err := s.transition(ctx, query, jobID, domain.JobStatusFailed,
		domain.JobStatusFailed, message, jobID, domain.JobStatusQueued, domain.JobStatusProcessing)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(job.Status)),
		slog.String("error_message", job.ErrorMessage),
	)
	return job, nil
}

// transition runs a conditional status update. When no row matches it tells
// a missing job from a disallowed edge, and treats re-entering the current
// terminal state as success.
func (s *Postgres) transition(ctx context.Context, query, jobID string, to domain.JobStatus, args ...interface{}) (*domain.Job, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, query, args...)
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, unavailable("update job status", err)
	}

	current, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if current.Status == to && to.IsTerminal() {
		return current, nil
	}
	return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, to)
}

// ClaimInvocation records workerID as the owner of the job's processor run.
// Only a PROCESSING job with no owner can be claimed.
func (s *Postgres) ClaimInvocation(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET worker_id = $1,
		    updated_at = NOW()
		WHERE job_id = $2
		  AND status = $3
		  AND worker_id IS NULL
		RETURNING ` + jobColumns

	var row jobRow
	err := s.db.GetContext(ctx, &row, query, workerID, jobID, domain.JobStatusProcessing)
	if err == nil {
		s.logger.Info("Job claimed successfully",
			slog.String("job_id", jobID),
			slog.String("worker_id", workerID),
		)
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, unavailable("claim job", err)
	}

	current, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.JobStatusProcessing {
		return nil, fmt.Errorf("%w: cannot run processor for %s job", domain.ErrInvalidTransition, current.Status)
	}

	s.logger.Warn("Failed to claim job - already claimed",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
		slog.String("owner", current.WorkerID),
	)
	return nil, domain.ErrAlreadyClaimed
}

// ReportProgress raises the progress of a PROCESSING job
func (s *Postgres) ReportProgress(ctx context.Context, jobID string, progress int) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET progress = GREATEST(progress, $1),
		    updated_at = NOW()
		WHERE job_id = $2
		  AND status = $3
		RETURNING ` + jobColumns

	var row jobRow
	err := s.db.GetContext(ctx, &row, query, clampProgress(progress), jobID, domain.JobStatusProcessing)
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, unavailable("update job progress", err)
	}

	current, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: progress reported for %s job", domain.ErrInvalidTransition, current.Status)
}

// SaveContents upserts one content row per platform along with its creative
// text and engagement metric, in a single transaction
func (s *Postgres) SaveContents(ctx context.Context, jobID string, contents []domain.Content) error {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return err
	}

	upsertContent := `
		INSERT INTO contents (
			content_id, job_id, platform, video_path, thumbnail_path,
			metadata_path, duration, start_timestamp, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (job_id, platform) DO UPDATE
		SET video_path = EXCLUDED.video_path,
		    thumbnail_path = EXCLUDED.thumbnail_path,
		    metadata_path = EXCLUDED.metadata_path,
		    duration = EXCLUDED.duration,
		    start_timestamp = EXCLUDED.start_timestamp
		RETURNING content_id
	`
	upsertCreative := `
		INSERT INTO creative_texts (content_id, headline, description, call_to_action)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (content_id) DO UPDATE
		SET headline = EXCLUDED.headline,
		    description = EXCLUDED.description,
		    call_to_action = EXCLUDED.call_to_action
	`
	upsertMetric := `
		INSERT INTO content_metrics (content_id, predicted_engagement, engagement_level)
		VALUES ($1, $2, $3)
		ON CONFLICT (content_id) DO UPDATE
		SET predicted_engagement = EXCLUDED.predicted_engagement,
		    engagement_level = EXCLUDED.engagement_level
	`

	err := s.pg.InTx(ctx, func(tx *sqlx.Tx) error {
		for _, c := range contents {
			var contentID string
			err := tx.GetContext(ctx, &contentID, upsertContent,
				uuid.NewString(), jobID, string(c.Platform),
				nullString(c.VideoPath), nullString(c.ThumbnailPath), nullString(c.MetadataPath),
				c.Duration, c.StartTimestamp,
			)
			if err != nil {
				return unavailable("save content", err)
			}

			if c.Creative != nil {
				if _, err := tx.ExecContext(ctx, upsertCreative, contentID,
					c.Creative.Headline, c.Creative.Description, c.Creative.CallToAction); err != nil {
					return unavailable("save creative text", err)
				}
			}

			if c.Metric != nil {
				if _, err := tx.ExecContext(ctx, upsertMetric, contentID,
					c.Metric.PredictedEngagement, string(c.Metric.EngagementLevel)); err != nil {
					return unavailable("save content metric", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return err
		}
		return unavailable("save contents", err)
	}

	s.logger.Info("Job contents saved",
		slog.String("job_id", jobID),
		slog.Int("count", len(contents)),
	)
	return nil
}

// ListContents returns the job's contents with creative text and metric attached
func (s *Postgres) ListContents(ctx context.Context, jobID string) ([]domain.Content, error) {
	query := `
		SELECT
			c.content_id, c.job_id, c.platform, c.video_path, c.thumbnail_path,
			c.metadata_path, c.duration, c.start_timestamp, c.created_at,
			ct.headline, ct.description, ct.call_to_action,
			m.predicted_engagement, m.engagement_level
		FROM contents c
		LEFT JOIN creative_texts ct ON ct.content_id = c.content_id
		LEFT JOIN content_metrics m ON m.content_id = c.content_id
		WHERE c.job_id = $1
		ORDER BY c.created_at, c.platform
	`

	var rows []contentRow
	if err := s.db.SelectContext(ctx, &rows, query, jobID); err != nil {
		return nil, unavailable("list contents", err)
	}

	contents := make([]domain.Content, len(rows))
	for i := range rows {
		contents[i] = rows[i].toDomain()
	}
	sortContents(contents)

	return contents, nil
}

// Ping checks database connectivity
func (s *Postgres) Ping(ctx context.Context) error {
	if err := s.pg.HealthCheck(ctx); err != nil {
		return unavailable("ping database", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
