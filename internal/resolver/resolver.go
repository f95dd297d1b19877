package resolver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/cuongbtq/clip-repurposer/internal/metrics"
	"github.com/cuongbtq/clip-repurposer/internal/workspace"
)

// Source names which reconciliation step produced a resolution
type Source string

// Resolution sources, in priority order
const (
	SourceDatabase   Source = "database"
	SourceFilesystem Source = "filesystem"
	SourceManifest   Source = "manifest"
	SourceNone       Source = "none"
)

// DefaultPublicBase is the route prefix under which job files are served
const DefaultPublicBase = "/api/v1/jobs"

// ContentStore is the part of the repository the resolver reads
type ContentStore interface {
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	ListContents(ctx context.Context, jobID string) ([]domain.Content, error)
}

// Result is one generated clip as presented to clients. Paths are relative
// to the job root.
type Result struct {
	ID             string
	Platform       domain.Platform
	VideoPath      string
	ThumbnailPath  string
	VideoURL       string
	ThumbnailURL   string
	Duration       float64
	StartTimestamp float64
	AspectRatio    string
	CreatedAt      *time.Time
	Creatives      *domain.CreativeText
	Engagement     *domain.EngagementMetric
}

// Resolution is the reconciled result set of a job
type Resolution struct {
	Job     *domain.Job
	Source  Source
	Results []Result
}

// Config holds Resolver dependencies
type Config struct {
	Store     ContentStore
	Workspace *workspace.Workspace
	Logger    *slog.Logger
	// PublicBase prefixes file URLs; defaults to DefaultPublicBase
	PublicBase string
}

// Resolver reconciles database records, output directories and the summary
// manifest into one result list
type Resolver struct {
	store      ContentStore
	workspace  *workspace.Workspace
	logger     *slog.Logger
	publicBase string
}

// New creates a Resolver
func New(cfg Config) *Resolver {
	base := cfg.PublicBase
	if base == "" {
		base = DefaultPublicBase
	}
	return &Resolver{
		store:      cfg.Store,
		workspace:  cfg.Workspace,
		logger:     cfg.Logger,
		publicBase: base,
	}
}

// Resolve returns the job's results from the first source that has any:
// database contents, then per-platform output directories, then
// summary_report.json. Only a missing job or a storage failure is an error.
func (r *Resolver) Resolve(ctx context.Context, jobID string) (*Resolution, error) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	contents, err := r.store.ListContents(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contents: %w", err)
	}

	res := &Resolution{Job: job, Source: SourceNone, Results: []Result{}}
	switch {
	case len(contents) > 0:
		res.Source, res.Results = SourceDatabase, r.fromDatabase(job, contents)
	default:
		if results := r.fromFilesystem(job); len(results) > 0 {
			res.Source, res.Results = SourceFilesystem, results
		} else if results := r.fromManifest(job); len(results) > 0 {
			res.Source, res.Results = SourceManifest, results
		}
	}

	for i := range res.Results {
		res.Results[i].VideoURL = FileURL(r.publicBase, job.ID, res.Results[i].VideoPath)
		res.Results[i].ThumbnailURL = FileURL(r.publicBase, job.ID, res.Results[i].ThumbnailPath)
	}

	metrics.ResultsResolved(string(res.Source))
	r.logger.Debug("Results resolved",
		slog.String("job_id", job.ID),
		slog.String("source", string(res.Source)),
		slog.Int("count", len(res.Results)),
	)

	return res, nil
}

func (r *Resolver) jobRoot(job *domain.Job) string {
	if r.workspace != nil {
		return r.workspace.JobRoot(job.ID)
	}
	return filepath.Dir(job.OutputDir)
}

func (r *Resolver) outputDir(job *domain.Job) string {
	if job.OutputDir != "" {
		return job.OutputDir
	}
	return r.workspace.OutputDir(job.ID)
}

// fromDatabase turns content records into results. Duration, start and
// creatives fall back to the recorded metadata file; engagement comes only
// from the metric record.
func (r *Resolver) fromDatabase(job *domain.Job, contents []domain.Content) []Result {
	results := make([]Result, 0, len(contents))
	for _, c := range contents {
		db := fields{
			videoPath:      RelativePath(job.ID, c.VideoPath),
			thumbnailPath:  RelativePath(job.ID, c.ThumbnailPath),
			startTimestamp: floatPtr(c.StartTimestamp),
			creatives:      c.Creative,
			engagement:     c.Metric,
		}
		if c.Duration > 0 {
			db.duration = floatPtr(c.Duration)
		}
		createdAt := c.CreatedAt
		db.createdAt = &createdAt

		var meta fields
		if c.MetadataPath != "" {
			meta = r.metadataFor(job, c.MetadataPath)
			meta.engagement = nil
		}

		results = append(results, toResult(c.ID, c.Platform, merge(db, meta, timingDefaults(c.Platform))))
	}
	return results
}

// metadataFor reads a recorded metadata path, which must stay inside the job root
func (r *Resolver) metadataFor(job *domain.Job, recorded string) fields {
	root := r.jobRoot(job)
	abs := filepath.Join(root, filepath.FromSlash(RelativePath(job.ID, recorded)))
	if !withinRoot(root, abs) {
		return fields{}
	}
	return r.loadMetadata(job.ID, abs)
}

// loadMetadata reads a metadata file, absorbing every failure
func (r *Resolver) loadMetadata(jobID, path string) fields {
	meta, err := readMetadataFile(path)
	if err == nil {
		return meta
	}
	if errors.Is(err, fs.ErrNotExist) {
		return fields{}
	}

	metrics.MetadataMalformed("metadata")
	r.logger.Warn("Ignoring unusable metadata file",
		slog.String("job_id", jobID),
		slog.String("path", path),
		slog.Any("error", err),
	)
	return fields{}
}

// fromFilesystem scans outputs/<platform>/ for the newest video, thumbnail
// and metadata file of each platform
func (r *Resolver) fromFilesystem(job *domain.Job) []Result {
	dirs := platformDirs(r.outputDir(job))
	results := make([]Result, 0, len(dirs))

	for _, p := range domain.Platforms() {
		dir, ok := dirs[p]
		if !ok {
			continue
		}

		latest, err := latestByExtension(dir)
		if err != nil {
			r.logger.Warn("Failed to scan platform directory",
				slog.String("job_id", job.ID),
				slog.String("dir", dir),
				slog.Any("error", err),
			)
			continue
		}

		video, hasVideo := latest[extVideo]
		thumb, hasThumb := latest[extThumbnail]
		if !hasVideo && !hasThumb {
			continue
		}

		found := fields{}
		if hasVideo {
			found.videoPath = RelativePath(job.ID, video.path)
		}
		if hasThumb {
			found.thumbnailPath = RelativePath(job.ID, thumb.path)
		}

		var meta fields
		if m, ok := latest[extMetadata]; ok {
			meta = r.loadMetadata(job.ID, m.path)
		}

		id := fmt.Sprintf("%s-%s", job.ID, p)
		results = append(results, toResult(id, p, merge(found, meta, placeholderDefaults(p))))
	}
	return results
}

// fromManifest reads outputs/summary_report.json
func (r *Resolver) fromManifest(job *domain.Job) []Result {
	outputDir := r.outputDir(job)
	path := filepath.Join(outputDir, workspace.SummaryFileName)

	entries, skipped, err := readManifest(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			metrics.MetadataMalformed("manifest")
			r.logger.Warn("Ignoring unusable summary manifest",
				slog.String("job_id", job.ID),
				slog.String("path", path),
				slog.Any("error", err),
			)
		}
		return nil
	}
	if len(skipped) > 0 {
		r.logger.Warn("Summary manifest lists unknown platforms",
			slog.String("job_id", job.ID),
			slog.Any("platforms", skipped),
		)
	}

	results := make([]Result, 0, len(entries))
	for _, p := range domain.Platforms() {
		entry, ok := entries[p]
		if !ok {
			continue
		}

		found := fields{
			duration:       entry.Duration,
			startTimestamp: entry.Timestamp,
			engagement:     normalizeEngagement(entry.Score, entry.EngagementLevel),
		}
		if entry.VideoFile != "" {
			found.videoPath = RelativePath(job.ID, filepath.Join(outputDir, string(p), filepath.Base(entry.VideoFile)))
		}
		if entry.ThumbnailFile != "" {
			found.thumbnailPath = RelativePath(job.ID, filepath.Join(outputDir, string(p), filepath.Base(entry.ThumbnailFile)))
		}

		id := fmt.Sprintf("%s-%s", job.ID, p)
		results = append(results, toResult(id, p, merge(found, placeholderDefaults(p))))
	}
	return results
}

func toResult(id string, p domain.Platform, f fields) Result {
	res := Result{
		ID:            id,
		Platform:      p,
		VideoPath:     f.videoPath,
		ThumbnailPath: f.thumbnailPath,
		AspectRatio:   f.aspectRatio,
		CreatedAt:     f.createdAt,
		Creatives:     f.creatives,
		Engagement:    f.engagement,
	}
	if f.duration != nil {
		res.Duration = *f.duration
	}
	if f.startTimestamp != nil {
		res.StartTimestamp = *f.startTimestamp
	}
	return res
}
