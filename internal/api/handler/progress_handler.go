package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/clip-repurposer/internal/api/dto"
	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/gin-gonic/gin"
)

// ReportProgress handles POST /api/v1/jobs/:job_id/progress
// Called by the processor while it runs. It can raise progress and record
// generated contents, but never changes the job status.
func (h *JobHandler) ReportProgress(c *gin.Context) {
	jobID, ok := h.validJobID(c)
	if !ok {
		return
	}

	var req dto.ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if req.Progress != nil && (*req.Progress < 0 || *req.Progress > domain.ProgressCompleted) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("progress must be between 0 and %d", domain.ProgressCompleted),
		})
		return
	}

	contents, err := toContents(req.Contents)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	ctx := c.Request.Context()

	var job *domain.Job
	if req.Progress != nil {
		job, err = h.store.ReportProgress(ctx, jobID, *req.Progress)
	} else {
		job, err = h.store.GetJob(ctx, jobID)
		if err == nil && job.Status != domain.JobStatusProcessing {
			err = fmt.Errorf("%w: contents reported for %s job", domain.ErrInvalidTransition, job.Status)
		}
	}
	if err != nil {
		h.respondError(c, err, "Failed to record progress")
		return
	}

	if len(contents) > 0 {
		if err := h.store.SaveContents(ctx, jobID, contents); err != nil {
			h.respondError(c, err, "Failed to record contents")
			return
		}
	}

	h.logger.Debug("Progress reported",
		slog.String("job_id", jobID),
		slog.Int("progress", job.Progress),
		slog.Int("contents", len(contents)),
	)

	c.JSON(http.StatusOK, dto.ProgressResponse{
		JobID:    job.ID,
		Status:   string(job.Status),
		Progress: job.Progress,
		Recorded: len(contents),
	})
}

func toContents(in []dto.ContentDTO) ([]domain.Content, error) {
	out := make([]domain.Content, 0, len(in))
	for _, c := range in {
		platform, err := domain.ParsePlatform(c.Platform)
		if err != nil {
			return nil, err
		}

		content := domain.Content{
			Platform:       platform,
			VideoPath:      c.VideoPath,
			ThumbnailPath:  c.ThumbnailPath,
			MetadataPath:   c.MetadataPath,
			Duration:       c.Duration,
			StartTimestamp: c.StartTimestamp,
		}
		if c.Creatives != nil {
			content.Creative = &domain.CreativeText{
				Headline:     c.Creatives.Headline,
				Description:  c.Creatives.Description,
				CallToAction: c.Creatives.CallToAction,
			}
		}
		if c.Engagement != nil {
			level := domain.ParseEngagementLevel(c.Engagement.EngagementLevel)
			if level == "" {
				level = domain.LevelForScore(c.Engagement.PredictedEngagement)
			}
			content.Metric = &domain.EngagementMetric{
				PredictedEngagement: c.Engagement.PredictedEngagement,
				EngagementLevel:     level,
			}
		}
		out = append(out, content)
	}
	return out, nil
}
