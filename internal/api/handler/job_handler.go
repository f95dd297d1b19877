package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/clip-repurposer/internal/api/dto"
	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/cuongbtq/clip-repurposer/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateJob handles POST /api/v1/jobs
// Stores the uploaded video, creates the job and launches the processor
func (h *JobHandler) CreateJob(c *gin.Context) {
	fileHeader, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "video file is required",
		})
		return
	}

	platforms, err := parsePlatformValues(c.PostFormArray("platforms"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, err, "Failed to read upload")
		return
	}
	defer src.Close()

	inputPath, err := h.workspace.SaveUpload(src, fileHeader.Filename)
	if err != nil {
		h.respondError(c, err, "Failed to store upload")
		return
	}

	jobID := uuid.NewString()
	if err := h.workspace.PrepareJob(jobID); err != nil {
		h.discardUpload(inputPath, jobID)
		h.respondError(c, err, "Failed to prepare job directory")
		return
	}

	job, err := h.store.CreateJob(c.Request.Context(), domain.NewJob{
		ID:           jobID,
		OriginalName: filepath.Base(fileHeader.Filename),
		InputPath:    inputPath,
		OutputDir:    h.workspace.OutputDir(jobID),
		Platforms:    platforms,
	})
	if err != nil {
		h.discardUpload(inputPath, jobID)
		h.respondError(c, err, "Failed to create job")
		return
	}
	metrics.JobTransition(string(domain.JobStatusQueued))

	h.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("original_name", job.OriginalName),
		slog.Int64("size", fileHeader.Size),
		slog.Any("platforms", domain.PlatformStrings(platforms)),
	)

	launched, err := h.launcher.Launch(c.Request.Context(), job.ID)
	if err != nil {
		var launchErr *domain.ProcessorLaunchError
		if errors.As(err, &launchErr) {
			c.JSON(http.StatusBadGateway, dto.CreateJobResponse{
				JobID:  job.ID,
				Status: string(domain.JobStatusFailed),
				Error:  launchErr.Error(),
			})
			return
		}
		h.respondError(c, err, "Failed to launch job")
		return
	}

	c.JSON(http.StatusAccepted, dto.CreateJobResponse{
		JobID:  launched.ID,
		Status: string(launched.Status),
	})
}

// discardUpload removes what a failed CreateJob left behind
func (h *JobHandler) discardUpload(inputPath, jobID string) {
	if err := os.Remove(inputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.logger.Warn("Failed to remove upload", slog.String("path", inputPath), slog.Any("error", err))
	}
	if err := h.workspace.DiscardJob(jobID); err != nil {
		h.logger.Warn("Failed to remove job directory", slog.String("job_id", jobID), slog.Any("error", err))
	}
}

// parsePlatformValues accepts repeated form fields, comma separated lists and
// JSON arrays, in any combination
func parsePlatformValues(values []string) ([]domain.Platform, error) {
	var names []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			var list []string
			if err := json.Unmarshal([]byte(v), &list); err != nil {
				return nil, fmt.Errorf("%w: platforms is not a JSON string array", domain.ErrInvalidPayload)
			}
			names = append(names, list...)
			continue
		}
		names = append(names, strings.Split(v, ",")...)
	}
	return domain.ParsePlatforms(names)
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := h.validJobID(c)
	if !ok {
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err, "Failed to get job")
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with optional status filter and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	status := domain.JobStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if status != "" && !status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("unknown status %q", req.Status),
		})
		return
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Debug("Invalid cursor", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	page, err := h.store.ListJobs(c.Request.Context(), domain.JobFilter{
		Status:   status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.respondError(c, err, "Failed to list jobs")
		return
	}

	jobs := make([]dto.JobDTO, len(page.Jobs))
	for i, job := range page.Jobs {
		jobs[i] = dto.NewJobDTO(job)
	}

	var nextCursor string
	if page.HasMore && len(page.Jobs) > 0 {
		nextCursor = EncodeJobCursor(page.Jobs[len(page.Jobs)-1])
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobs,
		NextCursor: nextCursor,
	})
}
