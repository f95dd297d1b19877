package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/cuongbtq/clip-repurposer/internal/workspace"
	"github.com/gin-gonic/gin"
)

// statusForError maps domain errors to HTTP status codes
func statusForError(err error) int {
	var launchErr *domain.ProcessorLaunchError
	switch {
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrArtifactNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbiddenPath):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, domain.ErrJobExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownPlatform),
		errors.Is(err, domain.ErrNoPlatforms),
		errors.Is(err, domain.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, workspace.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &launchErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...}. Server-side failures are logged and
// reported with a generic message.
func (h *JobHandler) respondError(c *gin.Context, err error, msg string) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		h.logger.Error(msg,
			slog.String("path", c.Request.URL.Path),
			slog.Any("error", err),
		)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *JobHandler) validJobID(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if !workspace.ValidJobID(jobID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}
	return jobID, true
}
