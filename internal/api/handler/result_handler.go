package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/cuongbtq/clip-repurposer/internal/api/dto"
	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/cuongbtq/clip-repurposer/internal/metrics"
	"github.com/cuongbtq/clip-repurposer/internal/resolver"
	"github.com/gin-gonic/gin"
)

const assetCacheControl = "public, max-age=3600"

// GetResults handles GET /api/v1/jobs/:job_id/results
// Results are returned for any status; clients decide when to ask.
func (h *JobHandler) GetResults(c *gin.Context) {
	jobID, ok := h.validJobID(c)
	if !ok {
		return
	}

	res, err := h.resolver.Resolve(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err, "Failed to resolve results")
		return
	}

	c.JSON(http.StatusOK, dto.NewResultsResponse(res))
}

// ServeFile handles GET /api/v1/jobs/:job_id/files/*path
func (h *JobHandler) ServeFile(c *gin.Context) {
	jobID := c.Param("job_id")
	relPath := strings.TrimPrefix(c.Param("path"), "/")

	asset, err := h.gateway.Resolve(jobID, relPath)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbiddenPath):
			metrics.AssetRequest("forbidden")
			h.logger.Warn("Rejected asset path",
				slog.String("job_id", jobID),
				slog.String("path", relPath),
				slog.String("ip", c.ClientIP()),
			)
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		case errors.Is(err, domain.ErrArtifactNotFound):
			metrics.AssetRequest("not_found")
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		default:
			h.respondError(c, err, "Failed to resolve file")
		}
		return
	}

	f, err := os.Open(asset.Path)
	if err != nil {
		metrics.AssetRequest("not_found")
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	defer f.Close()

	disposition := "inline"
	if download := c.Query("download"); download == "1" || download == "true" {
		disposition = "attachment"
	}

	header := c.Writer.Header()
	header.Set("Content-Type", asset.ContentType)
	header.Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": asset.Name}))
	header.Set("Cache-Control", assetCacheControl)

	metrics.AssetRequest("served")
	http.ServeContent(c.Writer, c.Request, asset.Name, asset.ModTime, f)
}

// ListArtifacts handles GET /api/v1/jobs/:job_id/artifacts
func (h *JobHandler) ListArtifacts(c *gin.Context) {
	jobID, ok := h.validJobID(c)
	if !ok {
		return
	}

	if _, err := h.store.GetJob(c.Request.Context(), jobID); err != nil {
		h.respondError(c, err, "Failed to get job")
		return
	}

	listing, err := h.gateway.List(jobID)
	if err != nil && !errors.Is(err, domain.ErrArtifactNotFound) {
		h.respondError(c, err, "Failed to list artifacts")
		return
	}

	c.JSON(http.StatusOK, dto.NewArtifactsResponse(jobID, listing, func(rel string) string {
		return resolver.FileURL(h.publicBase, jobID, rel)
	}))
}
