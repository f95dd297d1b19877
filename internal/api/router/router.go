package router

import (
	"context"
	"net/http"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/api/handler"
	"github.com/cuongbtq/clip-repurposer/internal/metrics"
	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// Options tune the router beyond handler dependencies
type Options struct {
	ServiceName    string
	AllowedOrigins []string
	// MaxMultipartMemory bounds the in-memory part of an upload
	MaxMultipartMemory int64
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()
	if opts.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = opts.MaxMultipartMemory
	}

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(opts.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		if err := deps.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": opts.ServiceName,
				"error":   err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": opts.ServiceName,
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Upload a video and start repurposing
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs, newest first
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Job status and progress
			jobs.GET("/:job_id", jobHandler.GetJob)

			// GET /api/v1/jobs/:job_id/results - Reconciled generated clips
			jobs.GET("/:job_id/results", jobHandler.GetResults)

			// GET /api/v1/jobs/:job_id/artifacts - Output files per platform
			jobs.GET("/:job_id/artifacts", jobHandler.ListArtifacts)

			// GET /api/v1/jobs/:job_id/files/*path - Stream a file from the job outputs
			jobs.GET("/:job_id/files/*path", jobHandler.ServeFile)

			// POST /api/v1/jobs/:job_id/progress - Processor callback
			jobs.POST("/:job_id/progress", jobHandler.ReportProgress)
		}
	}

	return r
}
