package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/clip-repurposer/internal/assets"
	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/cuongbtq/clip-repurposer/internal/resolver"
	"github.com/cuongbtq/clip-repurposer/internal/storage"
	"github.com/cuongbtq/clip-repurposer/internal/workspace"
)

// JobLauncher moves a created job to PROCESSING and dispatches its invocation
type JobLauncher interface {
	Launch(ctx context.Context, jobID string) (*domain.Job, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Store     storage.Repository
	Workspace *workspace.Workspace
	Launcher  JobLauncher
	Resolver  *resolver.Resolver
	Gateway   *assets.Gateway
	// PublicBase prefixes file URLs; defaults to resolver.DefaultPublicBase
	PublicBase string
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger     *slog.Logger
	store      storage.Repository
	workspace  *workspace.Workspace
	launcher   JobLauncher
	resolver   *resolver.Resolver
	gateway    *assets.Gateway
	publicBase string
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	publicBase := deps.PublicBase
	if publicBase == "" {
		publicBase = resolver.DefaultPublicBase
	}
	return &JobHandler{
		logger:     deps.Logger,
		store:      deps.Store,
		workspace:  deps.Workspace,
		launcher:   deps.Launcher,
		resolver:   deps.Resolver,
		gateway:    deps.Gateway,
		publicBase: publicBase,
	}
}
