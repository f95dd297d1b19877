package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/cuongbtq/clip-repurposer/internal/metrics"
)

// Dispatcher hands a PROCESSING job to whatever runs its invocation
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// Launcher starts jobs: it marks them PROCESSING and dispatches the invocation
type Launcher struct {
	store      JobStore
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewLauncher creates a new Launcher
func NewLauncher(store JobStore, dispatcher Dispatcher, logger *slog.Logger) *Launcher {
	return &Launcher{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Launch moves the job to PROCESSING and dispatches it. When the dispatch
// fails the job is marked FAILED and a *domain.ProcessorLaunchError is
// returned together with the failed job.
func (l *Launcher) Launch(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := l.store.MarkProcessing(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark job processing: %w", err)
	}
	metrics.JobTransition(string(domain.JobStatusProcessing))

	if err := l.dispatcher.Dispatch(ctx, jobID); err != nil {
		launchErr := &domain.ProcessorLaunchError{Err: err}
		l.logger.Error("Failed to dispatch job",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)

		failed, markErr := l.store.MarkFailed(context.WithoutCancel(ctx), jobID, launchErr.Error())
		if markErr != nil {
			l.logger.Error("Failed to mark job failed",
				slog.String("job_id", jobID),
				slog.Any("error", markErr),
			)
			return job, launchErr
		}
		metrics.JobTransition(string(domain.JobStatusFailed))
		return failed, launchErr
	}

	l.logger.Info("Job dispatched",
		slog.String("job_id", jobID),
	)
	return job, nil
}
