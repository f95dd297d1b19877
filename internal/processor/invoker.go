package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/cuongbtq/clip-repurposer/internal/metrics"
)

// JobStore is the part of the job repository the processor lifecycle needs
type JobStore interface {
	MarkProcessing(ctx context.Context, jobID string) (*domain.Job, error)
	MarkCompleted(ctx context.Context, jobID string) (*domain.Job, error)
	MarkFailed(ctx context.Context, jobID, message string) (*domain.Job, error)
	ClaimInvocation(ctx context.Context, jobID, workerID string) (*domain.Job, error)
}

const (
	defaultWriteTimeout  = 10 * time.Second
	terminalWriteRetries = 3
)

// InvokerConfig holds Invoker dependencies
type InvokerConfig struct {
	Store    JobStore
	Runner   Runner
	Logger   *slog.Logger
	WorkerID string
	// LogPath returns where the processor output of a job is kept; optional
	LogPath func(jobID string) string
	// WriteTimeout bounds each terminal status write
	WriteTimeout time.Duration
}

// Invoker runs the processor for one job and records the terminal status
type Invoker struct {
	store        JobStore
	runner       Runner
	logger       *slog.Logger
	workerID     string
	logPath      func(jobID string) string
	writeTimeout time.Duration
}

// NewInvoker creates a new Invoker
func NewInvoker(cfg InvokerConfig) *Invoker {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Invoker{
		store:        cfg.Store,
		runner:       cfg.Runner,
		logger:       cfg.Logger,
		workerID:     cfg.WorkerID,
		logPath:      cfg.LogPath,
		writeTimeout: writeTimeout,
	}
}

// Invoke claims the job, runs the processor once and marks the job
// COMPLETED or FAILED. The processor is not cancelled when ctx is.
func (i *Invoker) Invoke(ctx context.Context, jobID string) error {
	// 1. Claim the single invocation of this job
	job, err := i.store.ClaimInvocation(ctx, jobID, i.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return domain.NewRetryableError(err)
		}
		return fmt.Errorf("failed to claim job: %w", err)
	}

	inv := Invocation{
		JobID:     job.ID,
		InputPath: job.InputPath,
		OutputDir: job.OutputDir,
		Platforms: job.Platforms,
	}
	if i.logPath != nil {
		inv.LogPath = i.logPath(job.ID)
	}

	i.logger.Info("Starting processor",
		slog.String("job_id", job.ID),
		slog.String("worker_id", i.workerID),
		slog.Any("platforms", domain.PlatformStrings(job.Platforms)),
	)

	// 2. Run the processor to completion
	detached := context.WithoutCancel(ctx)
	start := time.Now()
	runErr := i.runner.Run(detached, inv)
	elapsed := time.Since(start)

	// 3. Record the outcome
	outcome, err := i.finish(detached, job, runErr)
	metrics.ObserveProcessorRun(outcome, elapsed.Seconds())

	i.logger.Info("Processor finished",
		slog.String("job_id", job.ID),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", elapsed),
	)

	return err
}

// finish writes the terminal status for a finished run
func (i *Invoker) finish(ctx context.Context, job *domain.Job, runErr error) (string, error) {
	if runErr != nil {
		outcome := metrics.OutcomeRuntimeError
		var launchErr *domain.ProcessorLaunchError
		if errors.As(runErr, &launchErr) {
			outcome = metrics.OutcomeLaunchError
		}

		i.logger.Error("Processor failed",
			slog.String("job_id", job.ID),
			slog.Any("error", runErr),
		)
		if err := i.markFailed(ctx, job.ID, runErr.Error()); err != nil {
			return outcome, err
		}
		return outcome, runErr
	}

	count, err := CountOutputs(job.OutputDir)
	if err != nil {
		i.logger.Warn("Failed to inspect output directory",
			slog.String("job_id", job.ID),
			slog.String("output_dir", job.OutputDir),
			slog.Any("error", err),
		)
	}
	if count == 0 {
		if err := i.markFailed(ctx, job.ID, domain.ErrNoOutputs.Error()); err != nil {
			return metrics.OutcomeNoOutput, err
		}
		return metrics.OutcomeNoOutput, domain.ErrNoOutputs
	}

	err = i.retryWrite(ctx, func(ctx context.Context) error {
		_, err := i.store.MarkCompleted(ctx, job.ID)
		return err
	})
	if err != nil {
		return metrics.OutcomeCompleted, fmt.Errorf("failed to mark job completed: %w", err)
	}
	metrics.JobTransition(string(domain.JobStatusCompleted))

	i.logger.Info("Job completed",
		slog.String("job_id", job.ID),
		slog.Int("output_files", count),
	)
	return metrics.OutcomeCompleted, nil
}

func (i *Invoker) markFailed(ctx context.Context, jobID, message string) error {
	err := i.retryWrite(ctx, func(ctx context.Context) error {
		_, err := i.store.MarkFailed(ctx, jobID, message)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	metrics.JobTransition(string(domain.JobStatusFailed))
	return nil
}

// retryWrite retries a terminal status write while the store is unavailable
func (i *Invoker) retryWrite(ctx context.Context, write func(context.Context) error) error {
	backoff := 200 * time.Millisecond
	var err error
	for attempt := 1; attempt <= terminalWriteRetries; attempt++ {
		writeCtx, cancel := context.WithTimeout(ctx, i.writeTimeout)
		err = write(writeCtx)
		cancel()
		if err == nil || !errors.Is(err, domain.ErrStorageUnavailable) {
			return err
		}

		i.logger.Warn("Terminal status write failed, retrying",
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		if attempt < terminalWriteRetries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return err
}
