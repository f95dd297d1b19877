package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool() {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(i)
	}

	w.logger.Info("Worker pool spawned",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop drains jobsChan until it is closed. Jobs are invoked with a
// background context so shutdown never interrupts a running processor.
func (w *Worker) workerLoop(workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	for d := range w.jobsChan {
		logger := w.logger.With(
			slog.String("worker_name", workerName),
			slog.String("job_id", d.msg.JobID),
		)

		err := w.invoker.Invoke(context.Background(), d.msg.JobID)
		w.settle(logger, d, err)
	}

	w.logger.Debug("Worker goroutine stopped",
		slog.String("worker_name", workerName),
	)
}

// settle acknowledges the delivery according to the invocation result
func (w *Worker) settle(logger *slog.Logger, d *delivery, err error) {
	if err == nil || jobOutcomeRecorded(err) {
		if err != nil {
			logger.Warn("Job failed", slog.Any("error", err))
		}
		if ackErr := d.raw.Ack(false); ackErr != nil {
			logger.Error("Failed to ACK message", slog.Any("error", ackErr))
		}
		return
	}

	requeue := shouldRequeue(err)
	logger.Error("Job invocation failed",
		slog.Any("error", err),
		slog.Bool("requeue", requeue),
	)
	if nackErr := d.raw.Nack(false, requeue); nackErr != nil {
		logger.Error("Failed to NACK message", slog.Any("error", nackErr))
	}
}

// jobOutcomeRecorded reports whether err is a processor failure that has
// already been written to the job as FAILED.
func jobOutcomeRecorded(err error) bool {
	var launchErr *domain.ProcessorLaunchError
	var runtimeErr *domain.ProcessorRuntimeError
	return errors.As(err, &launchErr) ||
		errors.As(err, &runtimeErr) ||
		errors.Is(err, domain.ErrNoOutputs)
}

// shouldRequeue determines if a message should go back to the queue
func shouldRequeue(err error) bool {
	// Another worker owns the job, or it is gone
	if errors.Is(err, domain.ErrAlreadyClaimed) ||
		errors.Is(err, domain.ErrJobNotFound) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrInvalidPayload) {
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
