package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDeliveriesClosed is returned by Start when the broker closes the consumer
var ErrDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

// Consumer is the subset of the RabbitMQ client the worker reads from
type Consumer interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	Cancel(consumerTag string) error
}

// JobInvoker runs the processor for one job
type JobInvoker interface {
	Invoke(ctx context.Context, jobID string) error
}

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Consumer    Consumer
	Invoker     JobInvoker
	WorkerID    string
	Concurrency int
}

// Worker consumes job messages and invokes the processor for each of them
type Worker struct {
	logger      *slog.Logger
	consumer    Consumer
	invoker     JobInvoker
	workerID    string
	concurrency int
	jobsChan    chan *delivery
	wg          sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := max(cfg.Concurrency, 1)
	return &Worker{
		logger:      cfg.Logger,
		consumer:    cfg.Consumer,
		invoker:     cfg.Invoker,
		workerID:    cfg.WorkerID,
		concurrency: concurrency,
		jobsChan:    make(chan *delivery),
	}
}

// Start consumes until ctx is cancelled or the broker closes the delivery
// channel. Jobs already handed to the pool keep running; call Stop to wait
// for them.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		close(w.jobsChan)
		return err
	}

	w.spawnWorkerPool()

	err = w.startMessageDispatcher(ctx, deliveries)

	if cancelErr := w.consumer.Cancel(w.workerID); cancelErr != nil {
		w.logger.Debug("Failed to cancel consumer",
			slog.Any("error", cancelErr),
		)
	}
	close(w.jobsChan)

	return err
}

// Stop waits for in-flight jobs to finish or ctx to expire
func (w *Worker) Stop(ctx context.Context) error {
	w.logger.Info("Stopping worker, waiting for in-flight jobs")

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker shutdown: %w", ctx.Err())
	}
}
