package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cuongbtq/clip-repurposer/internal/metrics"
)

// ErrPoolFull is returned when no queue slot is free for another job
var ErrPoolFull = errors.New("processor queue is full")

// ErrPoolStopped is returned when dispatching to a stopped pool
var ErrPoolStopped = errors.New("processor pool is stopped")

// JobInvoker runs one job's invocation to completion
type JobInvoker interface {
	Invoke(ctx context.Context, jobID string) error
}

// PoolConfig holds Pool configuration
type PoolConfig struct {
	Invoker     JobInvoker
	Logger      *slog.Logger
	Concurrency int
	QueueSize   int
}

// Pool runs invocations on a fixed set of goroutines inside the API process
type Pool struct {
	invoker     JobInvoker
	logger      *slog.Logger
	concurrency int
	jobsChan    chan string

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewPool creates a Pool; Start must be called before Dispatch
func NewPool(cfg PoolConfig) *Pool {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		invoker:     cfg.Invoker,
		logger:      cfg.Logger,
		concurrency: concurrency,
		jobsChan:    make(chan string, queueSize+concurrency),
	}
}

// Start spawns the worker goroutines
func (p *Pool) Start() {
	p.logger.Info("Spawning processor pool",
		slog.Int("concurrency", p.concurrency),
		slog.Int("queue_size", cap(p.jobsChan)),
	)

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
}

// Dispatch enqueues the job without blocking
func (p *Pool) Dispatch(_ context.Context, jobID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.jobsChan <- jobID:
		metrics.SetDispatchQueueDepth(len(p.jobsChan))
		return nil
	default:
		return fmt.Errorf("%w (%d pending)", ErrPoolFull, len(p.jobsChan))
	}
}

// Stop refuses new dispatches and waits until queued and running
// invocations have finished or ctx expires
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.jobsChan)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Processor pool stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("processor pool did not drain: %w", ctx.Err())
	}
}

// workerLoop is the main processing loop for each pool goroutine
func (p *Pool) workerLoop(workerNum int) {
	defer p.wg.Done()

	for jobID := range p.jobsChan {
		metrics.SetDispatchQueueDepth(len(p.jobsChan))
		p.logger.Info("Pool worker received job",
			slog.Int("worker_num", workerNum),
			slog.String("job_id", jobID),
		)

		if err := p.invoker.Invoke(context.Background(), jobID); err != nil {
			p.logger.Error("Job invocation failed",
				slog.Int("worker_num", workerNum),
				slog.String("job_id", jobID),
				slog.Any("error", err),
			)
		}
	}
}
