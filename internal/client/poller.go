package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/api/dto"
	"github.com/cuongbtq/clip-repurposer/internal/domain"
)

const (
	// DefaultPollInterval is the fixed delay between status checks
	DefaultPollInterval = 5 * time.Second
	// DefaultMaxConsecutiveErrors ends a poll after this many failed requests in a row
	DefaultMaxConsecutiveErrors = 3
)

// ErrStillPolling is returned by Handle.Result before polling has ended
var ErrStillPolling = errors.New("poll is still running")

// JobGetter fetches the current state of a job
type JobGetter interface {
	GetJob(ctx context.Context, jobID string) (*dto.JobDTO, error)
}

// PollerConfig tunes a Poller
type PollerConfig struct {
	Interval time.Duration
	// MaxConsecutiveErrors of zero uses the default; negative retries forever
	MaxConsecutiveErrors int
}

// Poller watches jobs at a fixed interval until they reach a terminal status
type Poller struct {
	getter    JobGetter
	interval  time.Duration
	maxErrors int
}

// NewPoller creates a Poller
func NewPoller(getter JobGetter, cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxErrors := cfg.MaxConsecutiveErrors
	if maxErrors == 0 {
		maxErrors = DefaultMaxConsecutiveErrors
	}
	return &Poller{
		getter:    getter,
		interval:  interval,
		maxErrors: maxErrors,
	}
}

// UpdateFunc receives every successfully fetched job state, from the polling
// goroutine. It may call Stop on the poll's Handle.
type UpdateFunc func(job *dto.JobDTO)

// Handle controls one running poll
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	// set while onUpdate runs on the polling goroutine
	notifying atomic.Bool

	job *dto.JobDTO
	err error
}

// Start checks the job immediately and then once per interval on its own
// goroutine. Polling ends on a terminal status, on Stop, when ctx is done or
// after too many consecutive request failures.
func (p *Poller) Start(ctx context.Context, jobID string, onUpdate UpdateFunc) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go p.run(ctx, h, jobID, onUpdate)
	return h
}

// Wait polls until the job ends and returns its final state
func (p *Poller) Wait(ctx context.Context, jobID string, onUpdate UpdateFunc) (*dto.JobDTO, error) {
	h := p.Start(ctx, jobID, onUpdate)
	<-h.Done()
	return h.Result()
}

func (p *Poller) run(ctx context.Context, h *Handle, jobID string, onUpdate UpdateFunc) {
	defer close(h.done)
	defer h.cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	failures := 0
	for {
		job, err := p.getter.GetJob(ctx, jobID)
		if ctx.Err() != nil {
			h.err = ctx.Err()
			return
		}

		if err != nil {
			failures++
			if IsNotFound(err) {
				h.err = err
				return
			}
			if p.maxErrors > 0 && failures >= p.maxErrors {
				h.err = fmt.Errorf("polling job %s failed %d times in a row: %w", jobID, failures, err)
				return
			}
		} else {
			failures = 0
			h.job = job
			if onUpdate != nil {
				h.notify(onUpdate, job)
			}
			if domain.JobStatus(job.Status).IsTerminal() {
				return
			}
			if ctx.Err() != nil {
				h.err = ctx.Err()
				return
			}
		}

		select {
		case <-ctx.Done():
			h.err = ctx.Err()
			return
		case <-ticker.C:
		}
	}
}

func (h *Handle) notify(onUpdate UpdateFunc, job *dto.JobDTO) {
	h.notifying.Store(true)
	defer h.notifying.Store(false)
	onUpdate(job)
}

// Stop ends polling and returns once the polling goroutine has exited. While
// an UpdateFunc is running, Stop only cancels: the goroutine exits as soon as
// the callback returns, without another request or callback, and Done reports
// when it has. It is safe to call more than once and from several goroutines.
func (h *Handle) Stop() {
	h.cancel()
	if h.notifying.Load() {
		return
	}
	<-h.done
}

// Done is closed when polling has ended
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the last observed job and why polling ended: nil for a
// terminal status, context.Canceled after Stop, or the request error.
func (h *Handle) Result() (*dto.JobDTO, error) {
	select {
	case <-h.done:
	default:
		return nil, ErrStillPolling
	}
	return h.job, h.err
}
