package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
)

// Publisher is the subset of the RabbitMQ client used to enqueue jobs
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType, messageID string) error
}

// QueueDispatcher hands jobs to the worker service over RabbitMQ
type QueueDispatcher struct {
	publisher Publisher
}

// NewQueueDispatcher creates a new QueueDispatcher
func NewQueueDispatcher(publisher Publisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher}
}

// Dispatch publishes a job message keyed by the job id
func (d *QueueDispatcher) Dispatch(ctx context.Context, jobID string) error {
	body, err := json.Marshal(domain.JobMessage{JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to encode job message: %w", err)
	}

	if err := d.publisher.PublishWithRetry(ctx, body, "application/json", jobID); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}
	return nil
}
