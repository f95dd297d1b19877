package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// delivery pairs a parsed job message with the broker delivery to settle
type delivery struct {
	msg domain.JobMessage
	raw amqp.Delivery
}

// parseMessage decodes a job message body and validates the job id
func parseMessage(body []byte) (domain.JobMessage, error) {
	var msg domain.JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	if _, err := uuid.Parse(msg.JobID); err != nil {
		return msg, fmt.Errorf("%w: job_id %q is not a UUID", domain.ErrInvalidPayload, msg.JobID)
	}

	return msg, nil
}

func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	// Prefetch is applied by the RabbitMQ client when the channel is set up.
	deliveries, err := w.consumer.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
	)

	return deliveries, nil
}

// startMessageDispatcher hands valid deliveries to the worker pool
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return nil

		case raw, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return ErrDeliveriesClosed
			}

			msg, err := parseMessage(raw.Body)
			if err != nil {
				w.logger.Error("Dropping malformed job message",
					slog.Any("error", err),
					slog.String("body", string(raw.Body)),
				)
				// Malformed messages go to the dead letter exchange, if any
				if nackErr := raw.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.Any("error", nackErr),
					)
				}
				continue
			}
			msg.DeliveryTag = raw.DeliveryTag

			select {
			case w.jobsChan <- &delivery{msg: msg, raw: raw}:
				w.logger.Debug("Job dispatched to worker pool",
					slog.String("job_id", msg.JobID),
					slog.Uint64("delivery_tag", raw.DeliveryTag),
				)
			case <-ctx.Done():
				// Nobody picked it up: give it back to the broker
				if nackErr := raw.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.Any("error", nackErr),
					)
				}
				return nil
			}
		}
	}
}
