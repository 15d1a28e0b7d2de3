package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/services"

	"github.com/hibiken/asynq"
)

const (
	TaskWebhookDelivery = "webhook:delivery"

	QueueWebhooks = "webhooks"
)

type WebhookDeliveryPayload struct {
	DeliveryID string          `json:"delivery_id"`
	Body       json.RawMessage `json:"body"`
	ReceivedAt time.Time       `json:"received_at"`
}

// NewWebhookDeliveryTask wraps one acknowledged delivery. Deliveries are
// single-shot: a failed task is not retried or replayed.
func NewWebhookDeliveryTask(deliveryID string, body []byte) (*asynq.Task, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("delivery %s: body is not valid JSON", deliveryID)
	}

	payload, err := json.Marshal(WebhookDeliveryPayload{
		DeliveryID: deliveryID,
		Body:       body,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskWebhookDelivery,
		payload,
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
		asynq.Queue(QueueWebhooks),
		asynq.TaskID(deliveryID),
	), nil
}

// TaskProcessor handles queued deliveries in the worker process.
type TaskProcessor struct {
	processor services.DeliveryProcessor
}

func NewTaskProcessor(processor services.DeliveryProcessor) *TaskProcessor {
	return &TaskProcessor{processor: processor}
}

func (p *TaskProcessor) ProcessWebhookDelivery(ctx context.Context, t *asynq.Task) error {
	var payload WebhookDeliveryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	logger.Info("Processing queued webhook delivery",
		"delivery_id", payload.DeliveryID,
		"queued_for", time.Since(payload.ReceivedAt).String(),
	)

	// Per-comment failures are absorbed by the pipeline; nothing here is retryable.
	p.processor.ProcessDelivery(ctx, payload.DeliveryID, payload.Body)
	return nil
}
