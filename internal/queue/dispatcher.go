package queue

import (
	"context"
	"time"

	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/services"
	"social-autoreply-platform/utils"

	"github.com/hibiken/asynq"
)

// Enqueuer is the subset of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher hands deliveries to the worker through asynq. When the queue is
// unreachable it falls back to processing in this process.
// The enqueue runs while the platform waits for its acknowledgement, so it is
// bounded by enqueueTimeout.
type Dispatcher struct {
	client         Enqueuer
	fallback       services.Dispatcher
	enqueueTimeout time.Duration
}

func NewDispatcher(client Enqueuer, fallback services.Dispatcher) *Dispatcher {
	return &Dispatcher{client: client, fallback: fallback, enqueueTimeout: utils.ShortTimeout}
}

func (d *Dispatcher) Dispatch(ctx context.Context, deliveryID string, body []byte) error {
	task, err := NewWebhookDeliveryTask(deliveryID, body)
	if err == nil {
		enqCtx, cancel := context.WithTimeout(ctx, d.enqueueTimeout)
		info, enqErr := d.client.EnqueueContext(enqCtx, task)
		cancel()
		if enqErr == nil {
			logger.Debug("Queued webhook delivery", "delivery_id", deliveryID, "task_id", info.ID, "queue", info.Queue)
			return nil
		}
		err = enqErr
	}

	logger.Warn("Enqueue failed; processing delivery inline", "delivery_id", deliveryID, "error", err)
	return d.fallback.Dispatch(ctx, deliveryID, body)
}
