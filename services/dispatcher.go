package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/utils"
)

var ErrDispatcherClosed = errors.New("dispatcher is shutting down")

// Dispatcher hands an acknowledged delivery to background processing.
// Dispatch must return without waiting for the work to finish.
type Dispatcher interface {
	Dispatch(ctx context.Context, deliveryID string, body []byte) error
}

// DeliveryProcessor processes one raw delivery to completion.
type DeliveryProcessor interface {
	ProcessDelivery(ctx context.Context, deliveryID string, body []byte) []CommentResult
}

// InlineDispatcher runs each delivery in its own goroutine in this process.
type InlineDispatcher struct {
	processor DeliveryProcessor
	wg        sync.WaitGroup
	closed    atomic.Bool
}

func NewInlineDispatcher(processor DeliveryProcessor) *InlineDispatcher {
	return &InlineDispatcher{processor: processor}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, deliveryID string, body []byte) error {
	if d.closed.Load() {
		return ErrDispatcherClosed
	}

	// The request context ends with the response; keep only its values.
	bg := utils.Detached(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic in webhook delivery",
					"delivery_id", deliveryID,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
			}
		}()

		d.processor.ProcessDelivery(bg, deliveryID, body)
	}()
	return nil
}

// Shutdown stops accepting deliveries and waits for in-flight ones.
func (d *InlineDispatcher) Shutdown(ctx context.Context) error {
	d.closed.Store(true)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight deliveries: %w", ctx.Err())
	}
}
