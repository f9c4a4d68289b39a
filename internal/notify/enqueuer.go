package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-lapak/internal/money"
)

// Enqueuer pushes notification tasks onto the queue. A nil client disables
// enqueueing, which keeps checkout usable without Redis.
type Enqueuer struct {
	Client *asynq.Client
	Queue  string
	Log    zerolog.Logger
}

// EnqueueOrderCreated schedules the order confirmation task.
func (e *Enqueuer) EnqueueOrderCreated(ctx context.Context, orderID, userID uuid.UUID, total money.Money) error {
	if e == nil || e.Client == nil {
		return nil
	}
	task, err := NewOrderConfirmationTask(OrderConfirmationPayload{
		OrderID: orderID.String(),
		UserID:  userID.String(),
		Total:   total.String(),
	})
	if err != nil {
		return err
	}
	queue := e.Queue
	if queue == "" {
		queue = "default"
	}
	info, err := e.Client.EnqueueContext(ctx, task, asynq.Queue(queue))
	if err != nil {
		e.Log.Error().Err(err).Str("order_id", orderID.String()).Msg("enqueue order confirmation failed")
		return err
	}
	e.Log.Debug().Str("task_id", info.ID).Str("order_id", orderID.String()).Msg("order confirmation enqueued")
	return nil
}
