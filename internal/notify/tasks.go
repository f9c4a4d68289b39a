package notify

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type names routed through asynq.
const (
	TaskOrderConfirmation = "notify:order_confirmation"
)

// OrderConfirmationPayload carries the data the worker needs to send the
// order confirmation.
type OrderConfirmationPayload struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId"`
	Total   string `json:"total"`
}

// NewOrderConfirmationTask builds the asynq task for an order confirmation.
func NewOrderConfirmationTask(payload OrderConfirmationPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderConfirmation, body), nil
}
