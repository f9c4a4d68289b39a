package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-lapak/internal/common"
)

// Recipients resolves the email address behind a user id.
type Recipients interface {
	EmailForUser(ctx context.Context, userID string) (string, error)
}

// Consumer handles notification tasks on the worker side.
type Consumer struct {
	Email      common.EmailSender
	Recipients Recipients
	Log        zerolog.Logger
}

// Register wires the consumer's handlers into the asynq mux.
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		return
	}
	mux.HandleFunc(TaskOrderConfirmation, c.handleOrderConfirmation)
}

func (c *Consumer) handleOrderConfirmation(ctx context.Context, task *asynq.Task) error {
	var payload OrderConfirmationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		c.Log.Warn().Err(err).Msg("order confirmation payload unmarshal failed")
		return err
	}
	if payload.OrderID == "" {
		return nil
	}
	to := ""
	if c.Recipients != nil {
		email, err := c.Recipients.EmailForUser(ctx, payload.UserID)
		if err != nil {
			c.Log.Warn().Err(err).Str("user_id", payload.UserID).Msg("recipient lookup failed")
			return err
		}
		to = email
	}
	if to == "" {
		c.Log.Debug().Str("order_id", payload.OrderID).Msg("no recipient for order confirmation")
		return nil
	}
	subject := fmt.Sprintf("Order %s confirmed", payload.OrderID)
	html := fmt.Sprintf("<p>Thanks for your order.</p><p>Order %s, total %s.</p>", payload.OrderID, payload.Total)
	if err := c.Email.Send(to, subject, html); err != nil {
		c.Log.Error().Err(err).Str("order_id", payload.OrderID).Msg("order confirmation send failed")
		return err
	}
	c.Log.Info().Str("order_id", payload.OrderID).Str("to", to).Msg("order confirmation sent")
	return nil
}

// LogEmailSender writes outgoing mail to the log instead of a mail provider.
type LogEmailSender struct {
	Log zerolog.Logger
}

// Send implements common.EmailSender.
func (s LogEmailSender) Send(to, subject, html string) error {
	s.Log.Info().Str("to", to).Str("subject", subject).Int("bytes", len(html)).Msg("email out")
	return nil
}
