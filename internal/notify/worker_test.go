package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-lapak/internal/common"
)

type fixedRecipients struct {
	email string
}

func (f fixedRecipients) EmailForUser(context.Context, string) (string, error) {
	return f.email, nil
}

func confirmationTask(t *testing.T, payload OrderConfirmationPayload) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(TaskOrderConfirmation, body)
}

func TestHandleOrderConfirmationSendsEmail(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	c := &Consumer{
		Email:      outbox,
		Recipients: fixedRecipients{email: "budi@example.com"},
		Log:        zerolog.Nop(),
	}
	task := confirmationTask(t, OrderConfirmationPayload{OrderID: "o-1", UserID: "u-1", Total: "118.00"})

	require.NoError(t, c.handleOrderConfirmation(context.Background(), task))
	require.Len(t, outbox.Outbox, 1)
	require.Equal(t, "budi@example.com", outbox.Outbox[0].To)
	require.Contains(t, outbox.Outbox[0].HTML, "118.00")
}

func TestHandleOrderConfirmationSkipsWithoutRecipient(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	c := &Consumer{
		Email:      outbox,
		Recipients: fixedRecipients{email: ""},
		Log:        zerolog.Nop(),
	}
	task := confirmationTask(t, OrderConfirmationPayload{OrderID: "o-2", UserID: "u-2", Total: "10.00"})

	require.NoError(t, c.handleOrderConfirmation(context.Background(), task))
	require.Empty(t, outbox.Outbox)
}

func TestHandleOrderConfirmationRejectsBadPayload(t *testing.T) {
	c := &Consumer{Email: common.NopEmailSender{}, Log: zerolog.Nop()}
	task := asynq.NewTask(TaskOrderConfirmation, []byte("not-json"))

	require.Error(t, c.handleOrderConfirmation(context.Background(), task))
}
