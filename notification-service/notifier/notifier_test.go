package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/vrushab-bit/mini-shop/clients"
	"github.com/vrushab-bit/mini-shop/order-service/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubUsers struct {
	user clients.User
	err  error
}

func (s stubUsers) GetUser(context.Context, int64) (clients.User, error) {
	return s.user, s.err
}

func event() models.OrderEvent {
	return models.NewOrderCreatedEvent(models.Order{
		ID:         12,
		UserID:     1,
		ProductID:  5,
		Quantity:   3,
		TotalPrice: decimal.RequireFromString("59.97"),
	})
}

func TestOrderCreated_SendsToUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := New(stubUsers{user: clients.User{ID: 1, Name: "Ada", Email: "ada@example.com"}}, zap.New(core))

	require.NoError(t, n.OrderCreated(context.Background(), event()))

	sent := logs.FilterMessage("Order notification sent").All()
	require.Len(t, sent, 1)
	fields := sent[0].ContextMap()
	assert.Equal(t, "ada@example.com", fields["to"])
	assert.Equal(t, "Hi Ada, your order #12 for 3 item(s) totalling 59.97 has been placed successfully.", fields["body"])
}

func TestOrderCreated_UnknownUserIsSkipped(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := New(stubUsers{err: clients.ErrNotFound}, zap.New(core))

	require.NoError(t, n.OrderCreated(context.Background(), event()))
	assert.Empty(t, logs.FilterMessage("Order notification sent").All())
	assert.Len(t, logs.FilterMessage("Skipping notification for unknown user").All(), 1)
}

func TestOrderCreated_LookupFailureIsReturned(t *testing.T) {
	down := &clients.TransportError{Transport: clients.TransportHTTP, Op: "GetUser", Err: errors.New("connection refused")}
	n := New(stubUsers{err: down}, zap.NewNop())

	err := n.OrderCreated(context.Background(), event())
	require.Error(t, err)
	assert.True(t, clients.IsTransport(err))
}
