// Package notifier turns order events into customer notifications. Delivery
// is simulated by a structured log line.
package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/vrushab-bit/mini-shop/clients"
	"github.com/vrushab-bit/mini-shop/middleware"
	"github.com/vrushab-bit/mini-shop/order-service/models"

	"go.uber.org/zap"
)

type UserLookup interface {
	GetUser(ctx context.Context, id int64) (clients.User, error)
}

type Notification struct {
	To      string
	Subject string
	Body    string
}

type Notifier struct {
	users  UserLookup
	logger *zap.Logger
}

func New(users UserLookup, logger *zap.Logger) *Notifier {
	return &Notifier{users: users, logger: logger}
}

// OrderCreated notifies the ordering user. A user that no longer exists is
// skipped; a failed lookup is returned so the consumer retries.
func (n *Notifier) OrderCreated(ctx context.Context, event models.OrderEvent) error {
	u, err := n.users.GetUser(ctx, event.UserID)
	if errors.Is(err, clients.ErrNotFound) {
		n.logger.Warn("Skipping notification for unknown user",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Int64("order_id", event.OrderID),
			zap.Int64("user_id", event.UserID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up user %d: %w", event.UserID, err)
	}

	note := orderConfirmation(u, event)
	n.send(ctx, event, note)
	middleware.RecordNotificationSent(event.EventType)
	return nil
}

func orderConfirmation(u clients.User, event models.OrderEvent) Notification {
	return Notification{
		To:      u.Email,
		Subject: "Order Confirmation",
		Body: fmt.Sprintf("Hi %s, your order #%d for %d item(s) totalling %s has been placed successfully.",
			u.Name, event.OrderID, event.Quantity, event.TotalPrice.StringFixed(2)),
	}
}

func (n *Notifier) send(ctx context.Context, event models.OrderEvent, note Notification) {
	n.logger.Info("Order notification sent",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int64("order_id", event.OrderID),
		zap.Int64("user_id", event.UserID),
		zap.String("to", note.To),
		zap.String("subject", note.Subject),
		zap.String("body", note.Body),
	)
}
