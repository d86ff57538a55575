package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order references user and product ids that were verified at creation time
// only. total_price is frozen from the price observed then.
type Order struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int64           `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CreateOrderRequest uses pointers so a missing field can be told apart from
// an explicit zero. Non-integer JSON (strings, fractions) fails to decode.
type CreateOrderRequest struct {
	UserID    *int64 `json:"user_id"`
	ProductID *int64 `json:"product_id"`
	Quantity  *int64 `json:"quantity"`
}

const EventOrderCreated = "order_created"

type OrderEvent struct {
	OrderID    int64           `json:"order_id"`
	UserID     int64           `json:"user_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int64           `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	EventType  string          `json:"event_type"`
}

func NewOrderCreatedEvent(o Order) OrderEvent {
	return OrderEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		ProductID:  o.ProductID,
		Quantity:   o.Quantity,
		TotalPrice: o.TotalPrice,
		EventType:  EventOrderCreated,
	}
}
