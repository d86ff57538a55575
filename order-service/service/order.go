// Package service holds the order creation workflow: input checks, concurrent
// user and product validation, total computation, the transactional insert
// and the post-commit event.
package service

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/vrushab-bit/mini-shop/clients"
	"github.com/vrushab-bit/mini-shop/middleware"
	"github.com/vrushab-bit/mini-shop/order-service/models"
	"github.com/vrushab-bit/mini-shop/order-service/repository"
	"github.com/vrushab-bit/mini-shop/order-service/validator"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderStore interface {
	// Create inserts o and fills in its ID, CreatedAt and stored TotalPrice.
	Create(ctx context.Context, o *models.Order) error
	List(ctx context.Context) ([]models.Order, error)
	Get(ctx context.Context, id int64) (models.Order, error)
}

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

type UserValidator interface {
	Validate(ctx context.Context, id int64) validator.Outcome[clients.User]
}

type ProductValidator interface {
	Validate(ctx context.Context, id int64) validator.Outcome[clients.Product]
}

type OrderService struct {
	store    OrderStore
	users    UserValidator
	products ProductValidator
	events   EventPublisher
	logger   *zap.Logger
}

// NewOrderService wires the workflow. events may be nil, in which case no
// event is published.
func NewOrderService(store OrderStore, users UserValidator, products ProductValidator, events EventPublisher, logger *zap.Logger) *OrderService {
	return &OrderService{
		store:    store,
		users:    users,
		products: products,
		events:   events,
		logger:   logger,
	}
}

// Ids and quantities are stored as Postgres INTEGER, totals as NUMERIC(12,2).
const maxColumnInt = math.MaxInt32

var maxTotal = decimal.RequireFromString("9999999999.99")

func checkRequest(req models.CreateOrderRequest) *Error {
	switch {
	case req.UserID == nil:
		return invalidInput("user_id is required")
	case req.ProductID == nil:
		return invalidInput("product_id is required")
	case req.Quantity == nil:
		return invalidInput("quantity is required")
	case *req.UserID <= 0:
		return invalidInput("user_id must be a positive integer")
	case *req.ProductID <= 0:
		return invalidInput("product_id must be a positive integer")
	case *req.Quantity <= 0:
		return invalidInput("quantity must be greater than 0")
	case *req.UserID > maxColumnInt:
		return invalidInput("user_id is out of range")
	case *req.ProductID > maxColumnInt:
		return invalidInput("product_id is out of range")
	case *req.Quantity > maxColumnInt:
		return invalidInput("quantity is out of range")
	}
	return nil
}

// CreateOrder persists a new order only when both the user and the product
// were found. Creation is not idempotent: every successful call yields a new
// order.
func (s *OrderService) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (models.Order, error) {
	ctx, span := otel.Tracer("order-service").Start(ctx, "CreateOrder")
	defer span.End()

	if err := checkRequest(req); err != nil {
		span.SetStatus(codes.Error, err.Message)
		return models.Order{}, err
	}
	userID, productID, quantity := *req.UserID, *req.ProductID, *req.Quantity

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("product_id", productID),
		attribute.Int64("quantity", quantity),
	)

	var (
		wg         sync.WaitGroup
		userOut    validator.Outcome[clients.User]
		productOut validator.Outcome[clients.Product]
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		userOut = s.users.Validate(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		productOut = s.products.Validate(ctx, productID)
	}()
	wg.Wait()

	// user is reported before product when both fail
	if err := gate("user", "User", userOut.Status, userOut.Err); err != nil {
		s.reject(ctx, span, err, userID, productID)
		return models.Order{}, err
	}
	if err := gate("product", "Product", productOut.Status, productOut.Err); err != nil {
		s.reject(ctx, span, err, userID, productID)
		return models.Order{}, err
	}

	price := productOut.Value.Price
	order := models.Order{
		UserID:     userID,
		ProductID:  productID,
		Quantity:   quantity,
		TotalPrice: price.Mul(decimal.NewFromInt(quantity)),
	}
	if order.TotalPrice.Round(2).GreaterThan(maxTotal) {
		err := invalidInput("order total is too large")
		s.reject(ctx, span, err, userID, productID)
		return models.Order{}, err
	}

	if err := s.store.Create(ctx, &order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist order")
		s.logger.Error("Failed to create order",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Error(err),
		)
		return models.Order{}, persistence("failed to persist order", err)
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID))
	middleware.RecordOrderCreated()

	if s.events != nil {
		if err := s.events.PublishOrderEvent(ctx, models.NewOrderCreatedEvent(order)); err != nil {
			s.logger.Error("Failed to publish order_created event",
				zap.Int64("order_id", order.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Order created",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int64("order_id", order.ID),
		zap.String("unit_price", price.String()),
		zap.String("total_price", order.TotalPrice.String()),
	)
	return order, nil
}

func gate(entity, label string, status validator.Status, cause error) *Error {
	switch status {
	case validator.Found:
		return nil
	case validator.NotFound:
		return notFound(entity, label+" not found")
	default:
		return unavailable(entity, label+" validation unavailable", cause)
	}
}

func (s *OrderService) reject(ctx context.Context, span trace.Span, err *Error, userID, productID int64) {
	span.SetStatus(codes.Error, err.Message)
	fields := []zap.Field{
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("entity", err.Entity),
		zap.Int64("user_id", userID),
		zap.Int64("product_id", productID),
	}
	if err.Kind == KindUnavailable {
		s.logger.Warn("Order validation unavailable", append(fields, zap.Error(err.Err))...)
		return
	}
	s.logger.Info("Order rejected", append(fields, zap.String("reason", err.Message))...)
}

func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.store.List(ctx)
	if err != nil {
		return nil, persistence("failed to list orders", err)
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (models.Order, error) {
	if id <= 0 {
		return models.Order{}, invalidInput("Invalid order ID")
	}
	order, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Order{}, notFound("order", "Order not found")
	}
	if err != nil {
		return models.Order{}, persistence("failed to load order", err)
	}
	return order, nil
}
