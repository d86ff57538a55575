// Package validator decides whether an entity owned by another service
// exists, trying the typed RPC transport first and the HTTP transport only
// when the first one could not give an answer.
package validator

import (
	"context"
	"errors"

	"github.com/vrushab-bit/mini-shop/clients"
	"github.com/vrushab-bit/mini-shop/middleware"

	"go.uber.org/zap"
)

type Status int

const (
	Found Status = iota
	NotFound
	TransportFailed
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case TransportFailed:
		return "transport_failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one validation. Value is set only when Status is
// Found; Err only when Status is TransportFailed.
type Outcome[T any] struct {
	Status Status
	Value  T
	Err    error
}

// Lookup fetches one entity by id and returns a value, clients.ErrNotFound or
// a transport error.
type Lookup[T any] func(ctx context.Context, id int64) (T, error)

type Validator[T any] struct {
	entity   string
	primary  Lookup[T]
	fallback Lookup[T]
	logger   *zap.Logger
}

func New[T any](entity string, primary, fallback Lookup[T], logger *zap.Logger) *Validator[T] {
	return &Validator[T]{
		entity:   entity,
		primary:  primary,
		fallback: fallback,
		logger:   logger.With(zap.String("entity", entity)),
	}
}

// Validate never returns NotFound unless a transport positively answered
// that id does not exist. The fallback runs strictly after the primary and
// only when the primary failed at the transport level.
func (v *Validator[T]) Validate(ctx context.Context, id int64) Outcome[T] {
	value, err := v.primary(ctx, id)
	if out, done := v.classify(clients.TransportGRPC, id, value, err); done {
		return out
	}
	primaryErr := err

	if ctx.Err() != nil {
		v.logger.Warn("Skipping fallback, request cancelled",
			zap.Int64("id", id),
			zap.NamedError("primary_error", primaryErr),
		)
		return Outcome[T]{Status: TransportFailed, Err: ctx.Err()}
	}

	value, err = v.fallback(ctx, id)
	if out, done := v.classify(clients.TransportHTTP, id, value, err); done {
		return out
	}

	return Outcome[T]{Status: TransportFailed, Err: errors.Join(primaryErr, err)}
}

// classify reports done for a definitive answer. Anything else is treated as
// a transport failure and logged.
func (v *Validator[T]) classify(transport string, id int64, value T, err error) (Outcome[T], bool) {
	switch {
	case err == nil:
		middleware.RecordLookup(v.entity, transport, "found")
		return Outcome[T]{Status: Found, Value: value}, true
	case errors.Is(err, clients.ErrNotFound):
		middleware.RecordLookup(v.entity, transport, "not_found")
		return Outcome[T]{Status: NotFound}, true
	default:
		middleware.RecordLookup(v.entity, transport, "transport_error")
		v.logger.Warn("Lookup failed",
			zap.Int64("id", id),
			zap.String("transport", transport),
			zap.Error(err),
		)
		return Outcome[T]{}, false
	}
}

type userGetter interface {
	GetUser(ctx context.Context, id int64) (clients.User, error)
}

type productGetter interface {
	GetProduct(ctx context.Context, id int64) (clients.Product, error)
}

func NewUserValidator(primary, fallback userGetter, logger *zap.Logger) *Validator[clients.User] {
	return New[clients.User]("user", primary.GetUser, fallback.GetUser, logger)
}

func NewProductValidator(primary, fallback productGetter, logger *zap.Logger) *Validator[clients.Product] {
	return New[clients.Product]("product", primary.GetProduct, fallback.GetProduct, logger)
}
