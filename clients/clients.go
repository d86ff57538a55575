// Package clients defines what the order service and the gateway know about
// entities owned by other services, and the outcome taxonomy shared by both
// transports used to reach them.
//
// Every operation of clients/grpc and clients/rest returns either a value or
// one of:
//
//   - ErrNotFound: the remote service answered that the entity does not exist.
//   - ErrAlreadyExists: a create was rejected as a duplicate.
//   - *TransportError: anything else (unreachable, timeout, unexpected status).
//
// ErrNotFound and ErrAlreadyExists are authoritative answers, not failures.
package clients

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransportGRPC = "grpc"
	TransportHTTP = "http"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// TransportError reports that the remote service could not give a definitive
// answer over the named transport.
type TransportError struct {
	Transport string
	Op        string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Transport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// User is the read-only projection of a user-service row.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is the read-only projection of a product-service row.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

type CreateUserInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UpdateUserInput leaves a field unchanged when it is empty.
type UpdateUserInput struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type CreateProductInput struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
}
