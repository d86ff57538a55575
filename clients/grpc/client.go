// Package grpc is the primary transport to the user and product services.
// Every call runs under a per-call deadline and a circuit breaker, and its
// result is mapped onto the clients outcome taxonomy.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vrushab-bit/mini-shop/circuitbreaker"
	"github.com/vrushab-bit/mini-shop/clients"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const DefaultTimeout = 5 * time.Second

type Options struct {
	Timeout      time.Duration
	MaxFailures  int
	ResetTimeout time.Duration
	// DialOptions are appended after the defaults (insecure credentials and
	// the otelgrpc stats handler).
	DialOptions []grpc.DialOption
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxFailures <= 0 {
		o.MaxFailures = 5
	}
	if o.ResetTimeout <= 0 {
		o.ResetTimeout = 30 * time.Second
	}
	return o
}

func dial(target string, opts Options) (*grpc.ClientConn, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts.DialOptions...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", target, err)
	}
	return conn, nil
}

// invoke runs fn under the breaker with its own deadline. NotFound and
// AlreadyExists are definitive answers: they do not trip the breaker and are
// returned as the clients sentinels. Everything else, including an open
// breaker, becomes a *clients.TransportError.
func invoke[T any](ctx context.Context, cb *circuitbreaker.CircuitBreaker, timeout time.Duration, logger *zap.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		out    T
		answer error
	)

	err := cb.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		v, err := fn(callCtx)
		if err != nil {
			switch status.Code(err) {
			case codes.NotFound:
				answer = clients.ErrNotFound
				return nil
			case codes.AlreadyExists:
				answer = clients.ErrAlreadyExists
				return nil
			}
			return err
		}
		out = v
		return nil
	})

	var zero T
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			logger.Warn("Call rejected, circuit breaker open", zap.String("op", op))
		} else {
			logger.Debug("Call failed",
				zap.String("op", op),
				zap.String("code", status.Code(err).String()),
				zap.Error(err),
			)
		}
		return zero, &clients.TransportError{Transport: clients.TransportGRPC, Op: op, Err: err}
	}
	if answer != nil {
		return zero, answer
	}
	return out, nil
}

var errMalformed = errors.New("malformed response")

func malformed(op, field string, err error) error {
	return &clients.TransportError{
		Transport: clients.TransportGRPC,
		Op:        op,
		Err:       fmt.Errorf("%w: %s: %v", errMalformed, field, err),
	}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
