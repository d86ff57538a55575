package validator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/vrushab-bit/mini-shop/clients"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubLookup struct {
	calls atomic.Int32
	value clients.Product
	err   error
}

func (s *stubLookup) get(context.Context, int64) (clients.Product, error) {
	s.calls.Add(1)
	return s.value, s.err
}

func transportErr(transport string) error {
	return &clients.TransportError{Transport: transport, Op: "GetProduct", Err: errors.New("connection refused")}
}

var widget = clients.Product{ID: 7, Name: "Widget", Price: decimal.RequireFromString("19.99")}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		primary       stubLookup
		fallback      stubLookup
		wantStatus    Status
		wantFallbacks int32
	}{
		{
			name:       "primary found",
			primary:    stubLookup{value: widget},
			wantStatus: Found,
		},
		{
			name:       "primary not found is final",
			primary:    stubLookup{err: clients.ErrNotFound},
			fallback:   stubLookup{value: widget},
			wantStatus: NotFound,
		},
		{
			name:          "fallback found after transport failure",
			primary:       stubLookup{err: transportErr(clients.TransportGRPC)},
			fallback:      stubLookup{value: widget},
			wantStatus:    Found,
			wantFallbacks: 1,
		},
		{
			name:          "fallback not found is authoritative",
			primary:       stubLookup{err: transportErr(clients.TransportGRPC)},
			fallback:      stubLookup{err: clients.ErrNotFound},
			wantStatus:    NotFound,
			wantFallbacks: 1,
		},
		{
			name:          "both transports fail",
			primary:       stubLookup{err: transportErr(clients.TransportGRPC)},
			fallback:      stubLookup{err: transportErr(clients.TransportHTTP)},
			wantStatus:    TransportFailed,
			wantFallbacks: 1,
		},
	}

	for i := range tests {
		tt := &tests[i]
		t.Run(tt.name, func(t *testing.T) {
			v := New[clients.Product]("product", tt.primary.get, tt.fallback.get, zaptest.NewLogger(t))

			out := v.Validate(context.Background(), 7)

			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, int32(1), tt.primary.calls.Load())
			assert.Equal(t, tt.wantFallbacks, tt.fallback.calls.Load())
			switch out.Status {
			case Found:
				assert.Equal(t, widget, out.Value)
				assert.NoError(t, out.Err)
			case NotFound:
				assert.NoError(t, out.Err)
			case TransportFailed:
				assert.True(t, clients.IsTransport(out.Err))
			}
		})
	}
}

func TestValidate_CancelledSkipsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fallback := &stubLookup{value: widget}
	primary := func(context.Context, int64) (clients.Product, error) {
		cancel()
		return clients.Product{}, transportErr(clients.TransportGRPC)
	}

	v := New[clients.Product]("product", primary, fallback.get, zaptest.NewLogger(t))
	out := v.Validate(ctx, 7)

	assert.Equal(t, TransportFailed, out.Status)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Zero(t, fallback.calls.Load())
}

type fakeUsers struct {
	users map[int64]clients.User
	err   error
}

func (f fakeUsers) GetUser(_ context.Context, id int64) (clients.User, error) {
	if f.err != nil {
		return clients.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return clients.User{}, clients.ErrNotFound
	}
	return u, nil
}

func TestNewUserValidator(t *testing.T) {
	primary := fakeUsers{err: transportErr(clients.TransportGRPC)}
	fallback := fakeUsers{users: map[int64]clients.User{1: {ID: 1, Name: "Ada"}}}

	v := NewUserValidator(primary, fallback, zaptest.NewLogger(t))

	out := v.Validate(context.Background(), 1)
	require.Equal(t, Found, out.Status)
	assert.Equal(t, "Ada", out.Value.Name)

	out = v.Validate(context.Background(), 2)
	assert.Equal(t, NotFound, out.Status)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "found", Found.String())
	assert.Equal(t, "not_found", NotFound.String())
	assert.Equal(t, "transport_failed", TransportFailed.String())
}
