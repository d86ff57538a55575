package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/vrushab-bit/mini-shop/circuitbreaker"
	"github.com/vrushab-bit/mini-shop/clients"
	"github.com/vrushab-bit/mini-shop/proto/product"
	"github.com/vrushab-bit/mini-shop/proto/user"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeUserServer struct {
	user.UnimplementedUserServiceServer
	users map[int64]*user.UserResponse
	err   error
	delay time.Duration
}

func (s *fakeUserServer) GetUser(ctx context.Context, req *user.GetUserRequest) (*user.UserResponse, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[req.UserId]
	if !ok {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	return u, nil
}

func (s *fakeUserServer) GetUsers(context.Context, *user.GetUsersRequest) (*user.UsersResponse, error) {
	resp := &user.UsersResponse{}
	for _, u := range s.users {
		resp.Users = append(resp.Users, u)
	}
	return resp, nil
}

func (s *fakeUserServer) CreateUser(_ context.Context, req *user.CreateUserRequest) (*user.UserResponse, error) {
	for _, u := range s.users {
		if u.Email == req.Email {
			return nil, status.Error(codes.AlreadyExists, "email already registered")
		}
	}
	u := &user.UserResponse{Id: int64(len(s.users) + 1), Name: req.Name, Email: req.Email, CreatedAt: "2024-01-02T03:04:05Z"}
	s.users[u.Id] = u
	return u, nil
}

func (s *fakeUserServer) UpdateUser(_ context.Context, req *user.UpdateUserRequest) (*user.UserResponse, error) {
	u, ok := s.users[req.UserId]
	if !ok {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	if req.Name != "" {
		u.Name = req.Name
	}
	if req.Email != "" {
		u.Email = req.Email
	}
	return u, nil
}

func (s *fakeUserServer) DeleteUser(_ context.Context, req *user.DeleteUserRequest) (*user.DeleteUserResponse, error) {
	if _, ok := s.users[req.UserId]; !ok {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	delete(s.users, req.UserId)
	return &user.DeleteUserResponse{Success: true}, nil
}

type fakeProductServer struct {
	product.UnimplementedProductServiceServer
	products map[int64]*product.ProductResponse
}

func (s *fakeProductServer) GetProduct(_ context.Context, req *product.GetProductRequest) (*product.ProductResponse, error) {
	p, ok := s.products[req.ProductId]
	if !ok {
		return nil, status.Error(codes.NotFound, "product not found")
	}
	return p, nil
}

func (s *fakeProductServer) CreateProduct(_ context.Context, req *product.CreateProductRequest) (*product.ProductResponse, error) {
	p := &product.ProductResponse{Id: 10, Name: req.Name, Price: req.Price, Description: req.Description, CreatedAt: "2024-01-02T03:04:05Z"}
	s.products[p.Id] = p
	return p, nil
}

func startServer(t *testing.T, register func(*grpc.Server)) Options {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return Options{
		Timeout: time.Second,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	}
}

func newUserClient(t *testing.T, srv *fakeUserServer, mutate func(*Options)) *UserClient {
	t.Helper()
	opts := startServer(t, func(s *grpc.Server) { user.RegisterUserServiceServer(s, srv) })
	if mutate != nil {
		mutate(&opts)
	}
	c, err := NewUserClient("passthrough:///bufnet", opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestUserClient_GetUser(t *testing.T) {
	srv := &fakeUserServer{users: map[int64]*user.UserResponse{
		1: {Id: 1, Name: "Ada", Email: "ada@example.com", CreatedAt: "2024-01-02T03:04:05Z"},
	}}
	c := newUserClient(t, srv, nil)

	u, err := c.GetUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), u.CreatedAt.UTC())
}

func TestUserClient_NotFoundIsDefinitive(t *testing.T) {
	srv := &fakeUserServer{users: map[int64]*user.UserResponse{}}
	c := newUserClient(t, srv, func(o *Options) { o.MaxFailures = 1 })

	for i := 0; i < 3; i++ {
		_, err := c.GetUser(context.Background(), 42)
		require.ErrorIs(t, err, clients.ErrNotFound)
		assert.False(t, clients.IsTransport(err))
	}
	assert.Equal(t, circuitbreaker.StateClosed, c.BreakerState())
}

func TestUserClient_ServerErrorIsTransport(t *testing.T) {
	srv := &fakeUserServer{err: status.Error(codes.Internal, "boom")}
	c := newUserClient(t, srv, nil)

	_, err := c.GetUser(context.Background(), 1)
	require.Error(t, err)

	var te *clients.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, clients.TransportGRPC, te.Transport)
	assert.Equal(t, "GetUser", te.Op)
}

func TestUserClient_TimeoutIsTransport(t *testing.T) {
	srv := &fakeUserServer{users: map[int64]*user.UserResponse{}, delay: time.Second}
	c := newUserClient(t, srv, func(o *Options) { o.Timeout = 50 * time.Millisecond })

	_, err := c.GetUser(context.Background(), 1)
	assert.True(t, clients.IsTransport(err))
}

func TestUserClient_BreakerOpens(t *testing.T) {
	srv := &fakeUserServer{err: status.Error(codes.Unavailable, "down")}
	c := newUserClient(t, srv, func(o *Options) {
		o.MaxFailures = 2
		o.ResetTimeout = time.Minute
	})

	for i := 0; i < 2; i++ {
		_, err := c.GetUser(context.Background(), 1)
		require.True(t, clients.IsTransport(err))
	}
	assert.Equal(t, circuitbreaker.StateOpen, c.BreakerState())

	_, err := c.GetUser(context.Background(), 1)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.True(t, clients.IsTransport(err))
}

func TestUserClient_LogsRejectedCalls(t *testing.T) {
	srv := &fakeUserServer{err: status.Error(codes.Unavailable, "down")}
	opts := startServer(t, func(s *grpc.Server) { user.RegisterUserServiceServer(s, srv) })
	opts.MaxFailures = 1
	opts.ResetTimeout = time.Minute

	core, logs := observer.New(zap.DebugLevel)
	c, err := NewUserClient("passthrough:///bufnet", opts, zap.New(core))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.GetUser(context.Background(), 1)
	require.True(t, clients.IsTransport(err))
	failed := logs.FilterMessage("Call failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "GetUser", failed[0].ContextMap()["op"])
	assert.Equal(t, "Unavailable", failed[0].ContextMap()["code"])

	_, err = c.GetUser(context.Background(), 1)
	require.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	rejected := logs.FilterMessage("Call rejected, circuit breaker open").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zap.WarnLevel, rejected[0].Level)
	assert.Equal(t, "user-grpc", rejected[0].ContextMap()["client"])
}

func TestUserClient_UpdateAndDelete(t *testing.T) {
	srv := &fakeUserServer{users: map[int64]*user.UserResponse{
		1: {Id: 1, Name: "Ada", Email: "ada@example.com", CreatedAt: "2024-01-02T03:04:05Z"},
	}}
	c := newUserClient(t, srv, nil)
	ctx := context.Background()

	u, err := c.UpdateUser(ctx, 1, clients.UpdateUserInput{Name: "Ada L"})
	require.NoError(t, err)
	assert.Equal(t, "Ada L", u.Name)
	assert.Equal(t, "ada@example.com", u.Email)

	require.NoError(t, c.DeleteUser(ctx, 1))
	assert.ErrorIs(t, c.DeleteUser(ctx, 1), clients.ErrNotFound)
	_, err = c.UpdateUser(ctx, 1, clients.UpdateUserInput{Name: "Ada"})
	assert.ErrorIs(t, err, clients.ErrNotFound)
}

func TestUserClient_CreateAndList(t *testing.T) {
	srv := &fakeUserServer{users: map[int64]*user.UserResponse{}}
	c := newUserClient(t, srv, nil)
	ctx := context.Background()

	created, err := c.CreateUser(ctx, clients.CreateUserInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)

	_, err = c.CreateUser(ctx, clients.CreateUserInput{Name: "Ada", Email: "ada@example.com"})
	assert.ErrorIs(t, err, clients.ErrAlreadyExists)

	users, err := c.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserClient_UnreachableIsTransport(t *testing.T) {
	c, err := NewUserClient("passthrough:///unreachable", Options{
		Timeout: 100 * time.Millisecond,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
				return nil, errors.New("connection refused")
			}),
		},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.GetUser(context.Background(), 1)
	assert.True(t, clients.IsTransport(err))
}

func TestProductClient_GetAndCreate(t *testing.T) {
	srv := &fakeProductServer{products: map[int64]*product.ProductResponse{
		7: {Id: 7, Name: "Widget", Price: "19.99", Description: "blue", CreatedAt: "2024-01-02T03:04:05Z"},
	}}
	opts := startServer(t, func(s *grpc.Server) { product.RegisterProductServiceServer(s, srv) })
	c, err := NewProductClient("passthrough:///bufnet", opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	p, err := c.GetProduct(ctx, 7)
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("19.99")))

	_, err = c.GetProduct(ctx, 999)
	assert.ErrorIs(t, err, clients.ErrNotFound)

	created, err := c.CreateProduct(ctx, clients.CreateProductInput{Name: "Gadget", Price: decimal.RequireFromString("5.50")})
	require.NoError(t, err)
	assert.Equal(t, "5.5", created.Price.String())
}

func TestProductClient_MalformedPrice(t *testing.T) {
	srv := &fakeProductServer{products: map[int64]*product.ProductResponse{
		1: {Id: 1, Name: "Broken", Price: "abc"},
	}}
	opts := startServer(t, func(s *grpc.Server) { product.RegisterProductServiceServer(s, srv) })
	c, err := NewProductClient("passthrough:///bufnet", opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.GetProduct(context.Background(), 1)
	assert.True(t, clients.IsTransport(err))
	assert.ErrorIs(t, err, errMalformed)
}
