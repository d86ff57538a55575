package grpc

import (
	"context"
	"time"

	"github.com/vrushab-bit/mini-shop/circuitbreaker"
	"github.com/vrushab-bit/mini-shop/clients"
	"github.com/vrushab-bit/mini-shop/proto/user"

	"go.uber.org/zap"
	"google.golang.org/grpc"
)

type UserClient struct {
	conn           *grpc.ClientConn
	client         user.UserServiceClient
	circuitBreaker *circuitbreaker.CircuitBreaker
	timeout        time.Duration
	logger         *zap.Logger
}

// NewUserClient prepares a lazily connecting client for the user service at
// target. No network traffic happens until the first call.
func NewUserClient(target string, opts Options, logger *zap.Logger) (*UserClient, error) {
	opts = opts.withDefaults()
	conn, err := dial(target, opts)
	if err != nil {
		return nil, err
	}

	return &UserClient{
		conn:           conn,
		client:         user.NewUserServiceClient(conn),
		circuitBreaker: circuitbreaker.NewCircuitBreaker(opts.MaxFailures, opts.ResetTimeout),
		timeout:        opts.Timeout,
		logger:         logger.With(zap.String("client", "user-grpc")),
	}, nil
}

func (uc *UserClient) GetUser(ctx context.Context, id int64) (clients.User, error) {
	resp, err := invoke(ctx, uc.circuitBreaker, uc.timeout, uc.logger, "GetUser", func(ctx context.Context) (*user.UserResponse, error) {
		return uc.client.GetUser(ctx, &user.GetUserRequest{UserId: id})
	})
	if err != nil {
		return clients.User{}, err
	}
	return userFromProto("GetUser", resp)
}

func (uc *UserClient) ListUsers(ctx context.Context) ([]clients.User, error) {
	resp, err := invoke(ctx, uc.circuitBreaker, uc.timeout, uc.logger, "GetUsers", func(ctx context.Context) (*user.UsersResponse, error) {
		return uc.client.GetUsers(ctx, &user.GetUsersRequest{})
	})
	if err != nil {
		return nil, err
	}

	users := make([]clients.User, 0, len(resp.Users))
	for _, u := range resp.Users {
		converted, err := userFromProto("GetUsers", u)
		if err != nil {
			return nil, err
		}
		users = append(users, converted)
	}
	return users, nil
}

func (uc *UserClient) CreateUser(ctx context.Context, in clients.CreateUserInput) (clients.User, error) {
	resp, err := invoke(ctx, uc.circuitBreaker, uc.timeout, uc.logger, "CreateUser", func(ctx context.Context) (*user.UserResponse, error) {
		return uc.client.CreateUser(ctx, &user.CreateUserRequest{Name: in.Name, Email: in.Email})
	})
	if err != nil {
		return clients.User{}, err
	}
	return userFromProto("CreateUser", resp)
}

func (uc *UserClient) UpdateUser(ctx context.Context, id int64, in clients.UpdateUserInput) (clients.User, error) {
	resp, err := invoke(ctx, uc.circuitBreaker, uc.timeout, uc.logger, "UpdateUser", func(ctx context.Context) (*user.UserResponse, error) {
		return uc.client.UpdateUser(ctx, &user.UpdateUserRequest{UserId: id, Name: in.Name, Email: in.Email})
	})
	if err != nil {
		return clients.User{}, err
	}
	return userFromProto("UpdateUser", resp)
}

func (uc *UserClient) DeleteUser(ctx context.Context, id int64) error {
	_, err := invoke(ctx, uc.circuitBreaker, uc.timeout, uc.logger, "DeleteUser", func(ctx context.Context) (*user.DeleteUserResponse, error) {
		return uc.client.DeleteUser(ctx, &user.DeleteUserRequest{UserId: id})
	})
	return err
}

func (uc *UserClient) BreakerState() circuitbreaker.State {
	return uc.circuitBreaker.GetState()
}

func (uc *UserClient) Close() error {
	return uc.conn.Close()
}

func userFromProto(op string, u *user.UserResponse) (clients.User, error) {
	createdAt, err := parseTime(u.CreatedAt)
	if err != nil {
		return clients.User{}, malformed(op, "created_at", err)
	}
	return clients.User{
		ID:        u.Id,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: createdAt,
	}, nil
}
