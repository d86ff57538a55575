package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/vrushab-bit/mini-shop/clients"

	"go.uber.org/zap"
)

type UserClient struct {
	*Client
}

func NewUserClient(baseURL string, timeout time.Duration, logger *zap.Logger) *UserClient {
	return &UserClient{New(baseURL, timeout, nil, logger.With(zap.String("client", "user-http")))}
}

func (c *UserClient) GetUser(ctx context.Context, id int64) (clients.User, error) {
	var u clients.User
	if err := c.do(ctx, http.MethodGet, idPath("/users", id), nil, &u); err != nil {
		return clients.User{}, err
	}
	return u, nil
}

func (c *UserClient) ListUsers(ctx context.Context) ([]clients.User, error) {
	var users []clients.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *UserClient) CreateUser(ctx context.Context, in clients.CreateUserInput) (clients.User, error) {
	var u clients.User
	if err := c.do(ctx, http.MethodPost, "/users", in, &u); err != nil {
		return clients.User{}, err
	}
	return u, nil
}
