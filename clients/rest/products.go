package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/vrushab-bit/mini-shop/clients"

	"go.uber.org/zap"
)

type ProductClient struct {
	*Client
}

func NewProductClient(baseURL string, timeout time.Duration, logger *zap.Logger) *ProductClient {
	return &ProductClient{New(baseURL, timeout, nil, logger.With(zap.String("client", "product-http")))}
}

func (c *ProductClient) GetProduct(ctx context.Context, id int64) (clients.Product, error) {
	var p clients.Product
	if err := c.do(ctx, http.MethodGet, idPath("/products", id), nil, &p); err != nil {
		return clients.Product{}, err
	}
	return p, nil
}

func (c *ProductClient) ListProducts(ctx context.Context) ([]clients.Product, error) {
	var products []clients.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *ProductClient) CreateProduct(ctx context.Context, in clients.CreateProductInput) (clients.Product, error) {
	var p clients.Product
	if err := c.do(ctx, http.MethodPost, "/products", in, &p); err != nil {
		return clients.Product{}, err
	}
	return p, nil
}
