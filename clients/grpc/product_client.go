package grpc

import (
	"context"
	"time"

	"github.com/vrushab-bit/mini-shop/circuitbreaker"
	"github.com/vrushab-bit/mini-shop/clients"
	"github.com/vrushab-bit/mini-shop/proto/product"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

type ProductClient struct {
	conn           *grpc.ClientConn
	client         product.ProductServiceClient
	circuitBreaker *circuitbreaker.CircuitBreaker
	timeout        time.Duration
	logger         *zap.Logger
}

func NewProductClient(target string, opts Options, logger *zap.Logger) (*ProductClient, error) {
	opts = opts.withDefaults()
	conn, err := dial(target, opts)
	if err != nil {
		return nil, err
	}

	return &ProductClient{
		conn:           conn,
		client:         product.NewProductServiceClient(conn),
		circuitBreaker: circuitbreaker.NewCircuitBreaker(opts.MaxFailures, opts.ResetTimeout),
		timeout:        opts.Timeout,
		logger:         logger.With(zap.String("client", "product-grpc")),
	}, nil
}

func (pc *ProductClient) GetProduct(ctx context.Context, id int64) (clients.Product, error) {
	resp, err := invoke(ctx, pc.circuitBreaker, pc.timeout, pc.logger, "GetProduct", func(ctx context.Context) (*product.ProductResponse, error) {
		return pc.client.GetProduct(ctx, &product.GetProductRequest{ProductId: id})
	})
	if err != nil {
		return clients.Product{}, err
	}
	return productFromProto("GetProduct", resp)
}

func (pc *ProductClient) ListProducts(ctx context.Context) ([]clients.Product, error) {
	resp, err := invoke(ctx, pc.circuitBreaker, pc.timeout, pc.logger, "GetProducts", func(ctx context.Context) (*product.ProductsResponse, error) {
		return pc.client.GetProducts(ctx, &product.GetProductsRequest{})
	})
	if err != nil {
		return nil, err
	}

	products := make([]clients.Product, 0, len(resp.Products))
	for _, p := range resp.Products {
		converted, err := productFromProto("GetProducts", p)
		if err != nil {
			return nil, err
		}
		products = append(products, converted)
	}
	return products, nil
}

func (pc *ProductClient) CreateProduct(ctx context.Context, in clients.CreateProductInput) (clients.Product, error) {
	resp, err := invoke(ctx, pc.circuitBreaker, pc.timeout, pc.logger, "CreateProduct", func(ctx context.Context) (*product.ProductResponse, error) {
		return pc.client.CreateProduct(ctx, &product.CreateProductRequest{
			Name:        in.Name,
			Price:       in.Price.String(),
			Description: in.Description,
		})
	})
	if err != nil {
		return clients.Product{}, err
	}
	return productFromProto("CreateProduct", resp)
}

func (pc *ProductClient) BreakerState() circuitbreaker.State {
	return pc.circuitBreaker.GetState()
}

func (pc *ProductClient) Close() error {
	return pc.conn.Close()
}

func productFromProto(op string, p *product.ProductResponse) (clients.Product, error) {
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return clients.Product{}, malformed(op, "price", err)
	}
	createdAt, err := parseTime(p.CreatedAt)
	if err != nil {
		return clients.Product{}, malformed(op, "created_at", err)
	}
	return clients.Product{
		ID:          p.Id,
		Name:        p.Name,
		Price:       price,
		Description: p.Description,
		CreatedAt:   createdAt,
	}, nil
}
