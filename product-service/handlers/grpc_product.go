package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vrushab-bit/mini-shop/product-service/models"
	"github.com/vrushab-bit/mini-shop/product-service/store"
	"github.com/vrushab-bit/mini-shop/proto/product"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ProductGRPCServer struct {
	product.UnimplementedProductServiceServer
	store  *store.Store
	logger *zap.Logger
}

func NewProductGRPCServer(s *store.Store, logger *zap.Logger) *ProductGRPCServer {
	return &ProductGRPCServer{store: s, logger: logger}
}

func (s *ProductGRPCServer) GetProduct(ctx context.Context, req *product.GetProductRequest) (*product.ProductResponse, error) {
	ctx, span := otel.Tracer("product-service").Start(ctx, "GetProduct_gRPC")
	defer span.End()

	if req.ProductId <= 0 {
		return nil, status.Error(codes.InvalidArgument, "product_id must be positive")
	}

	p, err := s.store.Get(ctx, req.ProductId)
	if err != nil {
		return nil, s.toStatus(err, "Failed to fetch product")
	}
	return toProductResponse(p), nil
}

func (s *ProductGRPCServer) GetProducts(ctx context.Context, _ *product.GetProductsRequest) (*product.ProductsResponse, error) {
	ctx, span := otel.Tracer("product-service").Start(ctx, "GetProducts_gRPC")
	defer span.End()

	products, err := s.store.List(ctx)
	if err != nil {
		return nil, s.toStatus(err, "Failed to fetch products")
	}

	return &product.ProductsResponse{
		Products: lo.Map(products, func(p models.Product, _ int) *product.ProductResponse { return toProductResponse(p) }),
	}, nil
}

func (s *ProductGRPCServer) CreateProduct(ctx context.Context, req *product.CreateProductRequest) (*product.ProductResponse, error) {
	ctx, span := otel.Tracer("product-service").Start(ctx, "CreateProduct_gRPC")
	defer span.End()

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid price %q", req.Price)
	}

	p, err := s.store.Create(ctx, models.CreateProductRequest{
		Name:        strings.TrimSpace(req.Name),
		Price:       price,
		Description: req.Description,
	})
	if err != nil {
		return nil, s.toStatus(err, "Failed to create product")
	}
	return toProductResponse(p), nil
}

func (s *ProductGRPCServer) toStatus(err error, msg string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, "product not found")
	case errors.Is(err, store.ErrInvalidName), errors.Is(err, store.ErrNegativePrice), errors.Is(err, store.ErrPriceTooLarge):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		s.logger.Error(msg, zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

func toProductResponse(p models.Product) *product.ProductResponse {
	return &product.ProductResponse{
		Id:          p.ID,
		Name:        p.Name,
		Price:       p.Price.String(),
		Description: p.Description,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
