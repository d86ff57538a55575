// Package store is the product catalog shared by the REST and gRPC surfaces:
// Postgres behind a circuit breaker, fronted by a read-through redis cache.
package store

import (
	"context"
	"errors"

	"github.com/vrushab-bit/mini-shop/circuitbreaker"
	"github.com/vrushab-bit/mini-shop/product-service/cache"
	"github.com/vrushab-bit/mini-shop/product-service/models"
	"github.com/vrushab-bit/mini-shop/product-service/repository"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	ErrNotFound      = repository.ErrNotFound
	ErrUnavailable   = errors.New("product store temporarily unavailable")
	ErrInvalidName   = errors.New("name is required")
	ErrNegativePrice = errors.New("price must not be negative")
	ErrPriceTooLarge = errors.New("price is too large")
)

// maxPrice is the largest value the NUMERIC(12, 2) price column holds.
var maxPrice = decimal.RequireFromString("9999999999.99")

type Store struct {
	repo    *repository.ProductRepository
	cache   *cache.ProductCache
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// New returns a Store. A nil cache disables caching.
func New(repo *repository.ProductRepository, c *cache.ProductCache, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Store {
	return &Store{repo: repo, cache: c, breaker: breaker, logger: logger}
}

func (s *Store) List(ctx context.Context) ([]models.Product, error) {
	return s.repo.List(ctx)
}

func (s *Store) Get(ctx context.Context, id int64) (models.Product, error) {
	span := trace.SpanFromContext(ctx)

	if s.cache != nil {
		p, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("Cache read failed", zap.Int64("product_id", id), zap.Error(err))
		}
		if ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return p, nil
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	var p models.Product
	err := s.breaker.Execute(ctx, func() error {
		var err error
		p, err = s.repo.Get(ctx, id)
		// a missing row is an answer, not a database failure
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		span.SetAttributes(attribute.String("circuit.state", "open"))
		return models.Product{}, ErrUnavailable
	}
	if err != nil {
		return models.Product{}, err
	}
	if p.ID == 0 {
		return models.Product{}, ErrNotFound
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, p); err != nil {
			s.logger.Warn("Cache write failed", zap.Int64("product_id", id), zap.Error(err))
		}
	}
	return p, nil
}

func validate(name *string, price *decimal.Decimal) error {
	if name != nil && *name == "" {
		return ErrInvalidName
	}
	if price != nil && price.IsNegative() {
		return ErrNegativePrice
	}
	if price != nil && price.Round(2).GreaterThan(maxPrice) {
		return ErrPriceTooLarge
	}
	return nil
}

func (s *Store) Create(ctx context.Context, req models.CreateProductRequest) (models.Product, error) {
	if err := validate(&req.Name, &req.Price); err != nil {
		return models.Product{}, err
	}
	return s.repo.Create(ctx, req)
}

func (s *Store) Update(ctx context.Context, id int64, req models.UpdateProductRequest) (models.Product, error) {
	if err := validate(req.Name, req.Price); err != nil {
		return models.Product{}, err
	}
	p, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return models.Product{}, err
	}
	s.invalidate(ctx, id)
	return p, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Store) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warn("Cache invalidation failed", zap.Int64("product_id", id), zap.Error(err))
	}
}
