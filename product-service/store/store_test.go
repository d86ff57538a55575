package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vrushab-bit/mini-shop/circuitbreaker"
	"github.com/vrushab-bit/mini-shop/product-service/cache"
	"github.com/vrushab-bit/mini-shop/product-service/models"
	"github.com/vrushab-bit/mini-shop/product-service/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const selectByID = "SELECT id, name, price, description, created_at, updated_at FROM products WHERE id = \\$1"

var columns = []string{"id", "name", "price", "description", "created_at", "updated_at"}

func setup(t *testing.T, maxFailures int) (*Store, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	s := New(
		repository.NewProductRepository(db),
		cache.NewProductCache(rdb, 5*time.Minute),
		circuitbreaker.NewCircuitBreaker(maxFailures, time.Minute),
		zaptest.NewLogger(t),
	)
	return s, mock, mr
}

func TestGet_ReadThrough(t *testing.T) {
	s, mock, mr := setup(t, 5)
	ctx := context.Background()

	mock.ExpectQuery(selectByID).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(7, "Widget", "19.99", "", time.Now(), time.Now()))

	p, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.True(t, mr.Exists("product:7"))

	// second read is served from the cache; no further query is expected
	cached, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(cached.Price))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFoundDoesNotTripBreaker(t *testing.T) {
	s, mock, _ := setup(t, 1)

	for i := 0; i < 3; i++ {
		mock.ExpectQuery(selectByID).WithArgs(int64(999)).WillReturnRows(sqlmock.NewRows(columns))
		_, err := s.Get(context.Background(), 999)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, circuitbreaker.StateClosed, s.breaker.GetState())
}

func TestGet_BreakerOpens(t *testing.T) {
	s, mock, _ := setup(t, 1)

	mock.ExpectQuery(selectByID).WithArgs(int64(1)).WillReturnError(errors.New("connection refused"))
	_, err := s.Get(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)

	_, err = s.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGet_CacheDownFallsThrough(t *testing.T) {
	s, mock, mr := setup(t, 5)
	mr.Close()

	mock.ExpectQuery(selectByID).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(7, "Widget", "19.99", "", time.Now(), time.Now()))

	p, err := s.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
}

func TestUpdate_InvalidatesCache(t *testing.T) {
	s, mock, mr := setup(t, 5)
	ctx := context.Background()
	require.NoError(t, mr.Set("product:7", `{"id":7}`))

	price := decimal.RequireFromString("25.00")
	mock.ExpectQuery("UPDATE products SET updated_at = CURRENT_TIMESTAMP, price = \\$1 WHERE id = \\$2").
		WithArgs("25", int64(7)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(7, "Widget", "25.00", "", time.Now(), time.Now()))

	_, err := s.Update(ctx, 7, models.UpdateProductRequest{Price: &price})
	require.NoError(t, err)
	assert.False(t, mr.Exists("product:7"))
}

func TestDelete_InvalidatesCache(t *testing.T) {
	s, mock, mr := setup(t, 5)
	require.NoError(t, mr.Set("product:7", `{"id":7}`))

	mock.ExpectExec("DELETE FROM products WHERE id = \\$1").WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM products WHERE id = \\$1").WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Delete(context.Background(), 7))
	assert.False(t, mr.Exists("product:7"))

	assert.ErrorIs(t, s.Delete(context.Background(), 8), ErrNotFound)
}

func TestCreate_Validation(t *testing.T) {
	s, _, _ := setup(t, 5)

	_, err := s.Create(context.Background(), models.CreateProductRequest{Name: "", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = s.Create(context.Background(), models.CreateProductRequest{Name: "Widget", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrNegativePrice)
}

func TestWithoutCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(repository.NewProductRepository(db), nil, circuitbreaker.NewCircuitBreaker(5, time.Minute), zaptest.NewLogger(t))

	mock.ExpectQuery(selectByID).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(7, "Widget", "19.99", "", time.Now(), time.Now()))
	_, err = s.Get(context.Background(), 7)
	require.NoError(t, err)
}
