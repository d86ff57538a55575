package cache

import (
	"context"
	"testing"
	"time"

	"github.com/vrushab-bit/mini-shop/product-service/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newCache(t *testing.T) (*ProductCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewProductCache(rdb, 5*time.Minute), mr
}

func TestProductCache_RoundTrip(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	p := models.Product{ID: 7, Name: "Widget", Price: decimal.RequireFromString("19.99")}
	require.NoError(t, c.Set(ctx, p))
	assert.Equal(t, 5*time.Minute, mr.TTL("product:7"))

	got, ok, err := c.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Price.Equal(p.Price))

	require.NoError(t, c.Delete(ctx, 7))
	_, ok, err = c.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProductCache_Expires(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, models.Product{ID: 1, Name: "Widget"}))
	mr.FastForward(6 * time.Minute)

	_, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProductCache_CorruptEntry(t *testing.T) {
	c, mr := newCache(t)
	require.NoError(t, mr.Set("product:3", "{not json"))

	_, ok, err := c.Get(context.Background(), 3)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	rdb, err := NewRedisClient(context.Background(), addr, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	rdb.Close()

	mr.Close()
	_, err = NewRedisClient(context.Background(), addr, "", zaptest.NewLogger(t))
	assert.Error(t, err)
}
