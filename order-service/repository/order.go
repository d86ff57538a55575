// Package repository stores orders in Postgres.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vrushab-bit/mini-shop/order-service/models"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("order not found")

// Schema has no foreign keys: user_id and product_id live in other services.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id SERIAL PRIMARY KEY,
	user_id INTEGER NOT NULL,
	product_id INTEGER NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	total_price NUMERIC(12, 2) NOT NULL CHECK (total_price >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const (
	insertOrder = `INSERT INTO orders (user_id, product_id, quantity, total_price)
VALUES ($1, $2, $3, $4)
RETURNING id, total_price, created_at`
	selectOrders = `SELECT id, user_id, product_id, quantity, total_price, created_at FROM orders ORDER BY id`
	selectOrder  = `SELECT id, user_id, product_id, quantity, total_price, created_at FROM orders WHERE id = $1`
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

type inserted struct {
	id         int64
	totalPrice decimal.Decimal
	createdAt  time.Time
}

// Create inserts o in its own transaction. On success o carries the
// generated id, the stored total and the creation time.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	row, err := withTx(ctx, r.db, func(tx *sql.Tx) (inserted, error) {
		var out inserted
		err := tx.QueryRowContext(ctx, insertOrder, o.UserID, o.ProductID, o.Quantity, o.TotalPrice).
			Scan(&out.id, &out.totalPrice, &out.createdAt)
		if err != nil {
			return inserted{}, fmt.Errorf("insert order: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return err
	}

	o.ID = row.id
	o.TotalPrice = row.totalPrice
	o.CreatedAt = row.createdAt
	return nil
}

func (r *OrderRepository) List(ctx context.Context) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, selectOrders)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.ProductID, &o.Quantity, &o.TotalPrice, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func (r *OrderRepository) Get(ctx context.Context, id int64) (models.Order, error) {
	var o models.Order
	err := r.db.QueryRowContext(ctx, selectOrder, id).
		Scan(&o.ID, &o.UserID, &o.ProductID, &o.Quantity, &o.TotalPrice, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, ErrNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("query order %d: %w", id, err)
	}
	return o, nil
}
