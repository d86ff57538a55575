package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/vrushab-bit/mini-shop/product-service/models"
)

var ErrNotFound = errors.New("product not found")

const Schema = `
CREATE TABLE IF NOT EXISTS products (
	id SERIAL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	price NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
	description TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const (
	productColumns = "id, name, price, description, created_at, updated_at"

	insertProduct  = "INSERT INTO products (name, price, description) VALUES ($1, $2, $3) RETURNING " + productColumns
	selectProducts = "SELECT " + productColumns + " FROM products ORDER BY id"
	selectProduct  = "SELECT " + productColumns + " FROM products WHERE id = $1"
	deleteProduct  = "DELETE FROM products WHERE id = $1"
)

// maxID is the largest SERIAL value; nothing beyond it can exist.
const maxID = math.MaxInt32

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, req models.CreateProductRequest) (models.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, insertProduct, req.Name, req.Price, req.Description))
	if err != nil {
		return models.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	rows, err := r.db.QueryContext(ctx, selectProducts)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) Get(ctx context.Context, id int64) (models.Product, error) {
	if id > maxID {
		return models.Product{}, ErrNotFound
	}
	p, err := scanProduct(r.db.QueryRowContext(ctx, selectProduct, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("query product %d: %w", id, err)
	}
	return p, nil
}

func (r *ProductRepository) Update(ctx context.Context, id int64, req models.UpdateProductRequest) (models.Product, error) {
	if id > maxID {
		return models.Product{}, ErrNotFound
	}
	query := "UPDATE products SET updated_at = CURRENT_TIMESTAMP"
	args := []any{}
	argPos := 1

	if req.Name != nil {
		query += ", name = $" + strconv.Itoa(argPos)
		args = append(args, *req.Name)
		argPos++
	}
	if req.Price != nil {
		query += ", price = $" + strconv.Itoa(argPos)
		args = append(args, *req.Price)
		argPos++
	}
	if req.Description != nil {
		query += ", description = $" + strconv.Itoa(argPos)
		args = append(args, *req.Description)
		argPos++
	}

	query += " WHERE id = $" + strconv.Itoa(argPos) + " RETURNING " + productColumns
	args = append(args, id)

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("update product %d: %w", id, err)
	}
	return p, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	if id > maxID {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, deleteProduct, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
