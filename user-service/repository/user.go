package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/vrushab-bit/mini-shop/user-service/models"

	"github.com/lib/pq"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	email VARCHAR(255) UNIQUE NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const (
	insertUser  = `INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id, name, email, created_at`
	selectUsers = `SELECT id, name, email, created_at FROM users ORDER BY id`
	selectUser  = `SELECT id, name, email, created_at FROM users WHERE id = $1`
	deleteUser  = `DELETE FROM users WHERE id = $1`
)

// maxID is the largest value a SERIAL column can hold. Larger ids cannot
// exist, and Postgres rejects them as parameters.
const maxID = math.MaxInt32

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create relies on the unique index for email; there is no check-then-insert
// race.
func (r *UserRepository) Create(ctx context.Context, name, email string) (models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, insertUser, name, email).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, selectUsers)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Get(ctx context.Context, id int64) (models.User, error) {
	if id > maxID {
		return models.User{}, ErrNotFound
	}
	var u models.User
	err := r.db.QueryRowContext(ctx, selectUser, id).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("query user %d: %w", id, err)
	}
	return u, nil
}

// Update changes the given fields. Taking an email already used by another
// user returns ErrDuplicateEmail.
func (r *UserRepository) Update(ctx context.Context, id int64, req models.UpdateUserRequest) (models.User, error) {
	if id > maxID {
		return models.User{}, ErrNotFound
	}
	if req.Empty() {
		return r.Get(ctx, id)
	}

	query := "UPDATE users SET"
	args := []any{}
	sets := 0

	if req.Name != nil {
		args = append(args, *req.Name)
		query += " name = $" + strconv.Itoa(len(args))
		sets++
	}
	if req.Email != nil {
		if sets > 0 {
			query += ","
		}
		args = append(args, *req.Email)
		query += " email = $" + strconv.Itoa(len(args))
	}

	args = append(args, id)
	query += " WHERE id = $" + strconv.Itoa(len(args)) + " RETURNING id, name, email, created_at"

	var u models.User
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, fmt.Errorf("update user %d: %w", id, err)
	}
	return u, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	if id > maxID {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, deleteUser, id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
