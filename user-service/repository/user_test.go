package repository

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/vrushab-bit/mini-shop/user-service/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(insertUser).WithArgs("Ada", "a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "created_at"}).AddRow(1, "Ada", "a@x.com", now))

	u, err := repo.Create(context.Background(), "Ada", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, now, u.CreatedAt)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(insertUser).WithArgs("Ada", "a@x.com").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo.Create(context.Background(), "Ada", "a@x.com")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestCreate_OtherError(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(insertUser).WillReturnError(errors.New("connection reset"))

	_, err := repo.Create(context.Background(), "Ada", "a@x.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateEmail)
}

func TestGet(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(selectUser).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "created_at"}).AddRow(1, "Ada", "a@x.com", time.Now()))
	mock.ExpectQuery(selectUser).WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "created_at"}))

	u, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)

	_, err = repo.Get(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(selectUsers).WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "created_at"}).
		AddRow(1, "Ada", "a@x.com", time.Now()).
		AddRow(2, "Bo", "b@x.com", time.Now()))

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_IDBeyondColumnRange(t *testing.T) {
	repo, mock := newMock(t)

	_, err := repo.Get(context.Background(), math.MaxInt32+1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate(t *testing.T) {
	repo, mock := newMock(t)
	name, email := "Ada L", "ada@x.com"

	mock.ExpectQuery("UPDATE users SET name = $1, email = $2 WHERE id = $3 RETURNING id, name, email, created_at").
		WithArgs(name, email, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "created_at"}).AddRow(1, name, email, time.Now()))

	u, err := repo.Update(context.Background(), 1, models.UpdateUserRequest{Name: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "ada@x.com", u.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_EmailOnly(t *testing.T) {
	repo, mock := newMock(t)
	email := "ada@x.com"

	mock.ExpectQuery("UPDATE users SET email = $1 WHERE id = $2 RETURNING id, name, email, created_at").
		WithArgs(email, int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "created_at"}))

	_, err := repo.Update(context.Background(), 4, models.UpdateUserRequest{Email: &email})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_EmailTaken(t *testing.T) {
	repo, mock := newMock(t)
	email := "taken@x.com"

	mock.ExpectQuery("UPDATE users SET email = $1 WHERE id = $2 RETURNING id, name, email, created_at").
		WithArgs(email, int64(1)).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Update(context.Background(), 1, models.UpdateUserRequest{Email: &email})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestDelete(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(deleteUser).WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteUser).WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 1))
	assert.ErrorIs(t, repo.Delete(context.Background(), 2), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
