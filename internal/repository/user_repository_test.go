package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"papertrade/internal/domain"
)

func TestCreateMapsUniqueViolation(t *testing.T) {
	q := &stubQuerier{execErr: &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}}
	repo := NewUserRepository(q)

	err := repo.Create(context.Background(), &domain.User{ID: uuid.New(), Username: "alice"})
	assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
}

func TestCreateOtherErrorsStayInternal(t *testing.T) {
	q := &stubQuerier{execErr: &pgconn.PgError{Code: "23514"}}
	repo := NewUserRepository(q)

	err := repo.Create(context.Background(), &domain.User{ID: uuid.New(), Username: "alice"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDuplicateUsername)
	assert.Equal(t, domain.CodeInternal, domain.ErrorCode(err))
}

func TestNoRowsIsNotFound(t *testing.T) {
	repo := NewUserRepository(&stubQuerier{rowErr: pgx.ErrNoRows})
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.GetCash(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateWithNoRowsIsNotFound(t *testing.T) {
	repo := NewUserRepository(&stubQuerier{execTag: pgconn.NewCommandTag("UPDATE 0")})
	ctx := context.Background()

	assert.ErrorIs(t, repo.SetCash(ctx, uuid.New(), decimal.NewFromInt(5)), domain.ErrNotFound)
	assert.ErrorIs(t, repo.UpdatePasswordHash(ctx, uuid.New(), "x"), domain.ErrNotFound)
}

func TestUpdateOneRow(t *testing.T) {
	repo := NewUserRepository(&stubQuerier{execTag: pgconn.NewCommandTag("UPDATE 1")})

	assert.NoError(t, repo.SetCash(context.Background(), uuid.New(), decimal.NewFromInt(5)))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: uniqueViolation})))
	assert.False(t, isUniqueViolation(errors.New("23505")))
	assert.False(t, isUniqueViolation(nil))
}
