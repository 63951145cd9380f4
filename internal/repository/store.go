package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"papertrade/internal/domain"
)

// pool is the part of *pgxpool.Pool the store needs
type pool interface {
	querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements domain.Store on a pgx connection pool
type PostgresStore struct {
	db     pool
	users  domain.UserRepository
	trades domain.TradeRepository
}

// NewPostgresStore creates a Store backed by the given pool
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return newPostgresStore(db)
}

func newPostgresStore(db pool) *PostgresStore {
	return &PostgresStore{
		db:     db,
		users:  NewUserRepository(db),
		trades: NewTradeRepository(db),
	}
}

func (s *PostgresStore) Users() domain.UserRepository   { return s.users }
func (s *PostgresStore) Trades() domain.TradeRepository { return s.trades }

func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *PostgresStore) Close() { s.db.Close() }

// WithinUserTx runs fn in a transaction holding the user's row lock.
// Concurrent calls for the same user queue on SELECT ... FOR UPDATE.
func (s *PostgresStore) WithinUserTx(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context, repos domain.TxRepositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Printf("[ERROR] Rollback failed for user %s: %v", userID, rbErr)
			}
		}
	}()

	var locked uuid.UUID
	if err = tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&locked); err != nil {
		return fmt.Errorf("failed to lock account: %w", notFound(err))
	}

	if err = fn(ctx, domain.TxRepositories{
		Users:  NewUserRepository(tx),
		Trades: NewTradeRepository(tx),
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

var _ domain.Store = (*PostgresStore)(nil)
