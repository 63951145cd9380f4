package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserRepository defines the interface for account data operations
type UserRepository interface {
	// Create inserts a new user. Returns ErrDuplicateUsername if the username
	// is taken; the check and the insert are one atomic step.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetByUsername retrieves a user by username
	GetByUsername(ctx context.Context, username string) (*User, error)

	// UsernameExists reports whether a username is already registered
	UsernameExists(ctx context.Context, username string) (bool, error)

	// GetCash returns the user's cash balance
	GetCash(ctx context.Context, id uuid.UUID) (decimal.Decimal, error)

	// SetCash overwrites the user's cash balance
	SetCash(ctx context.Context, id uuid.UUID, cash decimal.Decimal) error

	// UpdatePasswordHash replaces the stored password hash
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error

	// GetAll retrieves all users
	GetAll(ctx context.Context) ([]*User, error)
}

// TradeRepository is the append-only trade ledger
type TradeRepository interface {
	// Append records an executed trade
	Append(ctx context.Context, entry *LedgerEntry) error

	// EntriesFor returns a user's entries, oldest first
	EntriesFor(ctx context.Context, userID uuid.UUID) ([]*LedgerEntry, error)

	// AggregatedHoldings returns net shares per symbol, omitting symbols whose
	// net is zero or negative
	AggregatedHoldings(ctx context.Context, userID uuid.UUID) (map[string]int64, error)

	// NetShares returns the net shares for a single symbol
	NetShares(ctx context.Context, userID uuid.UUID, symbol string) (int64, error)

	// LastEntryAt returns the timestamp of the user's latest entry, or the
	// zero time if there is none
	LastEntryAt(ctx context.Context, userID uuid.UUID) (time.Time, error)
}

// TxRepositories are repositories bound to one unit of work
type TxRepositories struct {
	Users  UserRepository
	Trades TradeRepository
}

// UnitOfWork serializes writes to one user's (cash, ledger) pair
type UnitOfWork interface {
	// WithinUserTx locks the user's account and runs fn. Writes made through
	// the supplied repositories are committed only if fn returns nil.
	// Returns ErrNotFound if the user does not exist.
	WithinUserTx(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context, repos TxRepositories) error) error
}

// Store bundles the persistence components
type Store interface {
	UnitOfWork
	Users() UserRepository
	Trades() TradeRepository
	Ping(ctx context.Context) error
	Close()
}
