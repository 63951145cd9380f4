// Package memory is an in-process implementation of domain.Store.
// It is used when no DATABASE_URL is configured and throughout the tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
)

// Store keeps users and the trade ledger in maps guarded by mu.
// Per-user mutexes serialize units of work for the same account.
type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*domain.User
	byName   map[string]uuid.UUID
	entries  []*domain.LedgerEntry
	locksMu  sync.Mutex
	locks    map[uuid.UUID]*sync.Mutex
	userRepo *userRepo
	tradeRep *tradeRepo
}

// NewStore creates an empty Store
func NewStore() *Store {
	s := &Store{
		users:  make(map[uuid.UUID]*domain.User),
		byName: make(map[string]uuid.UUID),
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
	s.userRepo = &userRepo{s: s}
	s.tradeRep = &tradeRepo{s: s}
	return s
}

func (s *Store) Users() domain.UserRepository   { return s.userRepo }
func (s *Store) Trades() domain.TradeRepository { return s.tradeRep }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() {}

func (s *Store) accountLock(userID uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	if _, exists := s.locks[userID]; !exists {
		s.locks[userID] = &sync.Mutex{}
	}
	return s.locks[userID]
}

// WithinUserTx holds the user's lock while fn runs against staged
// repositories. Staged writes are applied only when fn returns nil.
func (s *Store) WithinUserTx(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context, repos domain.TxRepositories) error) error {
	mu := s.accountLock(userID)
	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}

	st := &staged{
		s:      s,
		cash:   make(map[uuid.UUID]decimal.Decimal),
		hashes: make(map[uuid.UUID]string),
	}
	if err := fn(ctx, domain.TxRepositories{
		Users:  &txUserRepo{st: st},
		Trades: &txTradeRepo{st: st},
	}); err != nil {
		return err
	}

	return st.apply()
}

// Shared repositories read and write committed state directly.

type userRepo struct {
	s *Store
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.byName[user.Username]; taken {
		return fmt.Errorf("failed to create user %q: %w", user.Username, domain.ErrDuplicateUsername)
	}
	if _, taken := r.s.users[user.ID]; taken {
		return fmt.Errorf("failed to create user: id %s already exists", user.ID)
	}
	r.s.users[user.ID] = copyUser(user)
	r.s.byName[user.Username] = user.ID
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("failed to get user by ID: %w", domain.ErrNotFound)
	}
	return copyUser(u), nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.byName[username]
	if !ok {
		return nil, fmt.Errorf("failed to get user by username: %w", domain.ErrNotFound)
	}
	return copyUser(r.s.users[id]), nil
}

func (r *userRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.byName[username]
	return ok, nil
}

func (r *userRepo) GetCash(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return u.Cash, nil
}

func (r *userRepo) SetCash(ctx context.Context, id uuid.UUID, cash decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return fmt.Errorf("failed to update cash for %s: %w", id, domain.ErrNotFound)
	}
	u.Cash = cash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *userRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return fmt.Errorf("failed to update password for %s: %w", id, domain.ErrNotFound)
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *userRepo) GetAll(ctx context.Context) ([]*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]*domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Username < users[j].Username
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

type tradeRepo struct {
	s *Store
}

func (r *tradeRepo) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *entry
	r.s.entries = append(r.s.entries, &c)
	return nil
}

// entriesLocked returns copies of a user's entries in ledger order.
// Must be called with s.mu held.
func (s *Store) entriesLocked(userID uuid.UUID) []*domain.LedgerEntry {
	var result []*domain.LedgerEntry
	for _, e := range s.entries {
		if e.UserID == userID {
			c := *e
			result = append(result, &c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (r *tradeRepo) EntriesFor(ctx context.Context, userID uuid.UUID) ([]*domain.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.entriesLocked(userID), nil
}

func (r *tradeRepo) AggregatedHoldings(ctx context.Context, userID uuid.UUID) (map[string]int64, error) {
	entries, err := r.EntriesFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return aggregate(entries), nil
}

func (r *tradeRepo) NetShares(ctx context.Context, userID uuid.UUID, symbol string) (int64, error) {
	entries, err := r.EntriesFor(ctx, userID)
	if err != nil {
		return 0, err
	}
	return netShares(entries, symbol), nil
}

func (r *tradeRepo) LastEntryAt(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	entries, err := r.EntriesFor(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	return lastEntryAt(entries), nil
}

func aggregate(entries []*domain.LedgerEntry) map[string]int64 {
	sums := make(map[string]int64)
	for _, e := range entries {
		sums[e.Symbol] += e.ShareDelta
	}
	for symbol, net := range sums {
		if net <= 0 {
			delete(sums, symbol)
		}
	}
	return sums
}

func netShares(entries []*domain.LedgerEntry, symbol string) int64 {
	var net int64
	for _, e := range entries {
		if e.Symbol == symbol {
			net += e.ShareDelta
		}
	}
	return net
}

func lastEntryAt(entries []*domain.LedgerEntry) time.Time {
	var last time.Time
	for _, e := range entries {
		if e.CreatedAt.After(last) {
			last = e.CreatedAt
		}
	}
	return last
}

var _ domain.Store = (*Store)(nil)
