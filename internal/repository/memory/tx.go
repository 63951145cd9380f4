package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
)

// staged buffers the writes of one unit of work
type staged struct {
	s       *Store
	cash    map[uuid.UUID]decimal.Decimal
	hashes  map[uuid.UUID]string
	entries []*domain.LedgerEntry
}

// apply publishes every staged write under a single store lock
func (st *staged) apply() error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	for id := range st.cash {
		if _, ok := st.s.users[id]; !ok {
			return fmt.Errorf("failed to commit cash for %s: %w", id, domain.ErrNotFound)
		}
	}
	for id := range st.hashes {
		if _, ok := st.s.users[id]; !ok {
			return fmt.Errorf("failed to commit password for %s: %w", id, domain.ErrNotFound)
		}
	}

	now := time.Now().UTC()
	for id, cash := range st.cash {
		st.s.users[id].Cash = cash
		st.s.users[id].UpdatedAt = now
	}
	for id, hash := range st.hashes {
		st.s.users[id].PasswordHash = hash
		st.s.users[id].UpdatedAt = now
	}
	st.s.entries = append(st.s.entries, st.entries...)
	return nil
}

// txUserRepo reads through to the store and overlays staged writes
type txUserRepo struct {
	st *staged
}

func (r *txUserRepo) overlay(u *domain.User) *domain.User {
	if cash, ok := r.st.cash[u.ID]; ok {
		u.Cash = cash
	}
	if hash, ok := r.st.hashes[u.ID]; ok {
		u.PasswordHash = hash
	}
	return u
}

// Create is not staged; registration never runs inside a unit of work.
func (r *txUserRepo) Create(ctx context.Context, user *domain.User) error {
	return r.st.s.userRepo.Create(ctx, user)
}

func (r *txUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := r.st.s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.overlay(u), nil
}

func (r *txUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := r.st.s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return r.overlay(u), nil
}

func (r *txUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.st.s.userRepo.UsernameExists(ctx, username)
}

func (r *txUserRepo) GetCash(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return u.Cash, nil
}

func (r *txUserRepo) SetCash(ctx context.Context, id uuid.UUID, cash decimal.Decimal) error {
	if _, err := r.st.s.userRepo.GetByID(ctx, id); err != nil {
		return fmt.Errorf("failed to update cash for %s: %w", id, domain.ErrNotFound)
	}
	r.st.cash[id] = cash
	return nil
}

func (r *txUserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	if _, err := r.st.s.userRepo.GetByID(ctx, id); err != nil {
		return fmt.Errorf("failed to update password for %s: %w", id, domain.ErrNotFound)
	}
	r.st.hashes[id] = hash
	return nil
}

func (r *txUserRepo) GetAll(ctx context.Context) ([]*domain.User, error) {
	users, err := r.st.s.userRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		r.overlay(u)
	}
	return users, nil
}

// txTradeRepo sees committed entries plus the ones staged in this unit of work
type txTradeRepo struct {
	st *staged
}

func (r *txTradeRepo) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	c := *entry
	r.st.entries = append(r.st.entries, &c)
	return nil
}

func (r *txTradeRepo) EntriesFor(ctx context.Context, userID uuid.UUID) ([]*domain.LedgerEntry, error) {
	entries, err := r.st.s.tradeRep.EntriesFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, e := range r.st.entries {
		if e.UserID == userID {
			c := *e
			entries = append(entries, &c)
		}
	}
	return entries, nil
}

func (r *txTradeRepo) AggregatedHoldings(ctx context.Context, userID uuid.UUID) (map[string]int64, error) {
	entries, err := r.EntriesFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return aggregate(entries), nil
}

func (r *txTradeRepo) NetShares(ctx context.Context, userID uuid.UUID, symbol string) (int64, error) {
	entries, err := r.EntriesFor(ctx, userID)
	if err != nil {
		return 0, err
	}
	return netShares(entries, symbol), nil
}

func (r *txTradeRepo) LastEntryAt(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	entries, err := r.EntriesFor(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	return lastEntryAt(entries), nil
}
