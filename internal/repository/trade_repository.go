package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"papertrade/internal/domain"
)

// TradeRepositoryImpl implements the TradeRepository interface on the trades table
type TradeRepositoryImpl struct {
	db querier
}

// NewTradeRepository creates a new TradeRepository
func NewTradeRepository(db querier) domain.TradeRepository {
	return &TradeRepositoryImpl{db: db}
}

// Append records an executed trade
func (r *TradeRepositoryImpl) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	query := `
		INSERT INTO trades (
			id, user_id, symbol, share_delta, price, total_value, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Symbol,
		entry.ShareDelta,
		entry.Price,
		entry.TotalValue,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append trade: %w", err)
	}

	return nil
}

// EntriesFor returns a user's entries, oldest first
func (r *TradeRepositoryImpl) EntriesFor(ctx context.Context, userID uuid.UUID) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT id, user_id, symbol, share_delta, price, total_value, created_at
		FROM trades
		WHERE user_id = $1
		ORDER BY created_at ASC, seq ASC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades by user ID: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		entry := &domain.LedgerEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Symbol,
			&entry.ShareDelta,
			&entry.Price,
			&entry.TotalValue,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return entries, nil
}

// AggregatedHoldings returns net shares per symbol with a positive net
func (r *TradeRepositoryImpl) AggregatedHoldings(ctx context.Context, userID uuid.UUID) (map[string]int64, error) {
	query := `
		SELECT symbol, SUM(share_delta)
		FROM trades
		WHERE user_id = $1
		GROUP BY symbol
		HAVING SUM(share_delta) > 0
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate holdings: %w", err)
	}
	defer rows.Close()

	holdings := make(map[string]int64)
	for rows.Next() {
		var symbol string
		var shares int64
		if err := rows.Scan(&symbol, &shares); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings[symbol] = shares
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

// NetShares returns the net shares for a single symbol
func (r *TradeRepositoryImpl) NetShares(ctx context.Context, userID uuid.UUID, symbol string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(share_delta), 0)
		FROM trades
		WHERE user_id = $1 AND symbol = $2
	`

	var net int64
	if err := r.db.QueryRow(ctx, query, userID, symbol).Scan(&net); err != nil {
		return 0, fmt.Errorf("failed to sum shares for %s: %w", symbol, err)
	}

	return net, nil
}

// LastEntryAt returns the timestamp of the user's latest entry
func (r *TradeRepositoryImpl) LastEntryAt(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	var last *time.Time
	err := r.db.QueryRow(ctx, `SELECT MAX(created_at) FROM trades WHERE user_id = $1`, userID).Scan(&last)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last trade time: %w", err)
	}
	if last == nil {
		return time.Time{}, nil
	}
	return *last, nil
}
