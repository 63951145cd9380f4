package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntry is one executed trade. Entries are never updated or deleted.
type LedgerEntry struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	Symbol     string          `json:"symbol"`
	ShareDelta int64           `json:"share_delta"` // positive for buy, negative for sell
	Price      decimal.Decimal `json:"price"`
	TotalValue decimal.Decimal `json:"total_value"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TradeSide constants
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Side reports whether the entry was a buy or a sell
func (e *LedgerEntry) Side() string {
	if e.ShareDelta < 0 {
		return SideSell
	}
	return SideBuy
}

// Shares returns the absolute number of shares traded
func (e *LedgerEntry) Shares() int64 {
	if e.ShareDelta < 0 {
		return -e.ShareDelta
	}
	return e.ShareDelta
}

// Quote is a price for a symbol at lookup time. Quotes are never persisted.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// TradeResult is an executed trade and the cash balance it left, read
// under the same lock that recorded the trade
type TradeResult struct {
	Entry *LedgerEntry
	Cash  decimal.Decimal
}

// HoldingValue is one active position valued at the current quote
type HoldingValue struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Shares       int64           `json:"shares"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	CurrentValue decimal.Decimal `json:"current_value"`
}

// Portfolio is the valuation of a user's holdings plus cash
type Portfolio struct {
	Holdings    []HoldingValue  `json:"holdings"`
	CashBalance decimal.Decimal `json:"cash_balance"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

// PriceScale is the number of decimal places kept for prices and cash.
// Quoted prices are rounded once to this scale and the rounded price is used
// for both buy cost and sell proceeds.
const PriceScale = 2

// RoundPrice applies the pricing policy to a raw quoted price
func RoundPrice(p decimal.Decimal) decimal.Decimal {
	return p.Round(PriceScale)
}

// TradeValue returns shares × price
func TradeValue(shares int64, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(shares))
}

// NormalizeSymbol trims and upper-cases a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ParseShares parses a share count from user input. Anything other than a
// positive whole number is ErrInvalidQuantity.
func ParseShares(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: share count is required", ErrInvalidQuantity)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a whole number", ErrInvalidQuantity, raw)
	}
	if err := ValidateShares(n); err != nil {
		return 0, err
	}
	return n, nil
}

// ValidateShares checks that a share count is strictly positive
func ValidateShares(n int64) error {
	if n < 1 {
		return fmt.Errorf("%w: share count must be positive, got %d", ErrInvalidQuantity, n)
	}
	return nil
}
