package dto

import (
	"encoding/json"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
)

// UserOutput represents user details in API responses
type UserOutput struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Cash        string `json:"cash"`
	CashDisplay string `json:"cash_display"`
}

// NewUserOutput converts a domain user
func NewUserOutput(u *domain.User) *UserOutput {
	return &UserOutput{
		ID:          u.ID.String(),
		Username:    u.Username,
		Cash:        Amount(u.Cash),
		CashDisplay: USD(u.Cash),
	}
}

// Amount renders a cash or price value with two decimal places
func Amount(d decimal.Decimal) string {
	return d.StringFixed(domain.PriceScale)
}

// USD renders d as a dollar string, e.g. "$1,234.56"
func USD(d decimal.Decimal) string {
	cur := money.New(0, money.USD).Currency()
	cents := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}

// ShareCount is a share quantity as the client sent it. It accepts a JSON
// number or string so that non-integer input reaches domain.ParseShares and
// is reported as an invalid quantity rather than a malformed body.
type ShareCount string

// UnmarshalJSON implements json.Unmarshaler
func (s *ShareCount) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = ShareCount(str)
		return nil
	}
	*s = ShareCount(strings.TrimSpace(string(b)))
	if *s == "null" {
		*s = ""
	}
	return nil
}

// TradeRequest represents a buy or sell order
type TradeRequest struct {
	Symbol string     `json:"symbol" form:"symbol"`
	Shares ShareCount `json:"shares" form:"shares"`
}

// QuoteOutput represents a quote in API responses
type QuoteOutput struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	PriceDisplay string `json:"price_display"`
}

// NewQuoteOutput converts a domain quote
func NewQuoteOutput(q *domain.Quote) *QuoteOutput {
	return &QuoteOutput{
		Symbol:       q.Symbol,
		Name:         q.Name,
		Price:        Amount(q.Price),
		PriceDisplay: USD(q.Price),
	}
}

// TradeOutput represents one ledger entry in API responses
type TradeOutput struct {
	ID           string `json:"id"`
	Symbol       string `json:"symbol"`
	Side         string `json:"side"`
	Shares       int64  `json:"shares"`
	ShareDelta   int64  `json:"share_delta"`
	Price        string `json:"price"`
	TotalValue   string `json:"total_value"`
	TotalDisplay string `json:"total_display"`
	CreatedAt    string `json:"created_at"`
}

// NewTradeOutput converts a ledger entry
func NewTradeOutput(e *domain.LedgerEntry) TradeOutput {
	return TradeOutput{
		ID:           e.ID.String(),
		Symbol:       e.Symbol,
		Side:         e.Side(),
		Shares:       e.Shares(),
		ShareDelta:   e.ShareDelta,
		Price:        Amount(e.Price),
		TotalValue:   Amount(e.TotalValue),
		TotalDisplay: USD(e.TotalValue),
		CreatedAt:    e.CreatedAt.Format("2006-01-02T15:04:05.000000Z07:00"),
	}
}

// TradeResultOutput is returned after a successful buy or sell
type TradeResultOutput struct {
	Trade TradeOutput `json:"trade"`
	Cash  string      `json:"cash"`
}

// HoldingOutput represents one valued position
type HoldingOutput struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Shares       int64  `json:"shares"`
	Price        string `json:"price"`
	Value        string `json:"value"`
	ValueDisplay string `json:"value_display"`
}

// PortfolioOutput represents the portfolio view
type PortfolioOutput struct {
	Holdings     []HoldingOutput `json:"holdings"`
	Cash         string          `json:"cash"`
	CashDisplay  string          `json:"cash_display"`
	Total        string          `json:"total"`
	TotalDisplay string          `json:"total_display"`
}

// NewPortfolioOutput converts a domain portfolio
func NewPortfolioOutput(p *domain.Portfolio) *PortfolioOutput {
	holdings := make([]HoldingOutput, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		holdings = append(holdings, HoldingOutput{
			Symbol:       h.Symbol,
			Name:         h.Name,
			Shares:       h.Shares,
			Price:        Amount(h.CurrentPrice),
			Value:        Amount(h.CurrentValue),
			ValueDisplay: USD(h.CurrentValue),
		})
	}
	return &PortfolioOutput{
		Holdings:     holdings,
		Cash:         Amount(p.CashBalance),
		CashDisplay:  USD(p.CashBalance),
		Total:        Amount(p.TotalValue),
		TotalDisplay: USD(p.TotalValue),
	}
}
