package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
)

// StaticQuoteProvider serves prices from memory. It backs QUOTE_PROVIDER=static
// for offline runs and stands in for the quote API in tests.
type StaticQuoteProvider struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
	errs   map[string]error
	calls  int
}

// NewStaticQuoteProvider creates a provider seeded with symbol → price
func NewStaticQuoteProvider(prices map[string]float64) *StaticQuoteProvider {
	p := &StaticQuoteProvider{
		quotes: make(map[string]domain.Quote),
		errs:   make(map[string]error),
	}
	for symbol, price := range prices {
		p.SetPrice(symbol, decimal.NewFromFloat(price))
	}
	return p
}

// SetPrice sets or replaces the price for symbol and clears any injected error
func (p *StaticQuoteProvider) SetPrice(symbol string, price decimal.Decimal) {
	symbol = domain.NormalizeSymbol(symbol)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[symbol] = domain.Quote{Symbol: symbol, Name: symbol, Price: domain.RoundPrice(price)}
	delete(p.errs, symbol)
}

// Delist removes symbol so lookups report it unknown
func (p *StaticQuoteProvider) Delist(symbol string) {
	symbol = domain.NormalizeSymbol(symbol)

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.quotes, symbol)
}

// FailWith makes lookups of symbol return err until SetPrice is called
func (p *StaticQuoteProvider) FailWith(symbol string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[domain.NormalizeSymbol(symbol)] = err
}

// Calls returns how many lookups have been served
func (p *StaticQuoteProvider) Calls() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.calls
}

// Lookup implements domain.QuoteProvider
func (p *StaticQuoteProvider) Lookup(ctx context.Context, symbol string) (*domain.Quote, error) {
	symbol = domain.NormalizeSymbol(symbol)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err)
	}
	if err, ok := p.errs[symbol]; ok {
		return nil, err
	}
	q, ok := p.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
	}
	return &q, nil
}

var _ domain.QuoteProvider = (*StaticQuoteProvider)(nil)
