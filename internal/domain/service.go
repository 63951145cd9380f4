package domain

import "context"

// QuoteProvider resolves a ticker to its current price.
// Implementations return ErrUnknownSymbol when the provider has no such
// ticker and ErrQuoteUnavailable on timeouts or transport failures.
type QuoteProvider interface {
	Lookup(ctx context.Context, symbol string) (*Quote, error)
}

// TradeEventPublisher announces committed trades to downstream consumers
type TradeEventPublisher interface {
	PublishTrade(ctx context.Context, entry *LedgerEntry) error
	Close() error
}
