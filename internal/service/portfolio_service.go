package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"papertrade/internal/domain"
)

// maxConcurrentQuotes caps parallel provider calls for a single valuation
const maxConcurrentQuotes = 8

// PortfolioService values a user's holdings at current prices
type PortfolioService struct {
	store  domain.Store
	quotes domain.QuoteProvider
}

// NewPortfolioService creates a new PortfolioService
func NewPortfolioService(store domain.Store, quotes domain.QuoteProvider) *PortfolioService {
	return &PortfolioService{
		store:  store,
		quotes: quotes,
	}
}

// ValuePortfolio fetches a fresh quote for every active holding and returns
// holdings sorted by symbol together with cash and the grand total.
// A held symbol the provider no longer knows is ErrLedgerInconsistent.
func (s *PortfolioService) ValuePortfolio(ctx context.Context, userID uuid.UUID) (*domain.Portfolio, error) {
	// Cash and holdings come from one locked read; quotes are fetched after
	// the lock is released.
	var (
		cash     decimal.Decimal
		holdings map[string]int64
	)
	err := s.store.WithinUserTx(ctx, userID, func(ctx context.Context, repos domain.TxRepositories) error {
		var err error
		if cash, err = repos.Users.GetCash(ctx, userID); err != nil {
			return err
		}
		if holdings, err = repos.Trades.AggregatedHoldings(ctx, userID); err != nil {
			return fmt.Errorf("failed to aggregate holdings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(holdings))
	for symbol := range holdings {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	values := make([]domain.HoldingValue, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQuotes)

	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			quote, err := s.quotes.Lookup(gctx, symbol)
			if err != nil {
				if errors.Is(err, domain.ErrUnknownSymbol) {
					log.Printf("[ERROR] User %s holds %d %s but the quote provider does not know it", userID, holdings[symbol], symbol)
					return fmt.Errorf("%w: held symbol %s has no quote: %v", domain.ErrLedgerInconsistent, symbol, err)
				}
				return err
			}

			price := domain.RoundPrice(quote.Price)
			values[i] = domain.HoldingValue{
				Symbol:       symbol,
				Name:         quote.Name,
				Shares:       holdings[symbol],
				CurrentPrice: price,
				CurrentValue: domain.TradeValue(holdings[symbol], price),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := cash
	for _, v := range values {
		total = total.Add(v.CurrentValue)
	}

	return &domain.Portfolio{
		Holdings:    values,
		CashBalance: cash,
		TotalValue:  total,
	}, nil
}
