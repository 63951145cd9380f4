package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
	"papertrade/internal/utils"
)

// publishTimeout bounds delivery of one trade event after commit
const publishTimeout = 5 * time.Second

// TradingService executes buy and sell orders against a user's cash and
// the trade ledger. Each order either fully applies or changes nothing.
type TradingService struct {
	store  domain.Store
	quotes domain.QuoteProvider
	events domain.TradeEventPublisher

	inflight sync.WaitGroup
}

// NewTradingService creates a new TradingService
func NewTradingService(
	store domain.Store,
	quotes domain.QuoteProvider,
	events domain.TradeEventPublisher,
) *TradingService {
	return &TradingService{
		store:  store,
		quotes: quotes,
		events: events,
	}
}

// Quote looks up the current price for symbol
func (ts *TradingService) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	return ts.quotes.Lookup(ctx, symbol)
}

// Buy purchases shares of symbol at the current quoted price
func (ts *TradingService) Buy(ctx context.Context, userID uuid.UUID, symbol string, shares int64) (*domain.TradeResult, error) {
	if err := domain.ValidateShares(shares); err != nil {
		return nil, err
	}
	symbol = domain.NormalizeSymbol(symbol)

	price, err := ts.price(ctx, symbol)
	if err != nil {
		return nil, err
	}
	cost := domain.TradeValue(shares, price)

	entry := &domain.LedgerEntry{
		ID:         uuid.New(),
		UserID:     userID,
		Symbol:     symbol,
		ShareDelta: shares,
		Price:      price,
		TotalValue: cost,
	}

	result := &domain.TradeResult{Entry: entry}
	err = ts.store.WithinUserTx(ctx, userID, func(ctx context.Context, repos domain.TxRepositories) error {
		cash, err := repos.Users.GetCash(ctx, userID)
		if err != nil {
			return err
		}
		if cash.LessThan(cost) {
			return fmt.Errorf("%w: %d %s cost %s, cash is %s",
				domain.ErrInsufficientFunds, shares, symbol, cost.StringFixed(domain.PriceScale), cash.StringFixed(domain.PriceScale))
		}
		result.Cash = cash.Sub(cost)
		return ts.record(ctx, repos, entry, result.Cash)
	})
	if err != nil {
		return nil, fmt.Errorf("buy %s: %w", symbol, err)
	}

	log.Printf("[OK] BUY %s x%d @ %s = %s | user=%s", symbol, shares, price, cost, userID)
	ts.publish(ctx, entry)
	return result, nil
}

// Sell disposes of shares of symbol at the current quoted price
func (ts *TradingService) Sell(ctx context.Context, userID uuid.UUID, symbol string, shares int64) (*domain.TradeResult, error) {
	if err := domain.ValidateShares(shares); err != nil {
		return nil, err
	}
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: no stock selected", domain.ErrUnknownSymbol)
	}

	// Reject oversells before spending a quote lookup; re-checked under the lock.
	held, err := ts.store.Trades().NetShares(ctx, userID, symbol)
	if err != nil {
		return nil, fmt.Errorf("sell %s: %w", symbol, err)
	}
	if err := checkHolding(symbol, shares, held); err != nil {
		return nil, err
	}

	price, err := ts.price(ctx, symbol)
	if err != nil {
		return nil, err
	}
	proceeds := domain.TradeValue(shares, price)

	entry := &domain.LedgerEntry{
		ID:         uuid.New(),
		UserID:     userID,
		Symbol:     symbol,
		ShareDelta: -shares,
		Price:      price,
		TotalValue: proceeds,
	}

	result := &domain.TradeResult{Entry: entry}
	err = ts.store.WithinUserTx(ctx, userID, func(ctx context.Context, repos domain.TxRepositories) error {
		held, err := repos.Trades.NetShares(ctx, userID, symbol)
		if err != nil {
			return err
		}
		if err := checkHolding(symbol, shares, held); err != nil {
			return err
		}
		cash, err := repos.Users.GetCash(ctx, userID)
		if err != nil {
			return err
		}
		result.Cash = cash.Add(proceeds)
		return ts.record(ctx, repos, entry, result.Cash)
	})
	if err != nil {
		return nil, fmt.Errorf("sell %s: %w", symbol, err)
	}

	log.Printf("[OK] SELL %s x%d @ %s = %s | user=%s", symbol, shares, price, proceeds, userID)
	ts.publish(ctx, entry)
	return result, nil
}

// History returns every trade the user has made, oldest first
func (ts *TradingService) History(ctx context.Context, userID uuid.UUID) ([]*domain.LedgerEntry, error) {
	if _, err := ts.store.Users().GetByID(ctx, userID); err != nil {
		return nil, err
	}
	entries, err := ts.store.Trades().EntriesFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return entries, nil
}

func (ts *TradingService) price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	quote, err := ts.quotes.Lookup(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.RoundPrice(quote.Price), nil
}

// record stamps and appends entry, then writes the new cash balance.
// Must run inside WithinUserTx.
func (ts *TradingService) record(ctx context.Context, repos domain.TxRepositories, entry *domain.LedgerEntry, newCash decimal.Decimal) error {
	if newCash.IsNegative() {
		return fmt.Errorf("%w: cash would become %s", domain.ErrLedgerInconsistent, newCash)
	}

	last, err := repos.Trades.LastEntryAt(ctx, entry.UserID)
	if err != nil {
		return err
	}
	entry.CreatedAt = utils.NotBefore(utils.Now(), last)

	if err := repos.Trades.Append(ctx, entry); err != nil {
		return err
	}
	return repos.Users.SetCash(ctx, entry.UserID, newCash)
}

// publish announces a committed trade in the background. The trade is
// already durable, so delivery never delays or fails the caller.
func (ts *TradingService) publish(ctx context.Context, entry *domain.LedgerEntry) {
	if ts.events == nil {
		return
	}

	ts.inflight.Add(1)
	go func() {
		defer ts.inflight.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		if err := ts.events.PublishTrade(ctx, entry); err != nil {
			log.Printf("[WARN] Failed to publish trade %s: %v", entry.ID, err)
		}
	}()
}

// Flush waits for in-flight trade events to be delivered or to time out
func (ts *TradingService) Flush() {
	ts.inflight.Wait()
}

func checkHolding(symbol string, requested, held int64) error {
	if requested > held {
		if held < 0 {
			held = 0
		}
		return fmt.Errorf("%w: selling %d %s but only %d held", domain.ErrOversellAttempt, requested, symbol, held)
	}
	return nil
}
