package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"papertrade/internal/domain"
)

var propertySymbols = []string{"AAPL", "MSFT", "GOOG"}

// Any sequence of buys, sells and price moves keeps
// cash = starting cash - total bought + total sold, cash >= 0,
// and every net holding >= 0.
func TestProperty_LedgerConservesCash(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newTradingFixture(t)
		ctx := context.Background()
		starting := rapid.Int64Range(0, 5_000_00).Draw(rt, "startingCents")
		userID := f.addUser(t, "prop", decimal.New(starting, -2).StringFixed(2))

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			symbol := rapid.SampledFrom(propertySymbols).Draw(rt, "symbol")

			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				cents := rapid.Int64Range(1, 100_000).Draw(rt, "priceCents")
				f.quotes.SetPrice(symbol, decimal.New(cents, -2))
			case 1:
				shares := rapid.Int64Range(-2, 50).Draw(rt, "buyShares")
				_, err := f.service.Buy(ctx, userID, symbol, shares)
				if err != nil && !errors.Is(err, domain.ErrInsufficientFunds) && !errors.Is(err, domain.ErrInvalidQuantity) {
					rt.Fatalf("buy: unexpected error %v", err)
				}
			case 2:
				shares := rapid.Int64Range(-2, 50).Draw(rt, "sellShares")
				_, err := f.service.Sell(ctx, userID, symbol, shares)
				if err != nil && !errors.Is(err, domain.ErrOversellAttempt) && !errors.Is(err, domain.ErrInvalidQuantity) {
					rt.Fatalf("sell: unexpected error %v", err)
				}
			}
		}

		entries, err := f.store.Trades().EntriesFor(ctx, userID)
		if err != nil {
			rt.Fatalf("entries: %v", err)
		}
		cash, err := f.store.Users().GetCash(ctx, userID)
		if err != nil {
			rt.Fatalf("cash: %v", err)
		}

		expected := decimal.New(starting, -2)
		nets := make(map[string]int64)
		for _, e := range entries {
			if e.ShareDelta == 0 {
				rt.Fatalf("entry %s has zero share delta", e.ID)
			}
			if !e.TotalValue.Equal(domain.TradeValue(e.Shares(), e.Price)) {
				rt.Fatalf("entry %s total %s != %d x %s", e.ID, e.TotalValue, e.Shares(), e.Price)
			}
			if e.ShareDelta > 0 {
				expected = expected.Sub(e.TotalValue)
			} else {
				expected = expected.Add(e.TotalValue)
			}
			nets[e.Symbol] += e.ShareDelta
			if nets[e.Symbol] < 0 {
				rt.Fatalf("net %s went negative after entry %s", e.Symbol, e.ID)
			}
		}

		if !cash.Equal(expected) {
			rt.Fatalf("cash %s, ledger implies %s", cash, expected)
		}
		if cash.IsNegative() {
			rt.Fatalf("cash is negative: %s", cash)
		}
	})
}

// A rejected order leaves cash and ledger exactly as they were.
func TestProperty_RejectedOrdersChangeNothing(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newTradingFixture(t)
		ctx := context.Background()
		userID := f.addUser(t, "prop", "1000.00")

		cents := rapid.Int64Range(1, 100_000).Draw(rt, "priceCents")
		f.quotes.SetPrice("AAPL", decimal.New(cents, -2))
		held := rapid.Int64Range(0, 5).Draw(rt, "held")
		if held > 0 {
			if _, err := f.service.Buy(ctx, userID, "AAPL", held); err != nil {
				// Could not afford the setup position
				held = 0
			}
		}

		before, _ := f.store.Users().GetCash(ctx, userID)
		beforeEntries, _ := f.store.Trades().EntriesFor(ctx, userID)

		over := held + rapid.Int64Range(1, 10).Draw(rt, "excess")
		if _, err := f.service.Sell(ctx, userID, "AAPL", over); !errors.Is(err, domain.ErrOversellAttempt) {
			rt.Fatalf("selling %d of %d: got %v, want oversell", over, held, err)
		}

		after, _ := f.store.Users().GetCash(ctx, userID)
		afterEntries, _ := f.store.Trades().EntriesFor(ctx, userID)
		if !before.Equal(after) || len(beforeEntries) != len(afterEntries) {
			rt.Fatalf("rejected sell changed state: cash %s -> %s, entries %d -> %d", before, after, len(beforeEntries), len(afterEntries))
		}
	})
}
