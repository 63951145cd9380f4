package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/adapter"
	"papertrade/internal/domain"
	"papertrade/internal/repository/memory"
)

// recordingPublisher captures published trades
type recordingPublisher struct {
	mu      sync.Mutex
	entries []*domain.LedgerEntry
	err     error
}

func (p *recordingPublisher) PublishTrade(ctx context.Context, entry *domain.LedgerEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

type tradingFixture struct {
	store   *memory.Store
	quotes  *adapter.StaticQuoteProvider
	events  *recordingPublisher
	service *TradingService
}

func newTradingFixture(t *testing.T) *tradingFixture {
	t.Helper()
	store := memory.NewStore()
	quotes := adapter.NewStaticQuoteProvider(map[string]float64{"AAPL": 150.00, "MSFT": 400.00})
	events := &recordingPublisher{}
	return &tradingFixture{
		store:   store,
		quotes:  quotes,
		events:  events,
		service: NewTradingService(store, quotes, events),
	}
}

// addUser creates an account directly in the store
func (f *tradingFixture) addUser(t *testing.T, name string, cash string) uuid.UUID {
	t.Helper()
	amount := decimal.RequireFromString(cash)
	user := &domain.User{
		ID:           uuid.New(),
		Username:     name,
		PasswordHash: "unused",
		Cash:         amount,
		StartingCash: amount,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, f.store.Users().Create(context.Background(), user))
	return user.ID
}

func (f *tradingFixture) cash(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	cash, err := f.store.Users().GetCash(context.Background(), userID)
	require.NoError(t, err)
	return cash.StringFixed(domain.PriceScale)
}

func (f *tradingFixture) holdings(t *testing.T, userID uuid.UUID) map[string]int64 {
	t.Helper()
	h, err := f.store.Trades().AggregatedHoldings(context.Background(), userID)
	require.NoError(t, err)
	return h
}

func (f *tradingFixture) history(t *testing.T, userID uuid.UUID) []*domain.LedgerEntry {
	t.Helper()
	entries, err := f.service.History(context.Background(), userID)
	require.NoError(t, err)
	return entries
}

func TestBuyThenSell(t *testing.T) {
	f := newTradingFixture(t)
	ctx := context.Background()
	userID := f.addUser(t, "alice", "10000.00")

	bought, err := f.service.Buy(ctx, userID, "aapl", 10)
	require.NoError(t, err)
	buy := bought.Entry
	assert.Equal(t, "8500.00", bought.Cash.StringFixed(2))
	assert.Equal(t, "AAPL", buy.Symbol)
	assert.Equal(t, int64(10), buy.ShareDelta)
	assert.Equal(t, "1500.00", buy.TotalValue.StringFixed(2))
	assert.Equal(t, "8500.00", f.cash(t, userID))
	assert.Equal(t, map[string]int64{"AAPL": 10}, f.holdings(t, userID))

	f.quotes.SetPrice("AAPL", decimal.NewFromInt(160))

	sold, err := f.service.Sell(ctx, userID, "AAPL", 4)
	require.NoError(t, err)
	sell := sold.Entry
	assert.Equal(t, "9140.00", sold.Cash.StringFixed(2))
	assert.Equal(t, int64(-4), sell.ShareDelta)
	assert.Equal(t, "640.00", sell.TotalValue.StringFixed(2))
	assert.Equal(t, "9140.00", f.cash(t, userID))
	assert.Equal(t, map[string]int64{"AAPL": 6}, f.holdings(t, userID))

	history := f.history(t, userID)
	require.Len(t, history, 2)
	assert.Equal(t, buy.ID, history[0].ID)
	assert.Equal(t, sell.ID, history[1].ID)

	f.service.Flush()
	assert.Equal(t, 2, f.events.count())
}

func TestSellEntirePositionDropsHolding(t *testing.T) {
	f := newTradingFixture(t)
	ctx := context.Background()
	userID := f.addUser(t, "bob", "1000.00")

	_, err := f.service.Buy(ctx, userID, "AAPL", 2)
	require.NoError(t, err)
	_, err = f.service.Sell(ctx, userID, "AAPL", 2)
	require.NoError(t, err)

	assert.Empty(t, f.holdings(t, userID))
	assert.Equal(t, "1000.00", f.cash(t, userID))
	assert.Len(t, f.history(t, userID), 2)
}

func TestBuyInsufficientFunds(t *testing.T) {
	f := newTradingFixture(t)
	userID := f.addUser(t, "carol", "100.00")

	_, err := f.service.Buy(context.Background(), userID, "AAPL", 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.Equal(t, "100.00", f.cash(t, userID))
	assert.Empty(t, f.history(t, userID))
	assert.Zero(t, f.events.count())
}

func TestBuyExactCash(t *testing.T) {
	f := newTradingFixture(t)
	userID := f.addUser(t, "dan", "300.00")

	_, err := f.service.Buy(context.Background(), userID, "AAPL", 2)
	require.NoError(t, err)
	assert.Equal(t, "0.00", f.cash(t, userID))
}

func TestSellOversell(t *testing.T) {
	f := newTradingFixture(t)
	ctx := context.Background()
	userID := f.addUser(t, "erin", "10000.00")

	t.Run("no holding", func(t *testing.T) {
		_, err := f.service.Sell(ctx, userID, "MSFT", 1)
		assert.ErrorIs(t, err, domain.ErrOversellAttempt)
		assert.Zero(t, f.quotes.Calls(), "oversell is rejected before a quote lookup")
	})

	t.Run("more than held", func(t *testing.T) {
		_, err := f.service.Buy(ctx, userID, "AAPL", 3)
		require.NoError(t, err)

		_, err = f.service.Sell(ctx, userID, "AAPL", 4)
		assert.ErrorIs(t, err, domain.ErrOversellAttempt)
		assert.Equal(t, map[string]int64{"AAPL": 3}, f.holdings(t, userID))
		assert.Equal(t, "9550.00", f.cash(t, userID))
	})
}

func TestInvalidQuantity(t *testing.T) {
	f := newTradingFixture(t)
	ctx := context.Background()
	userID := f.addUser(t, "frank", "10000.00")

	for _, n := range []int64{0, -1, -100} {
		_, err := f.service.Buy(ctx, userID, "AAPL", n)
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

		_, err = f.service.Sell(ctx, userID, "AAPL", n)
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	}

	assert.Zero(t, f.quotes.Calls())
	assert.Equal(t, "10000.00", f.cash(t, userID))
}

func TestUnknownSymbolAndQuoteFailure(t *testing.T) {
	f := newTradingFixture(t)
	ctx := context.Background()
	userID := f.addUser(t, "grace", "10000.00")

	_, err := f.service.Buy(ctx, userID, "ZZZZ", 1)
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)

	_, err = f.service.Buy(ctx, userID, "", 1)
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)

	_, err = f.service.Sell(ctx, userID, "  ", 1)
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)

	f.quotes.FailWith("AAPL", domain.ErrQuoteUnavailable)
	_, err = f.service.Buy(ctx, userID, "AAPL", 1)
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)

	assert.Equal(t, "10000.00", f.cash(t, userID))
	assert.Empty(t, f.history(t, userID))
}

func TestSellHeldSymbolWhenQuoteFails(t *testing.T) {
	f := newTradingFixture(t)
	ctx := context.Background()
	userID := f.addUser(t, "heidi", "10000.00")

	_, err := f.service.Buy(ctx, userID, "AAPL", 5)
	require.NoError(t, err)

	f.quotes.FailWith("AAPL", domain.ErrQuoteUnavailable)
	_, err = f.service.Sell(ctx, userID, "AAPL", 5)
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
	assert.Equal(t, map[string]int64{"AAPL": 5}, f.holdings(t, userID))
}

func TestFailedTradesAreIdempotent(t *testing.T) {
	f := newTradingFixture(t)
	ctx := context.Background()
	userID := f.addUser(t, "ivan", "500.00")

	for i := 0; i < 3; i++ {
		_, err := f.service.Buy(ctx, userID, "MSFT", 2)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		_, err = f.service.Sell(ctx, userID, "MSFT", 1)
		assert.ErrorIs(t, err, domain.ErrOversellAttempt)
	}

	assert.Equal(t, "500.00", f.cash(t, userID))
	assert.Empty(t, f.history(t, userID))
}

func TestConcurrentBuysCannotOverspend(t *testing.T) {
	f := newTradingFixture(t)
	userID := f.addUser(t, "judy", "1000.00")
	f.quotes.SetPrice("AAPL", decimal.NewFromInt(600)) // each buy is 60% of cash

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Buy(context.Background(), userID, "AAPL", 1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, "400.00", f.cash(t, userID))
	assert.Equal(t, map[string]int64{"AAPL": 1}, f.holdings(t, userID))
}

func TestConcurrentSellsCannotOversell(t *testing.T) {
	f := newTradingFixture(t)
	userID := f.addUser(t, "kim", "10000.00")
	_, err := f.service.Buy(context.Background(), userID, "AAPL", 10)
	require.NoError(t, err)

	const sellers = 5
	var wg sync.WaitGroup
	results := make(chan error, sellers)
	for i := 0; i < sellers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Sell(context.Background(), userID, "AAPL", 6)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrOversellAttempt)
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, map[string]int64{"AAPL": 4}, f.holdings(t, userID))
	assert.Equal(t, "9400.00", f.cash(t, userID))
}

func TestEntryTimestampsNonDecreasing(t *testing.T) {
	f := newTradingFixture(t)
	ctx := context.Background()
	userID := f.addUser(t, "leo", "100000.00")

	for i := 0; i < 20; i++ {
		_, err := f.service.Buy(ctx, userID, "AAPL", 1)
		require.NoError(t, err)
	}

	history := f.history(t, userID)
	require.Len(t, history, 20)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].CreatedAt.Before(history[i-1].CreatedAt), "entry %d is older than entry %d", i, i-1)
	}
}

func TestPublishFailureDoesNotFailTrade(t *testing.T) {
	f := newTradingFixture(t)
	f.events.err = errors.New("broker down")
	userID := f.addUser(t, "mia", "1000.00")

	_, err := f.service.Buy(context.Background(), userID, "AAPL", 1)
	require.NoError(t, err)
	assert.Equal(t, "850.00", f.cash(t, userID))

	f.service.Flush()
	assert.Equal(t, 1, f.events.count())
}

// blockingPublisher holds every publish until released or its context ends
type blockingPublisher struct {
	release chan struct{}
	ctxErr  chan error
}

func (p *blockingPublisher) PublishTrade(ctx context.Context, entry *domain.LedgerEntry) error {
	select {
	case <-p.release:
		p.ctxErr <- nil
		return nil
	case <-ctx.Done():
		p.ctxErr <- ctx.Err()
		return ctx.Err()
	}
}

func (p *blockingPublisher) Close() error { return nil }

func TestSlowPublisherDoesNotDelayTrade(t *testing.T) {
	store := memory.NewStore()
	quotes := adapter.NewStaticQuoteProvider(map[string]float64{"AAPL": 150})
	events := &blockingPublisher{release: make(chan struct{}), ctxErr: make(chan error, 1)}
	f := &tradingFixture{store: store, quotes: quotes, service: NewTradingService(store, quotes, events)}
	userID := f.addUser(t, "nora", "1000.00")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	done := make(chan *domain.TradeResult, 1)
	go func() {
		result, err := f.service.Buy(ctx, userID, "AAPL", 2)
		assert.NoError(t, err)
		done <- result
	}()

	select {
	case result := <-done:
		require.NotNil(t, result)
		assert.Equal(t, "700.00", result.Cash.StringFixed(2))
	case <-time.After(2 * time.Second):
		t.Fatal("buy blocked on the event publisher")
	}

	// The request deadline passing must not cancel delivery of a committed trade
	cancel()
	time.Sleep(30 * time.Millisecond)
	close(events.release)
	f.service.Flush()
	assert.NoError(t, <-events.ctxErr)
	assert.Equal(t, "700.00", f.cash(t, userID))
}

func TestTradeUnknownUser(t *testing.T) {
	f := newTradingFixture(t)

	_, err := f.service.Buy(context.Background(), uuid.New(), "AAPL", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, domain.IsUserError(err))
}

func TestQuoteRoundsToCents(t *testing.T) {
	f := newTradingFixture(t)
	f.quotes.SetPrice("NFLX", decimal.RequireFromString("486.875"))

	q, err := f.service.Quote(context.Background(), "nflx")
	require.NoError(t, err)
	assert.Equal(t, "486.88", q.Price.StringFixed(2))
}
