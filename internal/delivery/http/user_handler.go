package http

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"papertrade/internal/delivery/http/dto"
	"papertrade/internal/domain"
	"papertrade/internal/middleware"
	"papertrade/internal/service"
	"papertrade/internal/usecase"
)

// quoteTimeout leaves headroom over the quote client's own timeout for the
// ledger work that follows a lookup
const quoteTimeout = 15 * time.Second

// UserHandler handles trading and account requests for the logged-in user
type UserHandler struct {
	trading   *usecase.TradingService
	portfolio *service.PortfolioService
	accounts  *usecase.AccountService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(
	trading *usecase.TradingService,
	portfolio *service.PortfolioService,
	accounts *usecase.AccountService,
) *UserHandler {
	return &UserHandler{
		trading:   trading,
		portfolio: portfolio,
		accounts:  accounts,
	}
}

// GetPortfolio returns holdings valued at current prices
// GET /api/user/portfolio
func (h *UserHandler) GetPortfolio(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), quoteTimeout)
	defer cancel()

	portfolio, err := h.portfolio.ValuePortfolio(ctx, userID)
	if err != nil {
		return FailureResponse(c, err)
	}

	return SuccessResponse(c, dto.NewPortfolioOutput(portfolio))
}

// GetHistory returns every trade, oldest first
// GET /api/user/history
func (h *UserHandler) GetHistory(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	entries, err := h.trading.History(ctx, userID)
	if err != nil {
		return FailureResponse(c, err)
	}

	trades := make([]dto.TradeOutput, 0, len(entries))
	for _, e := range entries {
		trades = append(trades, dto.NewTradeOutput(e))
	}

	return SuccessResponse(c, trades)
}

// GetQuote looks up a symbol
// GET /api/user/quote?symbol=
func (h *UserHandler) GetQuote(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), quoteTimeout)
	defer cancel()

	quote, err := h.trading.Quote(ctx, c.QueryParam("symbol"))
	if err != nil {
		return FailureResponse(c, err)
	}

	return SuccessResponse(c, dto.NewQuoteOutput(quote))
}

// Buy purchases shares
// POST /api/user/buy
func (h *UserHandler) Buy(c echo.Context) error {
	return h.trade(c, h.trading.Buy)
}

// Sell sells shares
// POST /api/user/sell
func (h *UserHandler) Sell(c echo.Context) error {
	return h.trade(c, h.trading.Sell)
}

type tradeFunc func(ctx context.Context, userID uuid.UUID, symbol string, shares int64) (*domain.TradeResult, error)

func (h *UserHandler) trade(c echo.Context, execute tradeFunc) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	var req dto.TradeRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	shares, err := domain.ParseShares(string(req.Shares))
	if err != nil {
		return FailureResponse(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), quoteTimeout)
	defer cancel()

	result, err := execute(ctx, userID, req.Symbol, shares)
	if err != nil {
		return FailureResponse(c, err)
	}

	// The trade is committed; nothing below may turn it into an error.
	return SuccessMessageResponse(c, result.Entry.Side()+" executed", dto.TradeResultOutput{
		Trade: dto.NewTradeOutput(result.Entry),
		Cash:  dto.Amount(result.Cash),
	})
}

// ChangePassword replaces the user's password
// POST /api/user/password
func (h *UserHandler) ChangePassword(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	var req dto.ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.accounts.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword, req.Confirmation); err != nil {
		return FailureResponse(c, err)
	}

	return SuccessMessageResponse(c, "Password changed", nil)
}
