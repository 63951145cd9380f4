package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
)

// IEXQuoteClient looks up stock quotes from an IEX Cloud compatible API
type IEXQuoteClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
}

// NewIEXQuoteClient creates a quote client. timeout bounds every lookup.
func NewIEXQuoteClient(baseURL, apiKey string, timeout time.Duration) *IEXQuoteClient {
	return &IEXQuoteClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
	}
}

// iexQuote is the subset of the IEX quote payload we read
type iexQuote struct {
	Symbol      string           `json:"symbol"`
	CompanyName string           `json:"companyName"`
	LatestPrice *decimal.Decimal `json:"latestPrice"`
}

// Lookup fetches the latest price for symbol
func (c *IEXQuoteClient) Lookup(ctx context.Context, symbol string) (*domain.Quote, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: no symbol entered", domain.ErrUnknownSymbol)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/stock/%s/quote?token=%s", c.baseURL, url.PathEscape(symbol), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch quote for %s: %v", domain.ErrQuoteUnavailable, symbol, redact(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", domain.ErrQuoteUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
	case resp.StatusCode != http.StatusOK:
		log.Printf("[WARN] Quote API error for %s: status=%d", symbol, resp.StatusCode)
		return nil, fmt.Errorf("%w: quote API status %d", domain.ErrQuoteUnavailable, resp.StatusCode)
	}

	var payload iexQuote
	if err := json.Unmarshal(body, &payload); err != nil {
		// A proxy error page or a truncated body says nothing about the symbol
		log.Printf("[WARN] Unreadable quote response for %s: %v", symbol, err)
		return nil, fmt.Errorf("%w: unreadable quote for %s: %v", domain.ErrQuoteUnavailable, symbol, err)
	}
	if payload.LatestPrice == nil || !payload.LatestPrice.IsPositive() {
		return nil, fmt.Errorf("%w: %s has no price", domain.ErrUnknownSymbol, symbol)
	}

	quote := &domain.Quote{
		Symbol: domain.NormalizeSymbol(payload.Symbol),
		Name:   payload.CompanyName,
		Price:  domain.RoundPrice(*payload.LatestPrice),
	}
	if quote.Symbol == "" {
		quote.Symbol = symbol
	}

	return quote, nil
}

// redact strips the query string, which carries the API token, from URL errors
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if u, perr := url.Parse(urlErr.URL); perr == nil {
			u.RawQuery = ""
			return &url.Error{Op: urlErr.Op, URL: u.String(), Err: urlErr.Err}
		}
	}
	return err
}

var _ domain.QuoteProvider = (*IEXQuoteClient)(nil)
