package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neuracoin/ledger-engine/internal/model"
)

const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// Fetcher reads quotes from an upstream market data provider.
type Fetcher interface {
	// ListTop returns the top limit assets by market cap.
	ListTop(ctx context.Context, limit int) ([]model.Asset, error)
	// GetPrices returns the USD price of each id the provider knows.
	GetPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}

var _ Fetcher = (*CoinGecko)(nil)

// CoinGecko is a Fetcher for the public CoinGecko v3 API. Failed requests
// are retried MaxRetries times with exponential backoff.
type CoinGecko struct {
	BaseURL    string
	Client     *http.Client
	MaxRetries int
	// Backoff maps a retry number (0-based) to the wait before it.
	Backoff func(retry int) time.Duration
}

func NewCoinGecko(baseURL string) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &CoinGecko{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Client:     &http.Client{Timeout: 10 * time.Second},
		MaxRetries: 3,
		Backoff:    Backoff,
	}
}

type coinMarket struct {
	ID                       string          `json:"id"`
	Symbol                   string          `json:"symbol"`
	Name                     string          `json:"name"`
	Image                    string          `json:"image"`
	CurrentPrice             decimal.Decimal `json:"current_price"`
	MarketCap                decimal.Decimal `json:"market_cap"`
	TotalVolume              decimal.Decimal `json:"total_volume"`
	PriceChangePercentage24h decimal.Decimal `json:"price_change_percentage_24h"`
}

func (c *CoinGecko) ListTop(ctx context.Context, limit int) ([]model.Asset, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(limit))
	q.Set("page", "1")
	q.Set("sparkline", "false")

	var rows []coinMarket
	if err := c.getJSON(ctx, "/coins/markets?"+q.Encode(), &rows); err != nil {
		return nil, fmt.Errorf("list top: %w", err)
	}

	assets := make([]model.Asset, 0, len(rows))
	for _, r := range rows {
		if r.ID == "" {
			continue
		}
		assets = append(assets, model.Asset{
			ID:                    r.ID,
			Symbol:                strings.ToUpper(r.Symbol),
			Name:                  r.Name,
			Image:                 r.Image,
			CurrentPrice:          r.CurrentPrice,
			PriceChange24hPercent: r.PriceChangePercentage24h,
			MarketCap:             r.MarketCap,
			Volume:                r.TotalVolume,
		})
	}
	return assets, nil
}

func (c *CoinGecko) GetPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	if len(ids) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")

	var body map[string]map[string]decimal.Decimal
	if err := c.getJSON(ctx, "/simple/price?"+q.Encode(), &body); err != nil {
		return nil, fmt.Errorf("get prices: %w", err)
	}

	prices := make(map[string]decimal.Decimal, len(body))
	for id, quote := range body {
		if p, ok := quote["usd"]; ok {
			prices[id] = p
		}
	}
	return prices, nil
}

// getJSON performs a GET with retries and decodes the body into v.
func (c *CoinGecko) getJSON(ctx context.Context, path string, v any) error {
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.Backoff(attempt - 1)):
			}
		}
		lastErr = c.do(ctx, path, v)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *CoinGecko) do(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
