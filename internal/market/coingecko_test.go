package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *CoinGecko {
	c := NewCoinGecko(url)
	c.Backoff = func(int) time.Duration { return time.Millisecond }
	return c
}

func TestCoinGecko_ListTop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","image":"https://img/btc.png",
			 "current_price":87267.53,"market_cap":1700000000000,"total_volume":23450000000,
			 "price_change_percentage_24h":-1.25},
			{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":2933.91,
			 "market_cap":null,"total_volume":1,"price_change_percentage_24h":null}
		]`))
	}))
	defer server.Close()

	assets, err := newTestClient(server.URL).ListTop(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, assets, 2)

	btc := assets[0]
	assert.Equal(t, "bitcoin", btc.ID)
	assert.Equal(t, "BTC", btc.Symbol)
	assert.True(t, btc.CurrentPrice.Equal(decimal.RequireFromString("87267.53")), "price %s", btc.CurrentPrice)
	assert.True(t, btc.PriceChange24hPercent.Equal(decimal.RequireFromString("-1.25")))
	assert.True(t, assets[1].MarketCap.IsZero())
}

func TestCoinGecko_GetPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))
		w.Write([]byte(`{"bitcoin":{"usd":87222.51},"ethereum":{"usd":2933.91}}`))
	}))
	defer server.Close()

	prices, err := newTestClient(server.URL).GetPrices(context.Background(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)
	assert.True(t, prices["bitcoin"].Equal(decimal.RequireFromString("87222.51")))
	assert.True(t, prices["ethereum"].Equal(decimal.RequireFromString("2933.91")))
}

func TestCoinGecko_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"bitcoin":{"usd":1}}`))
	}))
	defer server.Close()

	prices, err := newTestClient(server.URL).GetPrices(context.Background(), []string{"bitcoin"})
	require.NoError(t, err)
	assert.Len(t, prices, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCoinGecko_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ListTop(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, int32(4), calls.Load(), "one attempt plus three retries")
}

func TestCoinGecko_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	c.MaxRetries = 0
	_, err := c.GetPrices(context.Background(), []string{"bitcoin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestCoinGecko_ContextCancelStopsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewCoinGecko(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetPrices(ctx, []string{"bitcoin"})
	require.Error(t, err)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(-1))
	assert.Equal(t, time.Second, Backoff(0))
	assert.Equal(t, 2*time.Second, Backoff(1))
	assert.Equal(t, 16*time.Second, Backoff(4))
	assert.Equal(t, 30*time.Second, Backoff(5))
	assert.Equal(t, 30*time.Second, Backoff(100))
}
