package market

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuracoin/ledger-engine/internal/model"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeFetcher struct {
	assets []model.Asset
	prices map[string]decimal.Decimal
	err    error
	lists  int
}

func (f *fakeFetcher) ListTop(_ context.Context, limit int) ([]model.Asset, error) {
	f.lists++
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.assets) {
		return f.assets[:limit], nil
	}
	return f.assets, nil
}

func (f *fakeFetcher) GetPrices(_ context.Context, ids []string) (map[string]decimal.Decimal, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]decimal.Decimal)
	for _, id := range ids {
		if p, ok := f.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func newService(t *testing.T, f Fetcher) *Service {
	t.Helper()
	s, err := NewService(WithFetcher(f), WithLogger(discardLogger))
	require.NoError(t, err)
	return s
}

func TestService_ListTopLive(t *testing.T) {
	f := &fakeFetcher{assets: []model.Asset{{ID: "dogecoin", Symbol: "DOGE", CurrentPrice: decimal.RequireFromString("0.1")}}}
	s := newService(t, f)

	assets := s.ListTop(context.Background())
	require.Len(t, assets, 1)
	assert.Equal(t, "dogecoin", assets[0].ID)
}

func TestService_ListTopFallsBack(t *testing.T) {
	s := newService(t, &fakeFetcher{err: errors.New("timeout")})

	assets := s.ListTop(context.Background())
	require.Len(t, assets, 5)
	assert.Equal(t, "bitcoin", assets[0].ID)
	assert.True(t, assets[0].CurrentPrice.Equal(decimal.RequireFromString("43750.21")))
}

func TestService_GetPricesFallsBackToKnownQuotes(t *testing.T) {
	f := &fakeFetcher{assets: []model.Asset{{ID: "bitcoin", CurrentPrice: decimal.NewFromInt(90000)}}}
	s := newService(t, f)
	s.ListTop(context.Background())

	f.err = errors.New("boom")
	prices := s.GetPrices(context.Background(), []string{"bitcoin", "solana", "unknowncoin"})

	assert.True(t, prices["bitcoin"].Equal(decimal.NewFromInt(90000)), "live quote kept over static")
	assert.True(t, prices["solana"].Equal(decimal.RequireFromString("95.82")))
	_, ok := prices["unknowncoin"]
	assert.False(t, ok)
}

func TestService_GetPricesUpdatesQuotes(t *testing.T) {
	f := &fakeFetcher{
		assets: []model.Asset{{ID: "bitcoin", Name: "Bitcoin", CurrentPrice: decimal.NewFromInt(1)}},
		prices: map[string]decimal.Decimal{"bitcoin": decimal.NewFromInt(2)},
	}
	s := newService(t, f)
	s.ListTop(context.Background())

	s.GetPrices(context.Background(), []string{"bitcoin"})

	a, err := s.Lookup(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin", a.Name)
	assert.True(t, a.CurrentPrice.Equal(decimal.NewFromInt(2)))
}

func TestService_Lookup(t *testing.T) {
	f := &fakeFetcher{assets: []model.Asset{{ID: "bitcoin", CurrentPrice: decimal.NewFromInt(45000)}}}
	s := newService(t, f)

	a, err := s.Lookup(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", a.ID)
	assert.Equal(t, 1, f.lists)

	_, err = s.Lookup(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 1, f.lists, "cache hit does not refetch")

	_, err = s.Lookup(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestService_LookupOnFallback(t *testing.T) {
	s := newService(t, &fakeFetcher{err: errors.New("offline")})

	a, err := s.Lookup(context.Background(), "cardano")
	require.NoError(t, err)
	assert.Equal(t, "ADA", a.Symbol)
}

func TestNewService_InvalidConfig(t *testing.T) {
	_, err := NewService(WithLogger(discardLogger))
	assert.ErrorIs(t, err, ErrInvalidServiceConfig)

	_, err = NewService(WithFetcher(&fakeFetcher{}), WithTopLimit(0))
	assert.ErrorIs(t, err, ErrInvalidServiceConfig)
}
