package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuracoin/ledger-engine/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var (
	t0      = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	bitcoin = model.Asset{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", CurrentPrice: d("45000")}
	eth     = model.Asset{ID: "ethereum", Symbol: "ETH", Name: "Ethereum", CurrentPrice: d("2500")}
	tol     = d("0.00000001")
)

func TestApplyBuy_NewHolding(t *testing.T) {
	l := New()
	h, err := l.ApplyBuy(bitcoin, d("0.01"), d("45000"), t0)
	require.NoError(t, err)

	assert.Equal(t, "bitcoin", h.AssetID)
	assert.Equal(t, "BTC", h.AssetSymbol)
	assert.True(t, h.Amount.Equal(d("0.01")))
	assert.True(t, h.AverageBuyPrice.Equal(d("45000")))
	assert.True(t, h.TotalInvested.Equal(d("450")))
	assert.True(t, h.CurrentValue.Equal(d("450")))
	assert.True(t, h.ProfitLoss.IsZero())
	assert.Equal(t, 1, l.Len())
}

func TestApplyBuy_WeightedAverage(t *testing.T) {
	l := New()
	_, err := l.ApplyBuy(bitcoin, d("0.01"), d("45000"), t0)
	require.NoError(t, err)

	h, err := l.ApplyBuy(bitcoin, d("0.01"), d("50000"), t0)
	require.NoError(t, err)

	assert.True(t, h.Amount.Equal(d("0.02")))
	assert.True(t, h.TotalInvested.Equal(d("950")), "invested %s", h.TotalInvested)
	assert.True(t, h.AverageBuyPrice.Equal(d("47500")), "avg %s", h.AverageBuyPrice)
	assert.Equal(t, 1, l.Len())
}

func TestApplyBuy_UsesTradePriceNotMarketPrice(t *testing.T) {
	l := New()
	quote := bitcoin
	quote.CurrentPrice = d("60000")

	h, err := l.ApplyBuy(quote, d("1"), d("40000"), t0)
	require.NoError(t, err)

	assert.True(t, h.TotalInvested.Equal(d("40000")))
	assert.True(t, h.AverageBuyPrice.Equal(d("40000")))
	assert.True(t, h.CurrentPrice.Equal(d("60000")))
	assert.True(t, h.ProfitLoss.Equal(d("20000")))
	assert.True(t, h.ProfitLossPercent.Equal(d("50")))
}

func TestApplyBuy_SequenceKeepsCostBasisConsistent(t *testing.T) {
	buys := []struct{ qty, price string }{
		{"0.5", "41000"},
		{"0.013", "43500.75"},
		{"1.2", "39999.99"},
		{"0.0007", "52000"},
		{"3", "47123.456"},
	}

	l := New()
	sum := decimal.Zero
	for _, b := range buys {
		_, err := l.ApplyBuy(bitcoin, d(b.qty), d(b.price), t0)
		require.NoError(t, err)
		sum = sum.Add(d(b.qty).Mul(d(b.price)))
	}

	h, ok := l.Holding("bitcoin")
	require.True(t, ok)
	assert.True(t, h.TotalInvested.Equal(sum), "invested %s want %s", h.TotalInvested, sum)
	assert.True(t, h.AverageBuyPrice.Mul(h.Amount).Sub(h.TotalInvested).Abs().LessThan(tol),
		"avg×amount %s invested %s", h.AverageBuyPrice.Mul(h.Amount), h.TotalInvested)
}

func TestApplyBuy_RejectsNonPositiveQuantity(t *testing.T) {
	l := New()
	_, err := l.ApplyBuy(bitcoin, decimal.Zero, d("1"), t0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, 0, l.Len())
}

func TestApplySell_FullAmountRemovesHolding(t *testing.T) {
	l := New()
	_, err := l.ApplyBuy(bitcoin, d("0.01"), d("45000"), t0)
	require.NoError(t, err)

	res, err := l.ApplySell("bitcoin", d("0.01"), d("50000"), t0)
	require.NoError(t, err)

	assert.Nil(t, res.Holding)
	assert.True(t, res.RealizedPnL.Equal(d("50")), "pnl %s", res.RealizedPnL)
	assert.True(t, res.CostBasisReleased.Equal(d("450")))
	_, ok := l.Holding("bitcoin")
	assert.False(t, ok)
	assert.Equal(t, 0, l.Len())
}

func TestApplySell_PartialIsProRata(t *testing.T) {
	l := New()
	_, err := l.ApplyBuy(bitcoin, d("0.02"), d("47500"), t0)
	require.NoError(t, err)

	res, err := l.ApplySell("bitcoin", d("0.005"), d("50000"), t0)
	require.NoError(t, err)
	require.NotNil(t, res.Holding)

	h := *res.Holding
	assert.True(t, h.Amount.Equal(d("0.015")))
	assert.True(t, h.TotalInvested.Equal(d("712.5")), "invested %s", h.TotalInvested)
	assert.True(t, h.AverageBuyPrice.Equal(d("47500")))
	assert.True(t, res.CostBasisReleased.Equal(d("237.5")))
	assert.True(t, res.RealizedPnL.Equal(d("12.5")))
}

func TestApplySell_InsufficientHoldingLeavesStateUntouched(t *testing.T) {
	l := New()
	_, err := l.ApplyBuy(bitcoin, d("0.01"), d("45000"), t0)
	require.NoError(t, err)
	before := l.Holdings()

	_, err = l.ApplySell("bitcoin", d("0.011"), d("45000"), t0)
	require.ErrorIs(t, err, ErrInsufficientHolding)

	_, err = l.ApplySell("ethereum", d("1"), d("2000"), t0)
	require.ErrorIs(t, err, ErrInsufficientHolding)

	assert.Equal(t, before, l.Holdings())
}

func TestRevalue_IsIdempotent(t *testing.T) {
	l := New()
	_, err := l.ApplyBuy(bitcoin, d("0.5"), d("40000"), t0)
	require.NoError(t, err)
	_, err = l.ApplyBuy(eth, d("2"), d("2500"), t0)
	require.NoError(t, err)

	prices := map[string]decimal.Decimal{"bitcoin": d("44000"), "ethereum": d("2000")}

	assert.Equal(t, 2, l.Revalue(prices, t0))
	first := l.Holdings()
	assert.Equal(t, 2, l.Revalue(prices, t0))
	assert.Equal(t, first, l.Holdings())

	btc, _ := l.Holding("bitcoin")
	assert.True(t, btc.CurrentValue.Equal(d("22000")))
	assert.True(t, btc.ProfitLoss.Equal(d("2000")))
	assert.True(t, btc.ProfitLossPercent.Equal(d("10")))
}

func TestRevalue_SkipsUnknownAssets(t *testing.T) {
	l := New()
	_, err := l.ApplyBuy(bitcoin, d("1"), d("45000"), t0)
	require.NoError(t, err)

	n := l.Revalue(map[string]decimal.Decimal{"dogecoin": d("0.1")}, t0)
	assert.Equal(t, 0, n)
	h, _ := l.Holding("bitcoin")
	assert.True(t, h.CurrentPrice.Equal(d("45000")))
}

func TestSummarize(t *testing.T) {
	l := New()
	assert.Equal(t, 0, l.Summarize().TotalHoldings)
	assert.Nil(t, l.Summarize().BestPerformer)

	_, err := l.ApplyBuy(bitcoin, d("1"), d("40000"), t0)
	require.NoError(t, err)
	_, err = l.ApplyBuy(eth, d("10"), d("2500"), t0)
	require.NoError(t, err)
	l.Revalue(map[string]decimal.Decimal{"bitcoin": d("44000"), "ethereum": d("2000")}, t0)

	s := l.Summarize()
	assert.Equal(t, 2, s.TotalHoldings)
	assert.True(t, s.TotalValue.Equal(d("64000")))
	assert.True(t, s.TotalInvested.Equal(d("65000")))
	assert.True(t, s.TotalProfitLoss.Equal(d("-1000")))
	require.NotNil(t, s.BestPerformer)
	require.NotNil(t, s.WorstPerformer)
	assert.Equal(t, "bitcoin", s.BestPerformer.AssetID)
	assert.Equal(t, "ethereum", s.WorstPerformer.AssetID)
}

func TestSummarize_TracksMutations(t *testing.T) {
	l := New()
	_, err := l.ApplyBuy(bitcoin, d("1"), d("45000"), t0)
	require.NoError(t, err)
	assert.True(t, l.Summarize().TotalInvested.Equal(d("45000")))

	_, err = l.ApplySell("bitcoin", d("0.5"), d("45000"), t0)
	require.NoError(t, err)
	assert.True(t, l.Summarize().TotalInvested.Equal(d("22500")))

	_, err = l.ApplySell("bitcoin", d("0.5"), d("45000"), t0)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Summarize().TotalHoldings)
	assert.True(t, l.Summarize().TotalInvested.IsZero())
}

func TestFromSnapshot_DropsZeroRows(t *testing.T) {
	l := FromSnapshot([]model.Holding{
		{AssetID: "bitcoin", Amount: d("1")},
		{AssetID: "ethereum", Amount: decimal.Zero},
	})
	assert.Equal(t, 1, l.Len())
}

func TestClone_IsIndependent(t *testing.T) {
	l := New()
	_, err := l.ApplyBuy(bitcoin, d("1"), d("45000"), t0)
	require.NoError(t, err)

	c := l.Clone()
	_, err = c.ApplySell("bitcoin", d("1"), d("45000"), t0)
	require.NoError(t, err)

	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 0, c.Len())
}
