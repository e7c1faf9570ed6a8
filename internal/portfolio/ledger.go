// Package portfolio is the authoritative record of what a user holds and at
// what cost basis.
//
// Cost basis follows the weighted-average method:
//   - buy:  totalInvested += qty × tradePrice, avg = totalInvested / amount
//   - sell: totalInvested is reduced pro rata, avg is carried forward
//
// A holding whose amount reaches exactly zero is removed, never kept as a
// zero row.
package portfolio

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neuracoin/ledger-engine/internal/model"
)

var (
	// ErrInsufficientHolding is returned when a sell exceeds the held amount
	// or no holding exists for the asset.
	ErrInsufficientHolding = errors.New("portfolio: insufficient holding")

	// ErrInvalidQuantity is returned for quantities <= 0.
	ErrInvalidQuantity = errors.New("portfolio: quantity must be positive")
)

var hundred = decimal.NewFromInt(100)

// Ledger holds one user's holdings in order of first purchase.
// Not safe for concurrent use.
type Ledger struct {
	holdings []model.Holding
}

func New() *Ledger {
	return &Ledger{}
}

// FromSnapshot restores a ledger from persisted holdings.
// Zero-amount rows are dropped.
func FromSnapshot(holdings []model.Holding) *Ledger {
	l := &Ledger{holdings: make([]model.Holding, 0, len(holdings))}
	for _, h := range holdings {
		if h.Amount.IsPositive() {
			l.holdings = append(l.holdings, h)
		}
	}
	return l
}

// SellResult describes the effect of a sell on the holding.
type SellResult struct {
	// Holding is the remaining position, nil when it was removed.
	Holding *model.Holding
	// CostBasisReleased is the part of totalInvested attributed to the sold quantity.
	CostBasisReleased decimal.Decimal
	// RealizedPnL is qty × (sellPrice − averageBuyPrice), before fees.
	RealizedPnL decimal.Decimal
}

// ApplyBuy adds quantity at unitPrice. The asset quote supplies identity and
// the current market price; only unitPrice feeds the cost basis.
func (l *Ledger) ApplyBuy(asset model.Asset, quantity, unitPrice decimal.Decimal, at time.Time) (model.Holding, error) {
	if !quantity.IsPositive() {
		return model.Holding{}, ErrInvalidQuantity
	}
	invested := quantity.Mul(unitPrice)

	i := l.index(asset.ID)
	if i < 0 {
		h := model.Holding{
			ID:              model.NewID("holding_" + asset.ID),
			AssetID:         asset.ID,
			AssetName:       asset.Name,
			AssetSymbol:     asset.Symbol,
			AssetImage:      asset.Image,
			Amount:          quantity,
			AverageBuyPrice: unitPrice,
			CurrentPrice:    marketOr(asset.CurrentPrice, unitPrice),
			TotalInvested:   invested,
			LastUpdated:     at,
		}
		recompute(&h)
		l.holdings = append(l.holdings, h)
		return h, nil
	}

	h := &l.holdings[i]
	h.Amount = h.Amount.Add(quantity)
	h.TotalInvested = h.TotalInvested.Add(invested)
	h.AverageBuyPrice = h.TotalInvested.Div(h.Amount)
	h.CurrentPrice = marketOr(asset.CurrentPrice, h.CurrentPrice)
	h.LastUpdated = at
	recompute(h)
	return *h, nil
}

// ApplySell removes quantity from the holding of assetID. On error nothing changes.
func (l *Ledger) ApplySell(assetID string, quantity, unitPrice decimal.Decimal, at time.Time) (SellResult, error) {
	if !quantity.IsPositive() {
		return SellResult{}, ErrInvalidQuantity
	}
	i := l.index(assetID)
	if i < 0 || l.holdings[i].Amount.LessThan(quantity) {
		return SellResult{}, ErrInsufficientHolding
	}

	h := &l.holdings[i]
	res := SellResult{
		RealizedPnL: quantity.Mul(unitPrice.Sub(h.AverageBuyPrice)),
	}

	remaining := h.Amount.Sub(quantity)
	if remaining.IsZero() {
		res.CostBasisReleased = h.TotalInvested
		l.holdings = append(l.holdings[:i], l.holdings[i+1:]...)
		return res, nil
	}

	newInvested := h.TotalInvested.Mul(remaining).Div(h.Amount)
	res.CostBasisReleased = h.TotalInvested.Sub(newInvested)

	h.Amount = remaining
	h.TotalInvested = newInvested
	h.LastUpdated = at
	recompute(h)

	left := *h
	res.Holding = &left
	return res, nil
}

// Revalue overwrites CurrentPrice for every holding present in prices and
// returns how many holdings were touched.
func (l *Ledger) Revalue(prices map[string]decimal.Decimal, at time.Time) int {
	n := 0
	for i := range l.holdings {
		p, ok := prices[l.holdings[i].AssetID]
		if !ok {
			continue
		}
		l.holdings[i].CurrentPrice = p
		l.holdings[i].LastUpdated = at
		recompute(&l.holdings[i])
		n++
	}
	return n
}

// Summarize aggregates the current holdings. It is recomputed on every call.
func (l *Ledger) Summarize() model.PortfolioSummary {
	s := model.PortfolioSummary{
		TotalValue:             decimal.Zero,
		TotalInvested:          decimal.Zero,
		TotalProfitLoss:        decimal.Zero,
		TotalProfitLossPercent: decimal.Zero,
		TotalHoldings:          len(l.holdings),
	}
	if len(l.holdings) == 0 {
		return s
	}

	for _, h := range l.holdings {
		s.TotalValue = s.TotalValue.Add(h.CurrentValue)
		s.TotalInvested = s.TotalInvested.Add(h.TotalInvested)
	}
	s.TotalProfitLoss = s.TotalValue.Sub(s.TotalInvested)
	s.TotalProfitLossPercent = percent(s.TotalProfitLoss, s.TotalInvested)

	ranked := l.Holdings()
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].ProfitLossPercent.GreaterThan(ranked[b].ProfitLossPercent)
	})
	best, worst := ranked[0], ranked[len(ranked)-1]
	s.BestPerformer = &best
	s.WorstPerformer = &worst
	return s
}

// Holding returns the holding for assetID.
func (l *Ledger) Holding(assetID string) (model.Holding, bool) {
	i := l.index(assetID)
	if i < 0 {
		return model.Holding{}, false
	}
	return l.holdings[i], true
}

// Holdings returns a copy of all holdings.
func (l *Ledger) Holdings() []model.Holding {
	out := make([]model.Holding, len(l.holdings))
	copy(out, l.holdings)
	return out
}

func (l *Ledger) Len() int {
	return len(l.holdings)
}

func (l *Ledger) Clone() *Ledger {
	return &Ledger{holdings: l.Holdings()}
}

func (l *Ledger) index(assetID string) int {
	for i := range l.holdings {
		if l.holdings[i].AssetID == assetID {
			return i
		}
	}
	return -1
}

// recompute refreshes the derived valuation fields of h.
func recompute(h *model.Holding) {
	h.CurrentValue = h.Amount.Mul(h.CurrentPrice)
	h.ProfitLoss = h.CurrentValue.Sub(h.TotalInvested)
	h.ProfitLossPercent = percent(h.ProfitLoss, h.TotalInvested)
}

func percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

func marketOr(market, fallback decimal.Decimal) decimal.Decimal {
	if market.IsPositive() {
		return market
	}
	return fallback
}
