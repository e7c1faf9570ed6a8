// Package model defines the core domain types shared across the ledger engine.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType discriminates journal events.
type EventType string

const (
	EventBuy    EventType = "buy"
	EventSell   EventType = "sell"
	EventReward EventType = "reward"
)

// RewardKind names why a reward was credited.
type RewardKind string

const (
	RewardWelcome    RewardKind = "welcome_bonus"
	RewardDailyLogin RewardKind = "daily_login"
	RewardTrading    RewardKind = "trading"
	RewardReferral   RewardKind = "referral"
)

// Valid reports whether k is a known reward kind.
func (k RewardKind) Valid() bool {
	switch k {
	case RewardWelcome, RewardDailyLogin, RewardTrading, RewardReferral:
		return true
	}
	return false
}

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Wallet is a user's simulated cash balance and its lifetime flow.
// TotalEarned and TotalSpent only ever grow.
type Wallet struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Balance     decimal.Decimal `json:"balance"`
	TotalEarned decimal.Decimal `json:"total_earned"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	CreatedAt   time.Time       `json:"created_at"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Holding is one asset position. TotalInvested == Amount × AverageBuyPrice
// by construction; CurrentValue, ProfitLoss and ProfitLossPercent are derived.
type Holding struct {
	ID                string          `json:"id"`
	AssetID           string          `json:"asset_id"`
	AssetName         string          `json:"asset_name"`
	AssetSymbol       string          `json:"asset_symbol"`
	AssetImage        string          `json:"asset_image,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	AverageBuyPrice   decimal.Decimal `json:"average_buy_price"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	TotalInvested     decimal.Decimal `json:"total_invested"`
	CurrentValue      decimal.Decimal `json:"current_value"`
	ProfitLoss        decimal.Decimal `json:"profit_loss"`
	ProfitLossPercent decimal.Decimal `json:"profit_loss_percent"`
	LastUpdated       time.Time       `json:"last_updated"`
}

// Event is an immutable journal record. Once created, events are never
// modified or deleted. TotalCost is the absolute effect on the balance:
// spent (notional + fee) on buy, received on sell and reward.
type Event struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        EventType       `json:"type"`
	RewardKind  RewardKind      `json:"reward_kind,omitempty"`
	AssetID     string          `json:"asset_id,omitempty"`
	AssetSymbol string          `json:"asset_symbol,omitempty"`
	AssetName   string          `json:"asset_name,omitempty"`
	AssetImage  string          `json:"asset_image,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Price       decimal.Decimal `json:"price"`
	Notional    decimal.Decimal `json:"notional"`
	Fee         decimal.Decimal `json:"fee"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}

// IsTrade reports whether the event is a buy or a sell.
func (e Event) IsTrade() bool {
	return e.Type == EventBuy || e.Type == EventSell
}

// Transaction is the wallet-history view of an event.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        EventType       `json:"type"`
	RewardKind  RewardKind      `json:"reward_kind,omitempty"`
	AssetID     string          `json:"asset_id,omitempty"`
	AssetSymbol string          `json:"asset_symbol,omitempty"`
	AssetName   string          `json:"asset_name,omitempty"`
	AssetImage  string          `json:"asset_image,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Price       decimal.Decimal `json:"price"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Order is the trading-history view of a buy or sell event.
type Order struct {
	ID           string          `json:"id"`
	Type         EventType       `json:"type"`
	AssetID      string          `json:"asset_id"`
	AssetSymbol  string          `json:"asset_symbol"`
	AssetName    string          `json:"asset_name"`
	Amount       decimal.Decimal `json:"amount"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	TotalValue   decimal.Decimal `json:"total_value"`
	Fee          decimal.Decimal `json:"fee"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  time.Time       `json:"completed_at"`
}

// Asset is a market quote for one tradable cryptocurrency.
type Asset struct {
	ID                    string          `json:"id"`
	Symbol                string          `json:"symbol"`
	Name                  string          `json:"name"`
	Image                 string          `json:"image"`
	CurrentPrice          decimal.Decimal `json:"current_price"`
	PriceChange24hPercent decimal.Decimal `json:"price_change_percentage_24h"`
	MarketCap             decimal.Decimal `json:"market_cap"`
	Volume                decimal.Decimal `json:"total_volume"`
}

// PortfolioSummary aggregates all holdings of a user.
type PortfolioSummary struct {
	TotalValue             decimal.Decimal `json:"total_value"`
	TotalInvested          decimal.Decimal `json:"total_invested"`
	TotalProfitLoss        decimal.Decimal `json:"total_profit_loss"`
	TotalProfitLossPercent decimal.Decimal `json:"total_profit_loss_percent"`
	BestPerformer          *Holding        `json:"best_performer"`
	WorstPerformer         *Holding        `json:"worst_performer"`
	TotalHoldings          int             `json:"total_holdings"`
}

// HistoryPoint is a periodic portfolio valuation snapshot.
type HistoryPoint struct {
	Date              time.Time       `json:"date"`
	TotalValue        decimal.Decimal `json:"total_value"`
	TotalInvested     decimal.Decimal `json:"total_invested"`
	ProfitLoss        decimal.Decimal `json:"profit_loss"`
	ProfitLossPercent decimal.Decimal `json:"profit_loss_percent"`
}
