package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neuracoin/ledger-engine/internal/account"
	"github.com/neuracoin/ledger-engine/internal/market"
	"github.com/neuracoin/ledger-engine/internal/metrics"
	"github.com/neuracoin/ledger-engine/internal/model"
	"github.com/neuracoin/ledger-engine/internal/portfolio"
	"github.com/neuracoin/ledger-engine/internal/wallet"
)

var (
	ErrInvalidUser     = errors.New("trade: user id is required")
	ErrInvalidAsset    = errors.New("trade: asset id is required")
	ErrInvalidQuantity = errors.New("trade: quantity must be positive")
	ErrInvalidPrice    = errors.New("trade: price must be positive")
	ErrInvalidAmount   = errors.New("trade: amount must be positive")
	ErrInvalidReward   = errors.New("trade: unknown reward kind")

	// ErrAccountNotFound is returned for users without an open session.
	ErrAccountNotFound = errors.New("trade: account not found")

	// ErrPersistence wraps storage failures. The account is left exactly as
	// it was before the operation, both durably and in memory.
	ErrPersistence = errors.New("trade: persistence failed")

	ErrInsufficientFunds   = wallet.ErrInsufficientFunds
	ErrInsufficientHolding = portfolio.ErrInsufficientHolding
	ErrAssetNotFound       = market.ErrAssetNotFound
)

// MarketData is the market source the orchestrator prices trades with.
type MarketData interface {
	ListTop(ctx context.Context) []model.Asset
	Lookup(ctx context.Context, id string) (model.Asset, error)
	GetPrices(ctx context.Context, ids []string) map[string]decimal.Decimal
}

// Config holds the ledger economics.
type Config struct {
	FeeRate         decimal.Decimal
	WelcomeBonus    decimal.Decimal
	DailyLoginBonus decimal.Decimal
	// TradingReward is credited after every buy; zero disables it.
	TradingReward decimal.Decimal
	// HistoryLimit bounds stored valuation points; zero means unbounded.
	HistoryLimit int
	Now          func() time.Time
	Logger       *slog.Logger
}

// DefaultConfig returns the standard economics: 0.1% fee, 1000 NC welcome
// bonus, 50 NC daily login bonus and 50 NC trading reward.
func DefaultConfig() Config {
	return Config{
		FeeRate:         decimal.RequireFromString("0.001"),
		WelcomeBonus:    decimal.NewFromInt(1000),
		DailyLoginBonus: decimal.NewFromInt(50),
		TradingReward:   decimal.NewFromInt(50),
		HistoryLimit:    720,
	}
}

// Receipt is the outcome of a successful trade.
type Receipt struct {
	Event   model.Event    `json:"event"`
	Reward  *model.Event   `json:"reward,omitempty"`
	Wallet  model.Wallet   `json:"wallet"`
	Holding *model.Holding `json:"holding,omitempty"`
}

// Session is the outcome of OpenSession.
type Session struct {
	Created bool          `json:"created"`
	Wallet  model.Wallet  `json:"wallet"`
	Rewards []model.Event `json:"rewards"`
}

// PortfolioView is the holdings of a user with their aggregate.
type PortfolioView struct {
	Holdings []model.Holding        `json:"holdings"`
	Summary  model.PortfolioSummary `json:"summary"`
}

// Orchestrator is the only writer of accounts. Every mutation for a user
// runs under that user's lock on a staged clone: the clone is persisted in
// one commit and only then replaces the live account.
type Orchestrator struct {
	repo   *account.Repository
	market MarketData
	hub    *WSHub // optional
	cfg    Config
	logger *slog.Logger

	locks *userLocks

	mu       sync.RWMutex
	sessions map[string]*account.Account
}

// NewOrchestrator creates an orchestrator. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewOrchestrator(repo *account.Repository, md MarketData, hub *WSHub, cfg Config) *Orchestrator {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		repo:     repo,
		market:   md,
		hub:      hub,
		cfg:      cfg,
		logger:   logger,
		locks:    newUserLocks(),
		sessions: make(map[string]*account.Account),
	}
}

// OpenSession loads or creates the account of userID. A new account is
// credited the welcome bonus; an existing one the daily login bonus on the
// first session of each UTC day.
func (o *Orchestrator) OpenSession(ctx context.Context, userID string) (Session, error) {
	if userID == "" {
		return Session{}, ErrInvalidUser
	}
	unlock := o.locks.lock(userID)
	defer unlock()

	now := o.cfg.Now()
	acc, err := o.load(ctx, userID)
	created := errors.Is(err, ErrAccountNotFound)
	switch {
	case created:
		acc = account.New(userID, now)
	case err != nil:
		return Session{}, err
	}

	staged := acc.Clone()
	var rewards []model.Event
	switch {
	case created:
		if o.cfg.WelcomeBonus.IsPositive() {
			rewards = append(rewards, o.credit(staged, model.RewardWelcome, o.cfg.WelcomeBonus, now))
		}
		staged.LastLogin = now
	case !sameDay(staged.LastLogin, now):
		if o.cfg.DailyLoginBonus.IsPositive() {
			rewards = append(rewards, o.credit(staged, model.RewardDailyLogin, o.cfg.DailyLoginBonus, now))
		}
		staged.LastLogin = now
	}

	if created || !staged.LastLogin.Equal(acc.LastLogin) {
		if err := o.commit(ctx, "session", staged); err != nil {
			return Session{}, err
		}
	}

	for _, r := range rewards {
		metrics.RewardsTotal.WithLabelValues(string(r.RewardKind)).Inc()
	}
	o.logger.Info("session opened",
		"user", userID,
		"created", created,
		"rewards", len(rewards),
		"balance", staged.Wallet.Balance().String(),
	)
	o.broadcastRewards(userID, rewards, staged.Wallet.Balance())

	if rewards == nil {
		rewards = []model.Event{}
	}
	return Session{Created: created, Wallet: staged.Wallet.Snapshot(), Rewards: rewards}, nil
}

// Buy debits quantity × unitPrice plus fee and adds quantity to the holding.
func (o *Orchestrator) Buy(ctx context.Context, userID, assetID string, quantity, unitPrice decimal.Decimal) (Receipt, error) {
	start := time.Now()
	side := string(model.EventBuy)

	if err := validateTrade(userID, assetID, quantity, unitPrice); err != nil {
		return Receipt{}, o.reject(side, err)
	}
	asset, err := o.market.Lookup(ctx, assetID)
	if err != nil {
		return Receipt{}, o.reject(side, err)
	}

	unlock := o.locks.lock(userID)
	defer unlock()

	acc, err := o.load(ctx, userID)
	if err != nil {
		return Receipt{}, o.reject(side, err)
	}

	notional := quantity.Mul(unitPrice)
	fee := notional.Mul(o.cfg.FeeRate)
	total := notional.Add(fee)
	if !acc.Wallet.CanAfford(total) {
		return Receipt{}, o.reject(side, ErrInsufficientFunds)
	}

	now := o.cfg.Now()
	staged := acc.Clone()
	if err := staged.Wallet.Debit(total, now); err != nil {
		return Receipt{}, o.reject(side, err)
	}
	holding, err := staged.Portfolio.ApplyBuy(asset, quantity, unitPrice, now)
	if err != nil {
		return Receipt{}, o.reject(side, err)
	}

	ev := model.Event{
		ID:          model.NewID("tx"),
		UserID:      userID,
		Type:        model.EventBuy,
		AssetID:     asset.ID,
		AssetSymbol: asset.Symbol,
		AssetName:   asset.Name,
		AssetImage:  asset.Image,
		Amount:      quantity,
		Price:       unitPrice,
		Notional:    notional,
		Fee:         fee,
		TotalCost:   total,
		RealizedPnL: decimal.Zero,
		Status:      model.StatusCompleted,
		Description: fmt.Sprintf("Bought %s %s", quantity.String(), asset.Symbol),
		Timestamp:   now,
	}
	staged.Journal.Append(ev)

	var reward *model.Event
	if o.cfg.TradingReward.IsPositive() {
		r := o.credit(staged, model.RewardTrading, o.cfg.TradingReward, now)
		reward = &r
	}

	if err := o.commit(ctx, side, staged); err != nil {
		return Receipt{}, err
	}

	metrics.TradesTotal.WithLabelValues(side).Inc()
	metrics.TradeLatency.WithLabelValues(side).Observe(time.Since(start).Seconds())
	if reward != nil {
		metrics.RewardsTotal.WithLabelValues(string(model.RewardTrading)).Inc()
	}

	o.logger.Info("trade executed",
		"trade_id", ev.ID,
		"user", userID,
		"side", side,
		"asset", asset.ID,
		"qty", quantity.String(),
		"price", unitPrice.String(),
		"fee", fee.String(),
		"total", total.String(),
		"balance", staged.Wallet.Balance().String(),
	)
	o.broadcastTrade(ev, staged.Wallet.Balance())
	if reward != nil {
		o.broadcastRewards(userID, []model.Event{*reward}, staged.Wallet.Balance())
	}

	return Receipt{Event: ev, Reward: reward, Wallet: staged.Wallet.Snapshot(), Holding: &holding}, nil
}

// Sell credits quantity × unitPrice minus fee and reduces the holding.
func (o *Orchestrator) Sell(ctx context.Context, userID, assetID string, quantity, unitPrice decimal.Decimal) (Receipt, error) {
	start := time.Now()
	side := string(model.EventSell)

	if err := validateTrade(userID, assetID, quantity, unitPrice); err != nil {
		return Receipt{}, o.reject(side, err)
	}
	asset, err := o.market.Lookup(ctx, assetID)
	if err != nil {
		return Receipt{}, o.reject(side, err)
	}

	unlock := o.locks.lock(userID)
	defer unlock()

	acc, err := o.load(ctx, userID)
	if err != nil {
		return Receipt{}, o.reject(side, err)
	}
	if h, ok := acc.Portfolio.Holding(assetID); !ok || h.Amount.LessThan(quantity) {
		return Receipt{}, o.reject(side, ErrInsufficientHolding)
	}

	notional := quantity.Mul(unitPrice)
	fee := notional.Mul(o.cfg.FeeRate)
	proceeds := notional.Sub(fee)

	now := o.cfg.Now()
	staged := acc.Clone()
	res, err := staged.Portfolio.ApplySell(assetID, quantity, unitPrice, now)
	if err != nil {
		return Receipt{}, o.reject(side, err)
	}
	if proceeds.IsPositive() {
		if err := staged.Wallet.Credit(proceeds, now); err != nil {
			return Receipt{}, o.reject(side, err)
		}
	}

	ev := model.Event{
		ID:          model.NewID("tx"),
		UserID:      userID,
		Type:        model.EventSell,
		AssetID:     asset.ID,
		AssetSymbol: asset.Symbol,
		AssetName:   asset.Name,
		AssetImage:  asset.Image,
		Amount:      quantity,
		Price:       unitPrice,
		Notional:    notional,
		Fee:         fee,
		TotalCost:   proceeds,
		RealizedPnL: res.RealizedPnL,
		Status:      model.StatusCompleted,
		Description: fmt.Sprintf("Sold %s %s", quantity.String(), asset.Symbol),
		Timestamp:   now,
	}
	staged.Journal.Append(ev)

	if err := o.commit(ctx, side, staged); err != nil {
		return Receipt{}, err
	}

	metrics.TradesTotal.WithLabelValues(side).Inc()
	metrics.TradeLatency.WithLabelValues(side).Observe(time.Since(start).Seconds())

	o.logger.Info("trade executed",
		"trade_id", ev.ID,
		"user", userID,
		"side", side,
		"asset", asset.ID,
		"qty", quantity.String(),
		"price", unitPrice.String(),
		"fee", fee.String(),
		"proceeds", proceeds.String(),
		"realized_pnl", res.RealizedPnL.String(),
		"balance", staged.Wallet.Balance().String(),
	)
	o.broadcastTrade(ev, staged.Wallet.Balance())

	return Receipt{Event: ev, Wallet: staged.Wallet.Snapshot(), Holding: res.Holding}, nil
}

// Reward credits amount to the wallet of userID and records a reward event.
func (o *Orchestrator) Reward(ctx context.Context, userID string, kind model.RewardKind, amount decimal.Decimal) (Receipt, error) {
	switch {
	case userID == "":
		return Receipt{}, ErrInvalidUser
	case !kind.Valid():
		return Receipt{}, ErrInvalidReward
	case !amount.IsPositive():
		return Receipt{}, ErrInvalidAmount
	}

	unlock := o.locks.lock(userID)
	defer unlock()

	acc, err := o.load(ctx, userID)
	if err != nil {
		return Receipt{}, err
	}
	staged := acc.Clone()
	ev := o.credit(staged, kind, amount, o.cfg.Now())

	if err := o.commit(ctx, "reward", staged); err != nil {
		return Receipt{}, err
	}
	metrics.RewardsTotal.WithLabelValues(string(kind)).Inc()

	o.logger.Info("reward credited", "user", userID, "kind", kind, "amount", amount.String())
	o.broadcastRewards(userID, []model.Event{ev}, staged.Wallet.Balance())
	return Receipt{Event: ev, Wallet: staged.Wallet.Snapshot()}, nil
}

// Revalue marks the holdings of userID to prices and appends a history
// point. Assets missing from prices keep their last price.
func (o *Orchestrator) Revalue(ctx context.Context, userID string, prices map[string]decimal.Decimal) (model.PortfolioSummary, error) {
	unlock := o.locks.lock(userID)
	defer unlock()

	acc, err := o.load(ctx, userID)
	if err != nil {
		return model.PortfolioSummary{}, err
	}
	if acc.Portfolio.Len() == 0 {
		return acc.Portfolio.Summarize(), nil
	}

	now := o.cfg.Now()
	staged := acc.Clone()
	staged.Portfolio.Revalue(prices, now)
	sum := staged.Portfolio.Summarize()
	staged.AppendHistory(model.HistoryPoint{
		Date:              now,
		TotalValue:        sum.TotalValue,
		TotalInvested:     sum.TotalInvested,
		ProfitLoss:        sum.TotalProfitLoss,
		ProfitLossPercent: sum.TotalProfitLossPercent,
	}, o.cfg.HistoryLimit)

	if err := o.commit(ctx, "revalue", staged); err != nil {
		return model.PortfolioSummary{}, err
	}
	return sum, nil
}

// Reset deletes every stored document of userID and drops the session.
func (o *Orchestrator) Reset(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUser
	}
	unlock := o.locks.lock(userID)
	defer unlock()

	if err := o.repo.Remove(ctx, userID); err != nil {
		metrics.PersistenceFailures.WithLabelValues("reset").Inc()
		o.logger.Error("account reset failed", "user", userID, "err", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	o.mu.Lock()
	delete(o.sessions, userID)
	metrics.OpenSessions.Set(float64(len(o.sessions)))
	o.mu.Unlock()

	o.logger.Info("account reset", "user", userID)
	return nil
}

// --- Read views ---

func (o *Orchestrator) Wallet(ctx context.Context, userID string) (model.Wallet, error) {
	acc, err := o.view(ctx, userID)
	if err != nil {
		return model.Wallet{}, err
	}
	return acc.Wallet.Snapshot(), nil
}

func (o *Orchestrator) Portfolio(ctx context.Context, userID string) (PortfolioView, error) {
	acc, err := o.view(ctx, userID)
	if err != nil {
		return PortfolioView{}, err
	}
	return PortfolioView{Holdings: acc.Portfolio.Holdings(), Summary: acc.Portfolio.Summarize()}, nil
}

// Transactions returns the wallet history, newest first.
func (o *Orchestrator) Transactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	acc, err := o.view(ctx, userID)
	if err != nil {
		return nil, err
	}
	return acc.Journal.Transactions(), nil
}

// Orders returns the trading history, newest first.
func (o *Orchestrator) Orders(ctx context.Context, userID string) ([]model.Order, error) {
	acc, err := o.view(ctx, userID)
	if err != nil {
		return nil, err
	}
	return acc.Journal.Orders(), nil
}

// History returns valuation points, oldest first.
func (o *Orchestrator) History(ctx context.Context, userID string) ([]model.HistoryPoint, error) {
	acc, err := o.view(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.HistoryPoint, len(acc.History))
	copy(out, acc.History)
	return out, nil
}

// SessionIDs returns the users with an account in memory, sorted.
func (o *Orchestrator) SessionIDs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := make([]string, 0, len(o.sessions))
	for id := range o.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HeldAssetIDs returns every asset id held by an in-memory account.
func (o *Orchestrator) HeldAssetIDs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, acc := range o.sessions {
		for _, h := range acc.Portfolio.Holdings() {
			seen[h.AssetID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// --- internals ---

// view returns the published account of userID. Published accounts are
// never mutated, so readers need no user lock on a hit.
func (o *Orchestrator) view(ctx context.Context, userID string) (*account.Account, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	o.mu.RLock()
	acc, ok := o.sessions[userID]
	o.mu.RUnlock()
	if ok {
		return acc, nil
	}

	unlock := o.locks.lock(userID)
	defer unlock()
	return o.load(ctx, userID)
}

// load returns the account of userID from memory or storage. The caller
// must hold the user lock.
func (o *Orchestrator) load(ctx context.Context, userID string) (*account.Account, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	o.mu.RLock()
	acc, ok := o.sessions[userID]
	o.mu.RUnlock()
	if ok {
		return acc, nil
	}

	acc, err := o.repo.Load(ctx, userID)
	if errors.Is(err, account.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		o.logger.Error("account load failed", "user", userID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	o.publish(acc)
	return acc, nil
}

// commit persists staged and publishes it. On failure the live account is
// left untouched.
func (o *Orchestrator) commit(ctx context.Context, op string, staged *account.Account) error {
	if err := o.repo.Save(ctx, staged); err != nil {
		metrics.PersistenceFailures.WithLabelValues(op).Inc()
		o.logger.Error("account save failed, changes discarded",
			"user", staged.UserID, "op", op, "err", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	o.publish(staged)
	return nil
}

func (o *Orchestrator) publish(acc *account.Account) {
	o.mu.Lock()
	o.sessions[acc.UserID] = acc
	metrics.OpenSessions.Set(float64(len(o.sessions)))
	o.mu.Unlock()
}

// credit applies a reward to staged and journals it.
func (o *Orchestrator) credit(staged *account.Account, kind model.RewardKind, amount decimal.Decimal, at time.Time) model.Event {
	// amount is positive at every call site.
	_ = staged.Wallet.Credit(amount, at)
	ev := model.Event{
		ID:          model.NewID("reward"),
		UserID:      staged.UserID,
		Type:        model.EventReward,
		RewardKind:  kind,
		Amount:      amount,
		Price:       decimal.Zero,
		Notional:    decimal.Zero,
		Fee:         decimal.Zero,
		TotalCost:   amount,
		RealizedPnL: decimal.Zero,
		Status:      model.StatusCompleted,
		Description: rewardDescription(kind, amount),
		Timestamp:   at,
	}
	staged.Journal.Append(ev)
	return ev
}

func (o *Orchestrator) reject(side string, err error) error {
	metrics.TradeRejections.WithLabelValues(side, rejectReason(err)).Inc()
	o.logger.Debug("trade rejected", "side", side, "err", err)
	return err
}

func (o *Orchestrator) broadcastTrade(ev model.Event, balance decimal.Decimal) {
	if o.hub == nil {
		return
	}
	o.hub.Broadcast(WSMessage{
		Type:     MsgTradeExecuted,
		UserID:   ev.UserID,
		AssetID:  ev.AssetID,
		Side:     string(ev.Type),
		Quantity: ev.Amount.String(),
		Price:    ev.Price.String(),
		Balance:  balance.String(),
	})
}

func (o *Orchestrator) broadcastRewards(userID string, rewards []model.Event, balance decimal.Decimal) {
	if o.hub == nil {
		return
	}
	for _, r := range rewards {
		o.hub.Broadcast(WSMessage{
			Type:    MsgRewardCredited,
			UserID:  userID,
			Reward:  string(r.RewardKind),
			Amount:  r.Amount.String(),
			Balance: balance.String(),
		})
	}
}

func validateTrade(userID, assetID string, quantity, unitPrice decimal.Decimal) error {
	switch {
	case userID == "":
		return ErrInvalidUser
	case assetID == "":
		return ErrInvalidAsset
	case !quantity.IsPositive():
		return ErrInvalidQuantity
	case !unitPrice.IsPositive():
		return ErrInvalidPrice
	}
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientHolding):
		return "insufficient_holding"
	case errors.Is(err, ErrAssetNotFound):
		return "asset_not_found"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "invalid_input"
	}
}

func rewardDescription(kind model.RewardKind, amount decimal.Decimal) string {
	switch kind {
	case model.RewardWelcome:
		return fmt.Sprintf("Welcome bonus: %s NeuraCoins for joining", amount.String())
	case model.RewardDailyLogin:
		return fmt.Sprintf("Daily login bonus: %s NeuraCoins", amount.String())
	case model.RewardTrading:
		return fmt.Sprintf("Trading reward: %s NeuraCoins for completing a trade", amount.String())
	default:
		return fmt.Sprintf("Reward: %s NeuraCoins", amount.String())
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
