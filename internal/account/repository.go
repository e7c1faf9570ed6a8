package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/neuracoin/ledger-engine/internal/journal"
	"github.com/neuracoin/ledger-engine/internal/model"
	"github.com/neuracoin/ledger-engine/internal/portfolio"
	"github.com/neuracoin/ledger-engine/internal/store"
	"github.com/neuracoin/ledger-engine/internal/wallet"
)

// ErrNotFound is returned by Load when the user has no wallet.
var ErrNotFound = errors.New("account: not found")

// Storage keys, one document per entity and user.
func WalletKey(userID string) string    { return "virtual_wallet_" + userID }
func HoldingsKey(userID string) string  { return "portfolio_holdings_" + userID }
func EventsKey(userID string) string    { return "ledger_events_" + userID }
func HistoryKey(userID string) string   { return "portfolio_history_" + userID }
func LastLoginKey(userID string) string { return "last_daily_login_" + userID }

// Keys returns every storage key owned by userID.
func Keys(userID string) []string {
	return []string{
		WalletKey(userID),
		HoldingsKey(userID),
		EventsKey(userID),
		HistoryKey(userID),
		LastLoginKey(userID),
	}
}

// Repository maps accounts onto a key-value store.
type Repository struct {
	store store.Store
}

func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// Load reads the account of userID. Documents other than the wallet are
// optional and default to empty.
func (r *Repository) Load(ctx context.Context, userID string) (*Account, error) {
	var w model.Wallet
	found, err := r.get(ctx, WalletKey(userID), &w)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}

	var holdings []model.Holding
	if _, err := r.get(ctx, HoldingsKey(userID), &holdings); err != nil {
		return nil, err
	}
	var events []model.Event
	if _, err := r.get(ctx, EventsKey(userID), &events); err != nil {
		return nil, err
	}
	var history []model.HistoryPoint
	if _, err := r.get(ctx, HistoryKey(userID), &history); err != nil {
		return nil, err
	}
	var lastLogin time.Time
	if _, err := r.get(ctx, LastLoginKey(userID), &lastLogin); err != nil {
		return nil, err
	}

	return &Account{
		UserID:    userID,
		Wallet:    wallet.FromSnapshot(w),
		Portfolio: portfolio.FromSnapshot(holdings),
		Journal:   journal.FromSnapshot(events),
		History:   history,
		LastLogin: lastLogin,
	}, nil
}

// Save writes every document of a in a single atomic commit.
func (r *Repository) Save(ctx context.Context, a *Account) error {
	holdings := a.Portfolio.Holdings()
	events := a.Journal.Events()
	history := a.History
	if history == nil {
		history = []model.HistoryPoint{}
	}

	docs := []struct {
		key string
		v   any
	}{
		{WalletKey(a.UserID), a.Wallet.Snapshot()},
		{HoldingsKey(a.UserID), holdings},
		{EventsKey(a.UserID), events},
		{HistoryKey(a.UserID), history},
	}

	b := store.NewBatch()
	for _, d := range docs {
		data, err := json.Marshal(d.v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", d.key, err)
		}
		b.Set(d.key, data)
	}
	if a.LastLogin.IsZero() {
		b.Remove(LastLoginKey(a.UserID))
	} else {
		data, err := json.Marshal(a.LastLogin)
		if err != nil {
			return fmt.Errorf("encode %s: %w", LastLoginKey(a.UserID), err)
		}
		b.Set(LastLoginKey(a.UserID), data)
	}

	if err := r.store.Commit(ctx, b); err != nil {
		return fmt.Errorf("save account %s: %w", a.UserID, err)
	}
	return nil
}

// Remove deletes every document of userID.
func (r *Repository) Remove(ctx context.Context, userID string) error {
	b := store.NewBatch()
	for _, k := range Keys(userID) {
		b.Remove(k)
	}
	if err := r.store.Commit(ctx, b); err != nil {
		return fmt.Errorf("remove account %s: %w", userID, err)
	}
	return nil
}

// get decodes key into v and reports whether it existed.
func (r *Repository) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := r.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
