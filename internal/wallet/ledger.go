// Package wallet owns a user's spendable NeuraCoin balance and its lifetime
// flow. The ledger is a plain state holder: persistence and history are the
// caller's concern.
package wallet

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neuracoin/ledger-engine/internal/model"
)

var (
	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")

	// ErrNonPositiveAmount is returned for credits or debits <= 0.
	ErrNonPositiveAmount = errors.New("wallet: amount must be positive")
)

// Ledger is the wallet of one user. It is not safe for concurrent use;
// callers serialize access per user.
type Ledger struct {
	w model.Wallet
}

// New creates an empty wallet for userID.
func New(userID string, now time.Time) *Ledger {
	return &Ledger{w: model.Wallet{
		ID:          "wallet_" + userID,
		UserID:      userID,
		Balance:     decimal.Zero,
		TotalEarned: decimal.Zero,
		TotalSpent:  decimal.Zero,
		CreatedAt:   now,
		LastUpdated: now,
	}}
}

// FromSnapshot restores a ledger from a persisted wallet.
func FromSnapshot(w model.Wallet) *Ledger {
	return &Ledger{w: w}
}

// Credit increases the balance and the lifetime earned total.
func (l *Ledger) Credit(amount decimal.Decimal, at time.Time) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	l.w.Balance = l.w.Balance.Add(amount)
	l.w.TotalEarned = l.w.TotalEarned.Add(amount)
	l.w.LastUpdated = at
	return nil
}

// Debit decreases the balance iff it covers amount. On failure nothing changes.
func (l *Ledger) Debit(amount decimal.Decimal, at time.Time) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !l.CanAfford(amount) {
		return ErrInsufficientFunds
	}
	l.w.Balance = l.w.Balance.Sub(amount)
	l.w.TotalSpent = l.w.TotalSpent.Add(amount)
	l.w.LastUpdated = at
	return nil
}

// CanAfford reports whether balance >= amount.
func (l *Ledger) CanAfford(amount decimal.Decimal) bool {
	return l.w.Balance.GreaterThanOrEqual(amount)
}

func (l *Ledger) Balance() decimal.Decimal {
	return l.w.Balance
}

// Snapshot returns a copy of the wallet state.
func (l *Ledger) Snapshot() model.Wallet {
	return l.w
}

func (l *Ledger) Clone() *Ledger {
	return &Ledger{w: l.w}
}
