// Package account groups the per-user state holders into one unit that is
// loaded, staged and persisted together.
package account

import (
	"time"

	"github.com/neuracoin/ledger-engine/internal/journal"
	"github.com/neuracoin/ledger-engine/internal/model"
	"github.com/neuracoin/ledger-engine/internal/portfolio"
	"github.com/neuracoin/ledger-engine/internal/wallet"
)

// Account is everything the ledger knows about one user.
type Account struct {
	UserID    string
	Wallet    *wallet.Ledger
	Portfolio *portfolio.Ledger
	Journal   *journal.Journal
	History   []model.HistoryPoint
	// LastLogin is the last day a login bonus was considered; zero if never.
	LastLogin time.Time
}

// New returns an empty account for userID.
func New(userID string, now time.Time) *Account {
	return &Account{
		UserID:    userID,
		Wallet:    wallet.New(userID, now),
		Portfolio: portfolio.New(),
		Journal:   journal.New(),
	}
}

// Clone returns a deep copy used to stage mutations before they are persisted.
func (a *Account) Clone() *Account {
	history := make([]model.HistoryPoint, len(a.History))
	copy(history, a.History)
	return &Account{
		UserID:    a.UserID,
		Wallet:    a.Wallet.Clone(),
		Portfolio: a.Portfolio.Clone(),
		Journal:   a.Journal.Clone(),
		History:   history,
		LastLogin: a.LastLogin,
	}
}

// AppendHistory records p and keeps at most limit points, dropping the oldest.
// A limit <= 0 means unbounded.
func (a *Account) AppendHistory(p model.HistoryPoint, limit int) {
	a.History = append(a.History, p)
	if limit > 0 && len(a.History) > limit {
		a.History = append([]model.HistoryPoint(nil), a.History[len(a.History)-limit:]...)
	}
}
