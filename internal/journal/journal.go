// Package journal is the append-only history of a user's ledger events.
// Wallet transactions and trading orders are both read views over it.
package journal

import "github.com/neuracoin/ledger-engine/internal/model"

// Journal keeps events newest first. Not safe for concurrent use.
type Journal struct {
	events []model.Event
}

func New() *Journal {
	return &Journal{}
}

// FromSnapshot restores a journal from persisted events, which must already be
// newest first.
func FromSnapshot(events []model.Event) *Journal {
	j := &Journal{events: make([]model.Event, len(events))}
	copy(j.events, events)
	return j
}

// Append records e as the newest event.
func (j *Journal) Append(e model.Event) {
	j.events = append(j.events, model.Event{})
	copy(j.events[1:], j.events)
	j.events[0] = e
}

// Events returns a copy of all events, newest first.
func (j *Journal) Events() []model.Event {
	out := make([]model.Event, len(j.events))
	copy(out, j.events)
	return out
}

// Transactions returns the wallet-history view of every event.
func (j *Journal) Transactions() []model.Transaction {
	out := make([]model.Transaction, 0, len(j.events))
	for _, e := range j.events {
		out = append(out, model.Transaction{
			ID:          e.ID,
			UserID:      e.UserID,
			Type:        e.Type,
			RewardKind:  e.RewardKind,
			AssetID:     e.AssetID,
			AssetSymbol: e.AssetSymbol,
			AssetName:   e.AssetName,
			AssetImage:  e.AssetImage,
			Amount:      e.Amount,
			Price:       e.Price,
			TotalCost:   e.TotalCost,
			Status:      e.Status,
			Description: e.Description,
			Timestamp:   e.Timestamp,
		})
	}
	return out
}

// Orders returns the buy and sell events as orders.
func (j *Journal) Orders() []model.Order {
	out := make([]model.Order, 0, len(j.events))
	for _, e := range j.events {
		if !e.IsTrade() {
			continue
		}
		out = append(out, model.Order{
			ID:           e.ID,
			Type:         e.Type,
			AssetID:      e.AssetID,
			AssetSymbol:  e.AssetSymbol,
			AssetName:    e.AssetName,
			Amount:       e.Amount,
			PricePerUnit: e.Price,
			TotalValue:   e.Notional,
			Fee:          e.Fee,
			RealizedPnL:  e.RealizedPnL,
			Status:       e.Status,
			CreatedAt:    e.Timestamp,
			CompletedAt:  e.Timestamp,
		})
	}
	return out
}

func (j *Journal) Len() int {
	return len(j.events)
}

func (j *Journal) Clone() *Journal {
	return FromSnapshot(j.events)
}
