package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neuracoin/ledger-engine/internal/scheduler"
)

// Refresher periodically pulls market prices and revalues every account
// held in memory. Revaluation goes through the orchestrator, so it takes the
// same per-user lock as trades.
type Refresher struct {
	orch   *Orchestrator
	market MarketData
	hub    *WSHub // optional
	logger *slog.Logger
}

func NewRefresher(orch *Orchestrator, md MarketData, hub *WSHub, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{orch: orch, market: md, hub: hub, logger: logger}
}

// Refresh performs one pass. Per-user failures are collected, not fatal.
func (r *Refresher) Refresh(ctx context.Context) error {
	quotes := r.market.ListTop(ctx)

	ids := r.orch.HeldAssetIDs()
	prices := r.market.GetPrices(ctx, ids)

	var errs []error
	revalued := 0
	for _, userID := range r.orch.SessionIDs() {
		if _, err := r.orch.Revalue(ctx, userID, prices); err != nil {
			errs = append(errs, fmt.Errorf("revalue %s: %w", userID, err))
			continue
		}
		revalued++
	}

	if r.hub != nil {
		payload := make(map[string]string, len(quotes)+len(prices))
		for _, q := range quotes {
			payload[q.ID] = q.CurrentPrice.String()
		}
		for id, p := range prices {
			payload[id] = p.String()
		}
		r.hub.Broadcast(WSMessage{Type: MsgPricesUpdated, Prices: payload})
	}

	r.logger.Info("market refresh",
		"quotes", len(quotes),
		"held_assets", len(ids),
		"priced", len(prices),
		"revalued", revalued,
		"failed", len(errs),
	)
	return errors.Join(errs...)
}

// Schedule returns a started scheduler running Refresh every interval.
func (r *Refresher) Schedule(ctx context.Context, interval time.Duration) (*scheduler.Scheduler, error) {
	s, err := scheduler.New(
		scheduler.WithName("market-refresh"),
		scheduler.WithContext(ctx),
		scheduler.WithLogger(r.logger),
		scheduler.WithInterval(interval),
		scheduler.WithHandler(r.Refresh),
		scheduler.WithImmediateRun(),
	)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}
