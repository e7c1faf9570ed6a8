// Package market supplies asset identity and current prices to the ledger.
// Upstream failures never reach callers: the last known quotes or a static
// fallback list are served instead.
package market

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/neuracoin/ledger-engine/internal/cache"
	"github.com/neuracoin/ledger-engine/internal/metrics"
	"github.com/neuracoin/ledger-engine/internal/model"
)

var (
	ErrInvalidServiceConfig = errors.New("invalid market service config")

	// ErrAssetNotFound is returned by Lookup for ids no source knows.
	ErrAssetNotFound = errors.New("market: asset not found")
)

const DefaultTopLimit = 50

type Service struct {
	fetcher  Fetcher
	logger   *slog.Logger
	limit    int
	fallback []model.Asset
	quotes   *cache.Cache[string, model.Asset]
}

type Option func(*Service)

func WithFetcher(f Fetcher) Option {
	return func(s *Service) { s.fetcher = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTopLimit sets how many assets ListTop requests upstream.
func WithTopLimit(n int) Option {
	return func(s *Service) { s.limit = n }
}

// WithFallback replaces the static quotes served on upstream failure.
func WithFallback(assets []model.Asset) Option {
	return func(s *Service) { s.fallback = assets }
}

func (s *Service) IsValid() error {
	switch {
	case s.fetcher == nil:
		return errors.Wrap(ErrInvalidServiceConfig, "fetcher cannot be nil")
	case s.logger == nil:
		return errors.Wrap(ErrInvalidServiceConfig, "logger cannot be nil")
	case s.limit <= 0:
		return errors.Wrap(ErrInvalidServiceConfig, "top limit must be positive")
	default:
		return nil
	}
}

func NewService(opts ...Option) (*Service, error) {
	s := &Service{
		logger:   slog.Default(),
		limit:    DefaultTopLimit,
		fallback: Fallback(),
		quotes:   cache.New[string, model.Asset](),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.IsValid(); err != nil {
		return nil, err
	}
	return s, nil
}

// ListTop returns the top assets by market cap. On upstream failure the
// static fallback list is returned.
func (s *Service) ListTop(ctx context.Context) []model.Asset {
	assets, err := s.fetcher.ListTop(ctx, s.limit)
	if err == nil && len(assets) > 0 {
		s.remember(assets)
		return assets
	}
	if err == nil {
		err = errors.New("empty market list")
	}

	s.logger.Warn("market list unavailable, serving fallback", "error", err)
	metrics.MarketFallbacks.WithLabelValues("list_top").Inc()
	s.seed()
	out := make([]model.Asset, len(s.fallback))
	copy(out, s.fallback)
	return out
}

// GetPrices returns the current price for each known id. Ids unknown to every
// source are omitted, so a total failure yields an empty map.
func (s *Service) GetPrices(ctx context.Context, ids []string) map[string]decimal.Decimal {
	if len(ids) == 0 {
		return map[string]decimal.Decimal{}
	}

	live, err := s.fetcher.GetPrices(ctx, ids)
	if err == nil {
		s.updatePrices(live)
		return live
	}

	s.logger.Warn("prices unavailable, serving last known", "ids", len(ids), "error", err)
	metrics.MarketFallbacks.WithLabelValues("get_prices").Inc()
	s.seed()
	prices := make(map[string]decimal.Decimal, len(ids))
	for id, a := range s.quotes.GetMany(ids) {
		prices[id] = a.CurrentPrice
	}
	return prices
}

// Lookup returns the quote for id, refreshing the top list once on a miss.
func (s *Service) Lookup(ctx context.Context, id string) (model.Asset, error) {
	if a, ok := s.quotes.Get(id); ok {
		return a, nil
	}
	s.ListTop(ctx)
	if a, ok := s.quotes.Get(id); ok {
		return a, nil
	}
	return model.Asset{}, errors.Wrapf(ErrAssetNotFound, "id %q", id)
}

// Quotes returns every cached quote.
func (s *Service) Quotes() []model.Asset {
	return s.quotes.Values()
}

func (s *Service) remember(assets []model.Asset) {
	m := make(map[string]model.Asset, len(assets))
	for _, a := range assets {
		m[a.ID] = a
	}
	s.quotes.SetMany(m)
}

func (s *Service) updatePrices(prices map[string]decimal.Decimal) {
	ids := make([]string, 0, len(prices))
	for id := range prices {
		ids = append(ids, id)
	}
	known := s.quotes.GetMany(ids)
	for id, a := range known {
		a.CurrentPrice = prices[id]
		known[id] = a
	}
	s.quotes.SetMany(known)
}

// seed adds fallback quotes for ids not already cached, so live quotes are
// never overwritten by static ones.
func (s *Service) seed() {
	ids := make([]string, len(s.fallback))
	for i, a := range s.fallback {
		ids[i] = a.ID
	}
	have := s.quotes.GetMany(ids)
	missing := make(map[string]model.Asset)
	for _, a := range s.fallback {
		if _, ok := have[a.ID]; !ok {
			missing[a.ID] = a
		}
	}
	s.quotes.SetMany(missing)
}
