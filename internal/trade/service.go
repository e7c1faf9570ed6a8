// Package trade provides the ledger's business logic and its HTTP surface:
// opening sessions, executing buys and sells, crediting rewards, and
// querying wallets, portfolios and history.
//
// All monetary values use shopspring/decimal, never float64 for money.
package trade

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/neuracoin/ledger-engine/internal/model"
)

// Service exposes the Orchestrator over HTTP.
type Service struct {
	orch   *Orchestrator
	market MarketData
	hub    *WSHub // optional
}

// NewService creates the HTTP service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(orch *Orchestrator, md MarketData, hub *WSHub) *Service {
	return &Service{orch: orch, market: md, hub: hub}
}

// RegisterRoutes mounts every endpoint under r, which is expected to be
// the /api/v1 sub-router.
func (s *Service) RegisterRoutes(r chi.Router) {
	if s.hub != nil {
		// WebSocket endpoint for real-time trade and price updates.
		r.Get("/ws", s.hub.HandleWS)
	}

	// Market data.
	r.Get("/market", s.ListMarket)
	r.Get("/market/prices", s.GetPrices)

	// Trade execution.
	r.Post("/trade", s.ExecuteTrade)

	// Accounts.
	r.Route("/accounts/{userID}", func(r chi.Router) {
		r.Post("/session", s.OpenSession)
		r.Get("/wallet", s.GetWallet)
		r.Get("/portfolio", s.GetPortfolio)
		r.Get("/transactions", s.GetTransactions)
		r.Get("/orders", s.GetOrders)
		r.Get("/history", s.GetHistory)
		r.Post("/rewards", s.CreditReward)
		r.Delete("/", s.ResetAccount)
	})
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /trade.
type TradeRequest struct {
	UserID   string          `json:"user_id"`
	AssetID  string          `json:"asset_id"`
	Side     string          `json:"side"` // "buy" or "sell"
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"` // per unit, in NC
}

// RewardRequest is the JSON body for POST /accounts/{userID}/rewards.
type RewardRequest struct {
	Kind   model.RewardKind `json:"kind"`
	Amount decimal.Decimal  `json:"amount"`
}

// --- HTTP Handlers ---

// OpenSession handles POST /api/v1/accounts/{userID}/session
func (s *Service) OpenSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.OpenSession(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	status := http.StatusOK
	if sess.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, sess)
}

// GetWallet handles GET /api/v1/accounts/{userID}/wallet
func (s *Service) GetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.orch.Wallet(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// GetPortfolio handles GET /api/v1/accounts/{userID}/portfolio
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	view, err := s.orch.Portfolio(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetTransactions handles GET /api/v1/accounts/{userID}/transactions
// Optional ?limit=<n> returns only the newest n.
func (s *Service) GetTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.orch.Transactions(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, limit(r, txs))
}

// GetOrders handles GET /api/v1/accounts/{userID}/orders
func (s *Service) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orch.Orders(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, limit(r, orders))
}

// GetHistory handles GET /api/v1/accounts/{userID}/history
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	points, err := s.orch.History(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// CreditReward handles POST /api/v1/accounts/{userID}/rewards
func (s *Service) CreditReward(w http.ResponseWriter, r *http.Request) {
	var req RewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	receipt, err := s.orch.Reward(r.Context(), chi.URLParam(r, "userID"), req.Kind, req.Amount)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// ResetAccount handles DELETE /api/v1/accounts/{userID}
func (s *Service) ResetAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Reset(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExecuteTrade handles POST /api/v1/trade
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var (
		receipt Receipt
		err     error
	)
	switch strings.ToLower(req.Side) {
	case string(model.EventBuy):
		receipt, err = s.orch.Buy(r.Context(), req.UserID, req.AssetID, req.Quantity, req.Price)
	case string(model.EventSell):
		receipt, err = s.orch.Sell(r.Context(), req.UserID, req.AssetID, req.Quantity, req.Price)
	default:
		writeError(w, "side must be buy or sell", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// ListMarket handles GET /api/v1/market
func (s *Service) ListMarket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.market.ListTop(r.Context()))
}

// GetPrices handles GET /api/v1/market/prices?ids=bitcoin,ethereum
func (s *Service) GetPrices(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		writeError(w, "ids is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.market.GetPrices(r.Context(), ids))
}

// --- helpers ---

// limit truncates items to ?limit=<n> when given.
func limit[T any](r *http.Request, items []T) []T {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 || n >= len(items) {
		return items
	}
	return items[:n]
}

// statusFor maps orchestrator errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidUser),
		errors.Is(err, ErrInvalidAsset),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidPrice),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidReward):
		return http.StatusBadRequest
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrAssetNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInsufficientHolding):
		return http.StatusConflict
	case errors.Is(err, ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusServiceUnavailable {
		msg = ErrPersistence.Error()
	}
	writeError(w, msg, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
