// Package metrics provides Prometheus instrumentation for the ledger engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts executed trades, partitioned by side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neuracoin_trades_total",
		Help: "Total number of trades executed",
	}, []string{"side"})

	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "neuracoin_trade_latency_seconds",
		Help:    "Trade execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// TradeRejections counts trades refused before any mutation, by reason.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neuracoin_trade_rejections_total",
		Help: "Trades rejected by validation",
	}, []string{"side", "reason"})

	// PersistenceFailures counts unit-of-work commits that failed.
	PersistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neuracoin_persistence_failures_total",
		Help: "Account saves that failed and were not applied",
	}, []string{"op"})

	// RewardsTotal counts credited rewards by kind.
	RewardsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neuracoin_rewards_total",
		Help: "Rewards credited to wallets",
	}, []string{"kind"})

	// MarketFallbacks counts market reads served from static or cached data.
	MarketFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neuracoin_market_fallbacks_total",
		Help: "Market data requests answered without live data",
	}, []string{"op"})

	// OpenSessions tracks accounts held in memory.
	OpenSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "neuracoin_open_sessions",
		Help: "Number of accounts loaded in memory",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "neuracoin_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neuracoin_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "neuracoin_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern prefers the chi route pattern so user ids don't become labels.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
