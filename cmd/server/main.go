package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/neuracoin/ledger-engine/internal/account"
	"github.com/neuracoin/ledger-engine/internal/config"
	"github.com/neuracoin/ledger-engine/internal/market"
	"github.com/neuracoin/ledger-engine/internal/metrics"
	"github.com/neuracoin/ledger-engine/internal/store"
	"github.com/neuracoin/ledger-engine/internal/trade"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	level, _ := cfg.LogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("store init failed", "driver", cfg.Store.Driver, "err", err)
		os.Exit(1)
	}
	defer cleanup()

	// --- Market data ---
	md, err := market.NewService(
		market.WithFetcher(market.NewCoinGecko(cfg.Market.BaseURL)),
		market.WithLogger(logger),
		market.WithTopLimit(cfg.Market.TopLimit),
	)
	if err != nil {
		slog.Error("market service init failed", "err", err)
		os.Exit(1)
	}

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub(logger)
	go wsHub.Run(ctx)

	// --- Ledger ---
	feeRate, _ := cfg.FeeRate()
	welcome, daily, reward := cfg.Amounts()
	orch := trade.NewOrchestrator(account.NewRepository(st), md, wsHub, trade.Config{
		FeeRate:         feeRate,
		WelcomeBonus:    welcome,
		DailyLoginBonus: daily,
		TradingReward:   reward,
		HistoryLimit:    cfg.Ledger.HistoryLimit,
		Logger:          logger,
	})

	refresher, err := trade.NewRefresher(orch, md, wsHub, logger).Schedule(ctx, cfg.Market.RefreshInterval)
	if err != nil {
		slog.Error("market refresh init failed", "err", err)
		os.Exit(1)
	}
	defer refresher.Stop()

	tradeSvc := trade.NewService(orch, md, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"ledger-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", tradeSvc.RegisterRoutes)

	// --- Server ---
	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("ledger-engine listening", "port", cfg.Server.Port, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down ledger-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("ledger-engine stopped")
}

// openStore builds the configured backend, optionally fronted by Redis.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	var (
		st      store.Store
		cleanup []func()
	)
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection: %w", err)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

	case config.DriverSQLite:
		lite, err := store.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		cleanup = append(cleanup, func() { lite.Close() })
		st = lite
		slog.Info("opened SQLite store", "path", cfg.Store.SQLitePath)

	default:
		slog.Warn("using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	// Wrap with Redis read-through cache if configured.
	if cfg.Store.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		cached := store.NewCachedStore(st, rdb, cfg.Store.CacheTTL)
		if err := cached.Ping(ctx); err != nil {
			slog.Warn("redis unreachable, cache misses will fall through", "err", err)
		}
		st = cached
		slog.Info("Redis cache enabled", "ttl", cfg.Store.CacheTTL)
	}

	return st, closeAll, nil
}
