// Package config loads service settings: defaults, then an optional YAML
// file, then environment overrides, then validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Store struct {
		Driver      string        `yaml:"driver"`
		SQLitePath  string        `yaml:"sqlite_path"`
		DatabaseURL string        `yaml:"database_url"`
		RedisURL    string        `yaml:"redis_url"`
		CacheTTL    time.Duration `yaml:"cache_ttl"`
	} `yaml:"store"`

	Market struct {
		BaseURL         string        `yaml:"base_url"`
		TopLimit        int           `yaml:"top_limit"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
	} `yaml:"market"`

	// Ledger amounts are decimal strings, e.g. fee_rate: "0.001".
	Ledger struct {
		FeeRate         string `yaml:"fee_rate"`
		WelcomeBonus    string `yaml:"welcome_bonus"`
		DailyLoginBonus string `yaml:"daily_login_bonus"`
		TradingReward   string `yaml:"trading_reward"`
		HistoryLimit    int    `yaml:"history_limit"`
	} `yaml:"ledger"`
}

// Default returns the built-in configuration.
func Default() *Config {
	var c Config
	c.Server.Port = "8080"
	c.Server.ShutdownTimeout = 5 * time.Second
	c.Logging.Level = "info"
	c.Store.Driver = DriverMemory
	c.Store.SQLitePath = "ledger.db"
	c.Store.CacheTTL = 30 * time.Second
	c.Market.BaseURL = "https://api.coingecko.com/api/v3"
	c.Market.TopLimit = 50
	c.Market.RefreshInterval = 2 * time.Minute
	c.Ledger.FeeRate = "0.001"
	c.Ledger.WelcomeBonus = "1000"
	c.Ledger.DailyLoginBonus = "50"
	c.Ledger.TradingReward = "50"
	c.Ledger.HistoryLimit = 720
	return &c
}

// Load builds the configuration. path may be empty to skip the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func overrideWithEnv(c *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Server.Port, "PORT")
	set(&c.Logging.Level, "LOG_LEVEL")
	set(&c.Store.Driver, "STORE_DRIVER")
	set(&c.Store.SQLitePath, "SQLITE_PATH")
	set(&c.Store.DatabaseURL, "DATABASE_URL")
	set(&c.Store.RedisURL, "REDIS_URL")
	set(&c.Market.BaseURL, "COINGECKO_BASE_URL")
	set(&c.Ledger.FeeRate, "FEE_RATE")
	set(&c.Ledger.TradingReward, "TRADING_REWARD")

	if v := os.Getenv("MARKET_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Market.RefreshInterval = d
		}
	}
	if v := os.Getenv("HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Ledger.HistoryLimit = n
		}
	}

	// A database URL without an explicit driver selects postgres.
	if c.Store.DatabaseURL != "" && os.Getenv("STORE_DRIVER") == "" && c.Store.Driver == DriverMemory {
		c.Store.Driver = DriverPostgres
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Server.Port)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite driver requires sqlite_path")
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("postgres driver requires database_url")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.RedisURL != "" && c.Store.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}

	if !strings.HasPrefix(c.Market.BaseURL, "http://") && !strings.HasPrefix(c.Market.BaseURL, "https://") {
		return fmt.Errorf("invalid market base url: %s", c.Market.BaseURL)
	}
	if c.Market.TopLimit <= 0 {
		return fmt.Errorf("market top_limit must be positive")
	}
	if c.Market.RefreshInterval <= 0 {
		return fmt.Errorf("market refresh_interval must be positive")
	}

	fee, err := c.FeeRate()
	if err != nil {
		return err
	}
	if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("fee_rate must be in [0, 1), got %s", fee)
	}
	for name, v := range map[string]string{
		"welcome_bonus":     c.Ledger.WelcomeBonus,
		"daily_login_bonus": c.Ledger.DailyLoginBonus,
		"trading_reward":    c.Ledger.TradingReward,
	} {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q", name, v)
		}
		if d.IsNegative() {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	if c.Ledger.HistoryLimit < 0 {
		return fmt.Errorf("history_limit cannot be negative")
	}
	return nil
}

// FeeRate returns the trading fee as a fraction of notional.
func (c *Config) FeeRate() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Ledger.FeeRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid fee_rate %q", c.Ledger.FeeRate)
	}
	return d, nil
}

// Amounts returns the parsed reward amounts. Call after Validate.
func (c *Config) Amounts() (welcome, daily, trading decimal.Decimal) {
	welcome, _ = decimal.NewFromString(c.Ledger.WelcomeBonus)
	daily, _ = decimal.NewFromString(c.Ledger.DailyLoginBonus)
	trading, _ = decimal.NewFromString(c.Ledger.TradingReward)
	return welcome, daily, trading
}

// LogLevel maps the configured level name to a slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	return l, nil
}
