// Package config defines the top-level configuration for the arbitrage
// aggregation service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBILO_* environment variables.
type Config struct {
	Aggregator AggregatorConfig `toml:"aggregator"`
	Pairwise   PairwiseConfig   `toml:"pairwise"`
	Triangular TriangularConfig `toml:"triangular"`
	Cache      CacheConfig      `toml:"cache"`
	Fetch      FetchConfig      `toml:"fetch"`
	Redis      RedisConfig      `toml:"redis"`
	Server     ServerConfig     `toml:"server"`
	LogLevel   string           `toml:"log_level"`
}

// AggregatorConfig holds the venue and coin universe for market snapshots.
type AggregatorConfig struct {
	Venues        []string `toml:"venues"`
	Coins         []string `toml:"coins"`
	QuoteCurrency string   `toml:"quote_currency"`
	MinVolume     float64  `toml:"min_volume"`
}

// PairwiseConfig holds parameters for the two-venue opportunity engine.
type PairwiseConfig struct {
	DefaultInvestment float64 `toml:"default_investment"`
	TopN              int     `toml:"top_n"`
}

// TriangularConfig holds parameters for the single-venue three-leg engine.
type TriangularConfig struct {
	Venues         []string `toml:"venues"`
	BaseCurrency   string   `toml:"base_currency"`
	Coins          []string `toml:"coins"`
	StartingAmount float64  `toml:"starting_amount"`
	SetDelay       duration `toml:"set_delay"`
}

// CacheConfig holds dataset cache parameters.
type CacheConfig struct {
	TTLSeconds    int `toml:"ttl_seconds"`
	MaxRetries    int `toml:"max_retries"`
	MaxLocalItems int `toml:"max_local_items"`
}

// FetchConfig holds venue fetch retry parameters.
type FetchConfig struct {
	MaxRetries int      `toml:"max_retries"`
	RetryDelay duration `toml:"retry_delay"`
}

// RedisConfig holds Redis connection parameters. When Enabled is false the
// service runs on its in-process fallback cache alone.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	JWTSecret       string   `toml:"jwt_secret"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "500ms").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Aggregator: AggregatorConfig{
			Venues: []string{"binance", "bybit", "okx", "kucoin", "gateio"},
			Coins: []string{
				"BTC", "ETH", "XRP", "ADA", "DOT", "SOL", "DOGE", "SHIB", "LTC", "LINK",
				"MATIC", "AVAX", "XLM", "UNI", "BCH", "FIL", "VET", "ALGO", "ATOM", "ICP",
			},
			QuoteCurrency: "USDT",
			MinVolume:     100000,
		},
		Pairwise: PairwiseConfig{
			DefaultInvestment: 100000,
			TopN:              20,
		},
		Triangular: TriangularConfig{
			Venues:         []string{"bybit", "okx", "kucoin", "gateio", "binance"},
			BaseCurrency:   "USDT",
			Coins:          []string{"BTC", "ETH", "ADA", "DOT", "MATIC"},
			StartingAmount: 1000,
			SetDelay:       duration{100 * time.Millisecond},
		},
		Cache: CacheConfig{
			TTLSeconds:    300,
			MaxRetries:    3,
			MaxLocalItems: 64,
		},
		Fetch: FetchConfig{
			MaxRetries: 3,
			RetryDelay: duration{500 * time.Millisecond},
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Server: ServerConfig{
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       120,
			RateLimitWindow: duration{time.Minute},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Aggregator
	if len(c.Aggregator.Venues) == 0 {
		errs = append(errs, "aggregator: venues must not be empty")
	}
	if len(c.Aggregator.Coins) == 0 {
		errs = append(errs, "aggregator: coins must not be empty")
	}
	if c.Aggregator.QuoteCurrency == "" {
		errs = append(errs, "aggregator: quote_currency must not be empty")
	}
	if c.Aggregator.MinVolume < 0 {
		errs = append(errs, "aggregator: min_volume must be >= 0")
	}

	// Pairwise
	if c.Pairwise.DefaultInvestment <= 0 {
		errs = append(errs, "pairwise: default_investment must be > 0")
	}
	if c.Pairwise.TopN < 1 {
		errs = append(errs, "pairwise: top_n must be >= 1")
	}

	// Triangular
	if len(c.Triangular.Venues) == 0 {
		errs = append(errs, "triangular: venues must not be empty")
	}
	if c.Triangular.BaseCurrency == "" {
		errs = append(errs, "triangular: base_currency must not be empty")
	}
	if len(c.Triangular.Coins) < 2 {
		errs = append(errs, "triangular: at least two coins are required")
	}
	if c.Triangular.StartingAmount <= 0 {
		errs = append(errs, "triangular: starting_amount must be > 0")
	}
	if c.Triangular.SetDelay.Duration < 0 {
		errs = append(errs, "triangular: set_delay must be >= 0")
	}

	// Cache
	if c.Cache.TTLSeconds < 1 {
		errs = append(errs, "cache: ttl_seconds must be >= 1")
	}
	if c.Cache.MaxRetries < 0 {
		errs = append(errs, "cache: max_retries must be >= 0")
	}

	// Fetch
	if c.Fetch.MaxRetries < 1 {
		errs = append(errs, "fetch: max_retries must be >= 1")
	}
	if c.Fetch.RetryDelay.Duration < 0 {
		errs = append(errs, "fetch: retry_delay must be >= 0")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
