package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBILO_* environment variable overrides, and
// returns the final Config. A missing file is not an error; the defaults
// plus env overrides apply. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBILO_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Aggregator ──
	setStringSlice(&cfg.Aggregator.Venues, "ARBILO_AGGREGATOR_VENUES")
	setStringSlice(&cfg.Aggregator.Coins, "ARBILO_AGGREGATOR_COINS")
	setStr(&cfg.Aggregator.QuoteCurrency, "ARBILO_AGGREGATOR_QUOTE_CURRENCY")
	setFloat64(&cfg.Aggregator.MinVolume, "ARBILO_AGGREGATOR_MIN_VOLUME")

	// ── Pairwise ──
	setFloat64(&cfg.Pairwise.DefaultInvestment, "ARBILO_PAIRWISE_DEFAULT_INVESTMENT")
	setInt(&cfg.Pairwise.TopN, "ARBILO_PAIRWISE_TOP_N")

	// ── Triangular ──
	setStringSlice(&cfg.Triangular.Venues, "ARBILO_TRIANGULAR_VENUES")
	setStr(&cfg.Triangular.BaseCurrency, "ARBILO_TRIANGULAR_BASE_CURRENCY")
	setStringSlice(&cfg.Triangular.Coins, "ARBILO_TRIANGULAR_COINS")
	setFloat64(&cfg.Triangular.StartingAmount, "ARBILO_TRIANGULAR_STARTING_AMOUNT")
	setDuration(&cfg.Triangular.SetDelay, "ARBILO_TRIANGULAR_SET_DELAY")

	// ── Cache ──
	setInt(&cfg.Cache.TTLSeconds, "ARBILO_CACHE_TTL_SECONDS")
	setInt(&cfg.Cache.MaxRetries, "ARBILO_CACHE_MAX_RETRIES")
	setInt(&cfg.Cache.MaxLocalItems, "ARBILO_CACHE_MAX_LOCAL_ITEMS")

	// ── Fetch ──
	setInt(&cfg.Fetch.MaxRetries, "ARBILO_FETCH_MAX_RETRIES")
	setDuration(&cfg.Fetch.RetryDelay, "ARBILO_FETCH_RETRY_DELAY")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBILO_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBILO_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBILO_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBILO_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBILO_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBILO_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBILO_REDIS_TLS_ENABLED")

	// ── Server ──
	setInt(&cfg.Server.Port, "ARBILO_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBILO_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.JWTSecret, "ARBILO_SERVER_JWT_SECRET")
	setInt(&cfg.Server.RateLimit, "ARBILO_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "ARBILO_SERVER_RATE_LIMIT_WINDOW")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ARBILO_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
