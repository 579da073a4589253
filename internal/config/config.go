// Package config defines the top-level configuration for the quadbot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by QUADBOT_* environment
// variables.
type Config struct {
	Exchanges []ExchangeConfig `toml:"exchanges"`
	Database  DatabaseConfig   `toml:"database"`
	Redis     RedisConfig      `toml:"redis"`
	Trading   TradingConfig    `toml:"trading"`
	Analyzer  AnalyzerConfig   `toml:"analyzer"`
	Notify    NotifyConfig     `toml:"notify"`
	Mode      string           `toml:"mode"`
	LogLevel  string           `toml:"log_level"`
}

// ExchangeConfig holds one exchange's endpoints, credentials and trading
// parameters.
type ExchangeConfig struct {
	Name             string  `toml:"name"`
	BaseURL          string  `toml:"base_url"`
	WsURL            string  `toml:"ws_url"`
	ApiKey           string  `toml:"api_key"`
	ApiSecret        string  `toml:"api_secret"`
	TradeFeePercent  float64 `toml:"trade_fee_percent"`
	OrderEasePercent float64 `toml:"order_ease_percent"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// TradingConfig holds the trader's scheduling and execution parameters.
type TradingConfig struct {
	MaxConcurrentPaths   int     `toml:"max_concurrent_paths"`
	RoundIntervalSeconds int     `toml:"round_interval_seconds"`
	ExpireAgeHours       int     `toml:"expire_age_hours"`
	GainPerStepPercent   float64 `toml:"gain_per_step_percent"`
	FeeApplications      int     `toml:"fee_applications"`
}

// RoundInterval returns the pause between scheduling rounds.
func (t TradingConfig) RoundInterval() time.Duration {
	return time.Duration(t.RoundIntervalSeconds) * time.Second
}

// ExpireAge returns how long stale paths are kept.
func (t TradingConfig) ExpireAge() time.Duration {
	return time.Duration(t.ExpireAgeHours) * time.Hour
}

// AnalyzerConfig holds the path generation parameters.
type AnalyzerConfig struct {
	MinEstimatedGainPercent float64 `toml:"min_estimated_gain_percent"`
	MaxEstimatedGainPercent float64 `toml:"max_estimated_gain_percent"`
	ScanIntervalSeconds     int     `toml:"scan_interval_seconds"`
	RateTTLSeconds          int     `toml:"rate_ttl_seconds"`
}

// ScanInterval returns the pause between analyzer scans.
func (a AnalyzerConfig) ScanInterval() time.Duration {
	return time.Duration(a.ScanIntervalSeconds) * time.Second
}

// RateTTL returns how long a cached ticker rate stays usable.
func (a AnalyzerConfig) RateTTL() time.Duration {
	return time.Duration(a.RateTTLSeconds) * time.Second
}

// NotifyConfig holds operator alert channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
}

// Defaults returns a Config with sane defaults for everything that has one.
func Defaults() Config {
	return Config{
		Mode:     "full",
		LogLevel: "info",
		Database: DatabaseConfig{
			Port:          5432,
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 8,
		},
		Trading: TradingConfig{
			MaxConcurrentPaths:   5,
			RoundIntervalSeconds: 1,
			ExpireAgeHours:       24,
			GainPerStepPercent:   0.75,
			FeeApplications:      2,
		},
		Analyzer: AnalyzerConfig{
			MinEstimatedGainPercent: 2,
			MaxEstimatedGainPercent: 90,
			ScanIntervalSeconds:     10,
			RateTTLSeconds:          60,
		},
	}
}

var validModes = map[string]bool{
	"trade":   true, // drive stored paths only
	"analyze": true, // generate paths only
	"full":    true, // both
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, analyze, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if len(c.Exchanges) == 0 {
		errs = append(errs, "exchanges: at least one exchange must be configured")
	}
	seen := make(map[string]bool)
	for i, ex := range c.Exchanges {
		prefix := fmt.Sprintf("exchanges[%d]", i)
		if ex.Name == "" {
			errs = append(errs, prefix+": name must not be empty")
		} else if seen[ex.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate exchange name %q", prefix, ex.Name))
		}
		seen[ex.Name] = true
		if ex.BaseURL == "" {
			errs = append(errs, prefix+": base_url must not be empty")
		}
		if c.Mode != "analyze" && (ex.ApiKey == "" || ex.ApiSecret == "") {
			errs = append(errs, prefix+": api_key and api_secret are required for mode "+c.Mode)
		}
		if ex.TradeFeePercent < 0 || ex.TradeFeePercent >= 50 {
			errs = append(errs, fmt.Sprintf("%s: trade_fee_percent %v out of range", prefix, ex.TradeFeePercent))
		}
		if ex.OrderEasePercent < 0 || ex.OrderEasePercent >= 10 {
			errs = append(errs, fmt.Sprintf("%s: order_ease_percent %v out of range", prefix, ex.OrderEasePercent))
		}
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	if c.Trading.MaxConcurrentPaths < 1 {
		errs = append(errs, "trading: max_concurrent_paths must be >= 1")
	}
	if c.Trading.GainPerStepPercent <= 0 {
		errs = append(errs, "trading: gain_per_step_percent must be positive")
	}
	if c.Trading.FeeApplications < 1 {
		errs = append(errs, "trading: fee_applications must be >= 1")
	}

	if c.Analyzer.MinEstimatedGainPercent >= c.Analyzer.MaxEstimatedGainPercent {
		errs = append(errs, "analyzer: min_estimated_gain_percent must be below max_estimated_gain_percent")
	}
	if c.Analyzer.RateTTLSeconds <= 0 {
		errs = append(errs, "analyzer: rate_ttl_seconds must be positive")
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
