package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies QUADBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known QUADBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file. Per-exchange credentials are keyed by position: QUADBOT_EXCHANGE_0_*
// overrides the first configured exchange.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "QUADBOT_MODE")
	setStr(&cfg.LogLevel, "QUADBOT_LOG_LEVEL")

	for i := range cfg.Exchanges {
		prefix := "QUADBOT_EXCHANGE_" + strconv.Itoa(i) + "_"
		setStr(&cfg.Exchanges[i].ApiKey, prefix+"API_KEY")
		setStr(&cfg.Exchanges[i].ApiSecret, prefix+"API_SECRET")
		setStr(&cfg.Exchanges[i].BaseURL, prefix+"BASE_URL")
		setStr(&cfg.Exchanges[i].WsURL, prefix+"WS_URL")
	}

	setStr(&cfg.Database.DSN, "QUADBOT_DATABASE_DSN")
	setStr(&cfg.Database.Host, "QUADBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "QUADBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "QUADBOT_DATABASE_NAME")
	setStr(&cfg.Database.User, "QUADBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "QUADBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "QUADBOT_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "QUADBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "QUADBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "QUADBOT_DATABASE_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "QUADBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "QUADBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "QUADBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "QUADBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "QUADBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "QUADBOT_REDIS_TLS_ENABLED")

	setInt(&cfg.Trading.MaxConcurrentPaths, "QUADBOT_TRADING_MAX_CONCURRENT_PATHS")
	setInt(&cfg.Trading.RoundIntervalSeconds, "QUADBOT_TRADING_ROUND_INTERVAL_SECONDS")
	setInt(&cfg.Trading.ExpireAgeHours, "QUADBOT_TRADING_EXPIRE_AGE_HOURS")
	setFloat64(&cfg.Trading.GainPerStepPercent, "QUADBOT_TRADING_GAIN_PER_STEP_PERCENT")
	setInt(&cfg.Trading.FeeApplications, "QUADBOT_TRADING_FEE_APPLICATIONS")

	setFloat64(&cfg.Analyzer.MinEstimatedGainPercent, "QUADBOT_ANALYZER_MIN_ESTIMATED_GAIN_PERCENT")
	setFloat64(&cfg.Analyzer.MaxEstimatedGainPercent, "QUADBOT_ANALYZER_MAX_ESTIMATED_GAIN_PERCENT")
	setInt(&cfg.Analyzer.ScanIntervalSeconds, "QUADBOT_ANALYZER_SCAN_INTERVAL_SECONDS")
	setInt(&cfg.Analyzer.RateTTLSeconds, "QUADBOT_ANALYZER_RATE_TTL_SECONDS")

	setStr(&cfg.Notify.TelegramToken, "QUADBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "QUADBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "QUADBOT_NOTIFY_DISCORD_WEBHOOK_URL")
}

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
