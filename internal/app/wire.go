package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pmoerman/quadbot/internal/cache"
	"github.com/pmoerman/quadbot/internal/cache/redis"
	"github.com/pmoerman/quadbot/internal/config"
	"github.com/pmoerman/quadbot/internal/domain"
	"github.com/pmoerman/quadbot/internal/exchange"
	"github.com/pmoerman/quadbot/internal/notify"
	"github.com/pmoerman/quadbot/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Venue     *exchange.Venue
	PathStore domain.PathStore
	Pauses    *redis.PauseRegistry
	MinSizes  *redis.MinimumSizeCache
	Balances  *cache.Balances
	Rates     *cache.Rates
	Minimums  domain.MinimumSizes
	Notifier  *notify.Notifier
}

// needsMinimums returns true for modes that place orders and therefore must
// know the exchanges' minimum order sizes up front.
func needsMinimums(mode string) bool {
	return mode != "analyze"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Exchange clients ---
	clients := make([]*exchange.Client, 0, len(cfg.Exchanges))
	for _, ex := range cfg.Exchanges {
		clients = append(clients, exchange.NewClient(exchange.Config{
			Name:             ex.Name,
			BaseURL:          ex.BaseURL,
			APIKey:           ex.ApiKey,
			APISecret:        ex.ApiSecret,
			TradeFeePercent:  ex.TradeFeePercent,
			OrderEasePercent: ex.OrderEasePercent,
		}))
	}
	deps.Venue = exchange.NewVenue(clients...)

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	deps.PathStore = postgres.NewPathStore(pgClient.Pool())

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Pauses = redis.NewPauseRegistry(redisClient)
	deps.MinSizes = redis.NewMinimumSizeCache(redisClient)

	// --- In-process caches ---
	deps.Balances = cache.NewBalances()
	deps.Rates = cache.NewRates(cfg.Analyzer.RateTTL())

	// --- Minimum order sizes ---
	if needsMinimums(cfg.Mode) {
		minimums, err := loadMinimums(ctx, deps, clients, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: minimum sizes: %w", err)
		}
		deps.Minimums = minimums
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, logger)

	return deps, cleanup, nil
}

// loadMinimums assembles the minimum order sizes for every configured
// exchange, preferring the Redis cache and falling back to the exchange's
// public endpoint. Freshly fetched sizes are written back to Redis so the
// next start is cheap.
func loadMinimums(ctx context.Context, deps *Dependencies, clients []*exchange.Client, logger *slog.Logger) (domain.MinimumSizes, error) {
	minimums := make(domain.MinimumSizes)
	for _, c := range clients {
		cached, err := deps.MinSizes.Load(ctx, c.Name())
		if err != nil {
			logger.Warn("minimum size cache unavailable",
				slog.String("exchange", c.Name()),
				slog.String("error", err.Error()),
			)
		}
		if len(cached) > 0 {
			for k, v := range cached {
				minimums[k] = v
			}
			continue
		}

		live, err := c.MinimumSizes(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch from %s: %w", c.Name(), err)
		}
		for k, v := range live {
			minimums[k] = v
			if err := deps.MinSizes.Set(ctx, k, v); err != nil {
				logger.Warn("minimum size cache write failed",
					slog.String("key", k.String()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return minimums, nil
}
