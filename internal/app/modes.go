package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pmoerman/quadbot/internal/analyzer"
	"github.com/pmoerman/quadbot/internal/domain"
	"github.com/pmoerman/quadbot/internal/engine"
	"github.com/pmoerman/quadbot/internal/feed"
	"github.com/pmoerman/quadbot/internal/trader"
)

// TradeMode drives the stored paths to completion and nothing else. Paths
// come from an analyzer running elsewhere, or from a previous run.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	return a.newTrader(deps).Run(ctx, a.cfg.Trading.RoundInterval())
}

// AnalyzeMode consumes the ticker feeds and generates candidate paths without
// trading them.
func (a *App) AnalyzeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting analyze mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startFeeds(ctx, g, deps)
	g.Go(func() error { return a.runAnalyzer(ctx, deps) })
	return g.Wait()
}

// FullMode runs the whole pipeline: ticker feeds, path generation, and
// trading.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startFeeds(ctx, g, deps)
	g.Go(func() error { return a.runAnalyzer(ctx, deps) })
	g.Go(func() error { return a.newTrader(deps).Run(ctx, a.cfg.Trading.RoundInterval()) })
	return g.Wait()
}

// newTrader assembles the converge/execute/drive chain and the scheduler on
// top of it.
func (a *App) newTrader(deps *Dependencies) *trader.Trader {
	conv := engine.NewConverger(deps.Venue, deps.Minimums, a.logger)
	conv.SetFeeApplications(a.cfg.Trading.FeeApplications)
	conv.SetGainPerStep(a.cfg.Trading.GainPerStepPercent)

	exec := engine.NewExecutor(deps.Venue, deps.Balances, deps.Pauses, deps.Minimums, a.logger)
	driver := engine.NewDriver(conv, exec, deps.PathStore, a.logger)

	tr := trader.New(deps.PathStore, driver, deps.Pauses, deps.Notifier, a.logger)
	tr.SetMaxConcurrent(a.cfg.Trading.MaxConcurrentPaths)
	tr.SetExpireAge(a.cfg.Trading.ExpireAge())
	return tr
}

// startFeeds launches one ticker feed per exchange that has a websocket
// endpoint configured.
func (a *App) startFeeds(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	for _, ex := range a.cfg.Exchanges {
		if ex.WsURL == "" {
			a.logger.Warn("exchange has no websocket endpoint, no live rates",
				slog.String("exchange", ex.Name),
			)
			continue
		}
		f := feed.NewTickerFeed(ex.Name, ex.WsURL, deps.Rates, a.logger)
		g.Go(func() error { return f.Run(ctx) })
	}
}

// runAnalyzer scans the rate cache on a fixed interval and stores fresh
// candidate paths.
func (a *App) runAnalyzer(ctx context.Context, deps *Dependencies) error {
	an := analyzer.New(deps.Rates, deps.PathStore, a.logger)
	an.SetGainWindow(a.cfg.Analyzer.MinEstimatedGainPercent, a.cfg.Analyzer.MaxEstimatedGainPercent)

	ticker := time.NewTicker(a.cfg.Analyzer.ScanInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		paused, err := deps.Pauses.Active(ctx)
		if err != nil {
			a.logger.Warn("pause listing failed", slog.String("error", err.Error()))
			paused = map[domain.LegKey]struct{}{}
		}
		if _, err := an.RunOnce(ctx, paused); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Error("analyzer scan failed", slog.String("error", err.Error()))
		}
	}
}
