// Package analyzer turns fresh ticker rates into candidate four-leg paths.
// It only estimates from cached best rates; the trading side re-judges every
// candidate against full order books before any money moves.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pmoerman/quadbot/internal/cache"
	"github.com/pmoerman/quadbot/internal/domain"
	"github.com/pmoerman/quadbot/internal/engine"
)

const (
	// DefaultMinEstimatedGainPct filters out candidates whose estimated gain
	// cannot survive fees and the convergence bar anyway.
	DefaultMinEstimatedGainPct = 2.0
	// DefaultMaxEstimatedGainPct filters out candidates that look too good:
	// a huge estimated gain almost always means a stale or broken rate, and
	// investigating it wastes order-book fetches.
	DefaultMaxEstimatedGainPct = 90.0
)

// Analyzer scans the rate cache for profitable-looking routes and stores
// them as bare paths for the trader to investigate.
type Analyzer struct {
	rates   *cache.Rates
	store   domain.PathStore
	minGain float64
	maxGain float64
	logger  *slog.Logger
}

// New creates an Analyzer with the default gain window.
func New(rates *cache.Rates, store domain.PathStore, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		rates:   rates,
		store:   store,
		minGain: DefaultMinEstimatedGainPct,
		maxGain: DefaultMaxEstimatedGainPct,
		logger:  logger.With(slog.String("component", "analyzer")),
	}
}

// SetGainWindow overrides the estimated-gain acceptance window.
func (a *Analyzer) SetGainWindow(min, max float64) {
	a.minGain = min
	a.maxGain = max
}

// RunOnce enumerates candidate routes from the current rate snapshot and
// stores the acceptable new ones. It returns how many paths were created.
func (a *Analyzer) RunOnce(ctx context.Context, paused map[domain.LegKey]struct{}) (int, error) {
	snapshot := a.rates.Snapshot()
	if len(snapshot) == 0 {
		return 0, nil
	}

	existing, err := a.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("analyzer: list paths: %w", err)
	}

	created := 0
	for _, candidate := range a.enumerate(snapshot) {
		a.estimate(&candidate)
		if candidate.Gain < a.minGain {
			continue
		}
		if candidate.Gain > a.maxGain {
			a.logger.Debug("implausible estimated gain, skipping",
				slog.String("route", candidate.Route()),
				slog.Float64("gain", candidate.Gain),
			)
			continue
		}
		if _, isPaused := engine.Paused(&candidate, paused); isPaused {
			continue
		}
		if hasLivePath(existing, &candidate) {
			continue
		}

		candidate.ID = uuid.NewString()
		candidate.Status = domain.StatusBare
		if err := a.store.Create(ctx, candidate); err != nil {
			return created, fmt.Errorf("analyzer: create path: %w", err)
		}
		existing = append(existing, candidate)
		created++

		a.logger.Info("path candidate stored",
			slog.String("path", candidate.ID),
			slog.String("route", candidate.Route()),
			slog.Float64("estimated_gain", candidate.Gain),
		)
	}
	return created, nil
}

// enumerate builds every route market1 > coin1 > market2 > coin3 > market1
// expressible with the rates in the snapshot. A hop coin equal to the far
// market is allowed; that leg becomes a same-coin no-op.
func (a *Analyzer) enumerate(snapshot map[domain.LegKey]domain.Rate) []domain.Path {
	// Coins tradable per exchange and market.
	markets := make(map[string]map[string][]string)
	for key := range snapshot {
		if markets[key.Exchange] == nil {
			markets[key.Exchange] = make(map[string][]string)
		}
		markets[key.Exchange][key.Market] = append(markets[key.Exchange][key.Market], key.Coin)
	}

	var paths []domain.Path
	for exchange, byMarket := range markets {
		for market1 := range byMarket {
			for market2 := range byMarket {
				if market2 == market1 {
					continue
				}
				for _, coin1 := range hopCoins(byMarket, market1, market2) {
					for _, coin3 := range hopCoins(byMarket, market2, market1) {
						if coin3 == coin1 {
							continue
						}
						paths = append(paths, domain.Path{
							Exchange: exchange,
							Legs: [4]domain.Leg{
								{Market: market1, Coin: coin1},
								{Market: market2, Coin: coin1},
								{Market: market2, Coin: coin3},
								{Market: market1, Coin: coin3},
							},
						})
					}
				}
			}
		}
	}
	return paths
}

// hopCoins returns the coins that can carry value from one market to the
// other: coins quoted on both, plus the far market's own currency, which
// makes the far leg a no-op.
func hopCoins(byMarket map[string][]string, from, to string) []string {
	quoted := make(map[string]struct{})
	for _, c := range byMarket[to] {
		quoted[c] = struct{}{}
	}

	var coins []string
	for _, c := range byMarket[from] {
		if _, ok := quoted[c]; ok {
			coins = append(coins, c)
		}
	}
	coins = append(coins, to)
	return coins
}

// estimate fills the legs' rates from the snapshot and computes the fee-free
// estimated gain. Buys assume the ask, sells the bid; a same-coin leg
// carries rate 1. A missing rate zeroes the estimate.
func (a *Analyzer) estimate(p *domain.Path) {
	for step := 1; step <= 4; step++ {
		leg := p.Leg(step)
		if leg.NoOp() {
			leg.Rate = 1
			continue
		}
		rate, ok := a.rates.Get(domain.LegKey{Exchange: p.Exchange, Market: leg.Market, Coin: leg.Coin})
		if !ok {
			p.Gain = 0
			return
		}
		if p.Side(step) == domain.SideBuy {
			leg.Rate = rate.Ask
		} else {
			leg.Rate = rate.Bid
		}
	}

	p.Legs[0].MarketQuantity = 1
	engine.Calculate(p, 1)
	p.Legs[0].MarketQuantity = 0
}

// hasLivePath reports whether a stored path on the same route is still
// pending or trading. Terminal paths do not block a fresh candidate.
func hasLivePath(existing []domain.Path, candidate *domain.Path) bool {
	for i := range existing {
		if existing[i].Status.Terminal() {
			continue
		}
		if candidate.SameRoute(&existing[i]) {
			return true
		}
	}
	return false
}
