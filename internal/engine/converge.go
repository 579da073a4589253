package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pmoerman/quadbot/internal/book"
	"github.com/pmoerman/quadbot/internal/domain"
)

const (
	// seedQuantity is the starting market-1 quantity for the convergence
	// search. Starting tiny and growing avoids assuming a market-impacting
	// size on thin books.
	seedQuantity = 1e-5
	// seedGrowth multiplies the seed while it is still dust, seedRounds
	// times at most.
	seedGrowth = 1.05
	seedRounds = 1000
	// quantityGrowth is the only way the size grows after seeding: +10%
	// whenever a leg is dust or below an exchange minimum.
	quantityGrowth = 1.1
	// maxRounds bounds the refinement loop.
	maxRounds = 50
	// DefaultGainPerStepPct raises the profitability bar by this much per
	// real trading step.
	DefaultGainPerStepPct = 0.75
)

// Converger finds a trade size and corrected rates for a path that are
// executable against live order books and profitable enough for the number
// of real trading steps involved.
type Converger struct {
	venue           Venue
	minimums        domain.MinimumSizes
	feeApplications int
	gainPerStepPct  float64
	logger          *slog.Logger
}

// NewConverger creates a Converger with the default fee margin and
// profitability bar.
func NewConverger(venue Venue, minimums domain.MinimumSizes, logger *slog.Logger) *Converger {
	return &Converger{
		venue:           venue,
		minimums:        minimums,
		feeApplications: DefaultFeeApplications,
		gainPerStepPct:  DefaultGainPerStepPct,
		logger:          logger.With(slog.String("component", "converger")),
	}
}

// SetFeeApplications overrides how many times the trade fee is deducted per
// leg.
func (c *Converger) SetFeeApplications(n int) {
	if n > 0 {
		c.feeApplications = n
	}
}

// SetGainPerStep overrides the per-step profitability bar, in percent.
func (c *Converger) SetGainPerStep(pct float64) {
	if pct > 0 {
		c.gainPerStepPct = pct
	}
}

// RequiredGain returns the gain bar for the path: every leg that places a
// real order raises it.
func (c *Converger) RequiredGain(p *domain.Path) float64 {
	return c.gainPerStepPct * float64(p.TradingSteps())
}

// Investigate fetches the four legs' order books concurrently and runs
// Refine against them. It returns an error when any non-no-op leg has no
// visible book, in which case the path cannot be judged at all.
func (c *Converger) Investigate(ctx context.Context, p *domain.Path) error {
	var books [4]domain.Book

	g, gctx := errgroup.WithContext(ctx)
	for step := 1; step <= 4; step++ {
		if p.Leg(step).NoOp() {
			continue
		}
		step := step
		g.Go(func() error {
			leg := p.Leg(step)
			b, err := c.venue.OrderBook(gctx, p.Exchange, leg.Market, leg.Coin, bookSide(step))
			if err != nil {
				return fmt.Errorf("engine: order book %s: %w", p.Key(step), err)
			}
			books[step-1] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for step := 1; step <= 4; step++ {
		if !p.Leg(step).NoOp() && books[step-1].Empty() {
			return fmt.Errorf("engine: order book %s: %w", p.Key(step), domain.ErrEmptyBook)
		}
	}

	c.Refine(p, &books)
	return nil
}

// Refine runs the bounded fixed-point search of the convergence algorithm
// and classifies the path profitable or unprofitable. The books are the
// live snapshots for the four legs, indexed by step-1; no-op legs may carry
// an empty book.
func (c *Converger) Refine(p *domain.Path, books *[4]domain.Book) {
	log := c.logger.With(slog.String("path", p.ID), slog.String("route", p.Route()))

	feeFactor := FeeFactor(c.venue.TradeFee(p.Exchange), c.feeApplications)

	// Seed: grow from a tiny quantity until the first buy is no longer
	// dust. This finds the smallest workable starting point.
	p.Legs[0].MarketQuantity = seedQuantity
	Calculate(p, feeFactor)
	for i := 0; book.IsDust(p.Legs[0].Market, p.Legs[0].CoinQuantity, p.Legs[0].Rate) && i < seedRounds; i++ {
		p.Legs[0].MarketQuantity *= seedGrowth
		Calculate(p, feeFactor)
	}

	okay := true
	rounds := 0
	for {
		rounds++
		updated := false
		grow := false

		Calculate(p, feeFactor)

		for step := 1; step <= 4; step++ {
			leg := p.Leg(step)
			if leg.NoOp() {
				log.Debug("skip same-coin leg", slog.Int("step", step), slog.String("market", leg.Market))
				continue
			}

			switch {
			case book.IsDust(leg.Market, leg.CoinQuantity, leg.Rate):
				log.Debug("leg is dust",
					slog.Int("step", step),
					slog.Float64("quantity", leg.CoinQuantity),
					slog.Float64("rate", leg.Rate),
				)
				grow = true
				updated = true

			case book.TooLow(c.minimums, p.Exchange, leg.Market, leg.Coin, leg.CoinQuantity):
				log.Debug("leg below exchange minimum",
					slog.Int("step", step),
					slog.Float64("quantity", leg.CoinQuantity),
				)
				grow = true
				updated = true

			default:
				// Roll a copy of the book up to the leg's required quantity
				// and take the realistic rate from it. The stored rate may
				// only move in the adverse direction: correction converges
				// the assumption toward what the market will actually give,
				// it never manufactures feasibility.
				rolled := books[step-1].Clone()
				book.FixRateForQuantity(leg.CoinQuantity, &rolled)
				if !book.IsGood(&rolled, true) {
					okay = false
					continue
				}
				corrected := rolled.Rates[0]
				adverse := false
				if p.Side(step) == domain.SideBuy {
					adverse = corrected > leg.Rate
				} else {
					adverse = corrected < leg.Rate
				}
				if adverse {
					log.Debug("rate corrected",
						slog.Int("step", step),
						slog.Float64("from", leg.Rate),
						slog.Float64("to", corrected),
					)
					leg.Rate = corrected
					updated = true
				}
			}
		}

		// Growing the quantity is the only lever that clears a dust or
		// minimum-size floor.
		if grow {
			p.Legs[0].MarketQuantity *= quantityGrowth
			log.Debug("growing start quantity",
				slog.Float64("market1_quantity", p.Legs[0].MarketQuantity),
			)
		}

		Calculate(p, feeFactor)

		if rounds >= maxRounds {
			okay = false
			break
		}
		if !updated {
			break
		}
		if p.Gain < 0 {
			// No point refining a losing path.
			break
		}
	}

	if !okay {
		p.Gain = 0
	}

	required := c.RequiredGain(p)
	if p.Gain >= required {
		p.Status = domain.StatusProfitable
	} else {
		p.Status = domain.StatusUnprofitable
	}
	log.Info("path converged",
		slog.String("path", p.ID),
		slog.Float64("gain", p.Gain),
		slog.Float64("required", required),
		slog.String("status", string(p.Status)),
		slog.Int("rounds", rounds),
	)
}
