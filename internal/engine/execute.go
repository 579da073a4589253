package engine

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/pmoerman/quadbot/internal/book"
	"github.com/pmoerman/quadbot/internal/domain"
)

const (
	// Cooldowns imposed on a leg's exchange/market/coin after a failed
	// pre-trade check. Depth problems pause longest; balance and size
	// problems clear faster.
	pauseNoBook        = 5 * time.Minute
	pauseShallowBook   = 60 * time.Minute
	pauseMarketBalance = 120 * time.Minute
	pauseCoinBalance   = 5 * time.Minute
	pauseRateDrift     = 5 * time.Minute
	pauseDustOrMinimum = 15 * time.Minute

	// driftTolerancePct is the rate drift, in percent, below which no
	// further judgment is needed.
	driftTolerancePct = 0.1
	// DriftGainBufferPct is added to the drift before comparing against the
	// path's gain. A tunable heuristic: drift is tolerated only while it
	// stays this far under the expected gain.
	DriftGainBufferPct = 2.0
	// minSizeMargin is the slack applied on top of an exchange's published
	// minimum order size.
	minSizeMargin = 1.005
	// openOrderMaxAge is how far back VerifyLimitOrder will match an open
	// order; older similar-looking orders are likely not ours.
	openOrderMaxAge = 5 * time.Hour
	// openOrderRateTolerance is the relative rate band for matching an
	// uncertain order against the open orders list.
	openOrderRateTolerance = 0.02

	// maxBalanceRetries bounds balance verification; past it the path is
	// beyond automatic recovery.
	maxBalanceRetries        = 5
	defaultBalanceRetryDelay = 2 * time.Second
)

// Executor drives a single trading step of a path: order placement,
// uncertain-order resolution, and balance verification. It mutates the
// path's status, quantities and order IDs in place; the caller persists the
// path after every invocation.
type Executor struct {
	venue      Venue
	balances   BalanceKeeper
	pauser     Pauser
	minimums   domain.MinimumSizes
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(venue Venue, balances BalanceKeeper, pauser Pauser, minimums domain.MinimumSizes, logger *slog.Logger) *Executor {
	return &Executor{
		venue:      venue,
		balances:   balances,
		pauser:     pauser,
		minimums:   minimums,
		retryDelay: defaultBalanceRetryDelay,
		logger:     logger.With(slog.String("component", "executor")),
	}
}

// SetRetryDelay overrides the pause between balance verification retries.
func (e *Executor) SetRetryDelay(d time.Duration) {
	e.retryDelay = d
}

// abort moves the path into the error state and pauses the offending leg.
// Fills from earlier steps stand; the scheduler will not touch this leg
// again until the pause expires.
func (e *Executor) abort(ctx context.Context, p *domain.Path, step int, d time.Duration, reason string) {
	p.Status = domain.StatusError
	key := p.Key(step)
	if err := e.pauser.Pause(ctx, key, d, reason); err != nil {
		e.logger.Warn("pause failed",
			slog.String("key", key.String()),
			slog.String("error", err.Error()),
		)
	}
	e.logger.Warn("step aborted",
		slog.String("path", p.ID),
		slog.Int("step", step),
		slog.String("reason", reason),
		slog.Duration("pause", d),
	)
}

// PlaceLimitOrder runs the placement phase for the given step: fetch a fresh
// book, derive a depth-aware rate, reserve balance under the cache lock,
// re-validate, and submit the order. On an ambiguous submission result the
// path moves to the uncertain state instead of retrying, since the exchange
// may have accepted the order despite the bad response.
func (e *Executor) PlaceLimitOrder(ctx context.Context, p *domain.Path, step int) {
	leg := p.Leg(step)

	// Nothing to trade when the coin is the market itself. The balance that
	// was good for the market is equally good for the coin.
	if leg.NoOp() {
		p.Status = domain.StatusBalanceGood(step)
		return
	}

	buy := p.Side(step) == domain.SideBuy
	log := e.logger.With(
		slog.String("path", p.ID),
		slog.Int("step", step),
		slog.String("side", string(p.Side(step))),
		slog.String("key", p.Key(step).String()),
	)
	log.Info("placing limit order",
		slog.Float64("coin_quantity", leg.CoinQuantity),
		slog.Float64("expected_rate", leg.Rate),
	)

	bk, err := e.venue.OrderBook(ctx, p.Exchange, leg.Market, leg.Coin, bookSide(step))
	if err != nil || bk.Empty() {
		e.abort(ctx, p, step, pauseNoBook, "order book unavailable")
		return
	}

	// Some quantities cannot be had at the best rate; rolling the book up
	// tells what rate a fill of this size really costs.
	book.FixRateForQuantity(leg.CoinQuantity, &bk)
	if !book.IsGood(&bk, false) {
		e.abort(ctx, p, step, pauseShallowBook, "order book too shallow for quantity")
		return
	}
	rate := bk.Rates[0]

	// Concede a little price to get filled: pay slightly more when buying,
	// accept slightly less when selling. Unfilled limit orders otherwise
	// accumulate on the exchanges.
	ease := e.venue.OrderEasePercent(p.Exchange)
	if buy {
		rate += rate * ease / 100
	} else {
		rate -= rate * ease / 100
	}

	// Reserve the balance this order will commit. The check and the debit
	// happen under one lock inside the keeper, so no two steps can both
	// pass against the same pre-debit figure. The reservation is never
	// rolled back: understating the balance is safer than double-spending.
	if buy {
		required := leg.CoinQuantity * rate
		if !e.balances.Reserve(p.Exchange, leg.Market, required) {
			e.abort(ctx, p, step, pauseMarketBalance, "market balance too low")
			return
		}
		log.Debug("reserved market balance", slog.Float64("required", required))
	} else {
		if !e.balances.Reserve(p.Exchange, leg.Coin, leg.CoinQuantity) {
			e.abort(ctx, p, step, pauseCoinBalance, "coin balance too low")
			return
		}
		log.Debug("reserved coin balance", slog.Float64("required", leg.CoinQuantity))
	}

	// The live rate may have drifted away from the converged assumption.
	// A drift is tolerated while it stays comfortably under the path's
	// gain; beyond that, walk away rather than chase a worse price.
	drift := math.Abs(rate-leg.Rate) / leg.Rate * 100
	if drift > driftTolerancePct {
		log.Info("rate drifted",
			slog.Float64("expected", leg.Rate),
			slog.Float64("current", rate),
			slog.Float64("drift_pct", drift),
			slog.Float64("gain", p.Gain),
		)
		if drift+DriftGainBufferPct > p.Gain {
			e.abort(ctx, p, step, pauseRateDrift, "rate drift exceeds remaining margin")
			return
		}
	}

	// Dust and minimum-size checks at the live rate.
	if buy {
		if book.IsDust(leg.Market, leg.CoinQuantity*rate*0.999, 1) {
			e.abort(ctx, p, step, pauseDustOrMinimum, "market quantity is dust at live rate")
			return
		}
	} else {
		if book.IsDust(leg.Market, leg.CoinQuantity, rate) {
			e.abort(ctx, p, step, pauseDustOrMinimum, "coin quantity is dust at live rate")
			return
		}
	}
	if minimum, ok := e.minimums.Lookup(p.Exchange, leg.Market, leg.Coin); ok && minimum > 0 {
		if leg.CoinQuantity < minimum*minSizeMargin {
			e.abort(ctx, p, step, pauseDustOrMinimum, "below exchange minimum order size")
			return
		}
	}

	orderID, err := e.venue.PlaceLimitOrder(ctx, p.Exchange, leg.Market, leg.Coin, p.Side(step), leg.CoinQuantity, rate)
	if err != nil {
		// The request failed but the exchange may have accepted the order
		// anyway. Treat it as ambiguous; retrying risks a duplicate trade.
		log.Warn("order placement ambiguous", slog.String("error", err.Error()))
		orderID = ""
	}
	leg.OrderID = orderID
	if orderID == "" {
		p.Status = domain.StatusOrderUncertain(step)
		log.Warn("order outcome uncertain")
	} else {
		p.Status = domain.StatusOrderPlaced(step)
		log.Info("order placed", slog.String("order_id", orderID))
	}
}

// VerifyLimitOrder tries to locate the order ID of an uncertain placement by
// scanning the exchange's open orders for a recent order on the same market
// and coin at nearly the same rate. A filled order will not appear here, so
// a miss leaves the order ID empty and balance verification settles it.
func (e *Executor) VerifyLimitOrder(ctx context.Context, p *domain.Path, step int) {
	leg := p.Leg(step)
	if leg.NoOp() {
		return
	}

	log := e.logger.With(
		slog.String("path", p.ID),
		slog.Int("step", step),
		slog.String("key", p.Key(step).String()),
	)
	log.Info("locating uncertain order", slog.Float64("rate", leg.Rate))

	orders, err := e.venue.OpenOrders(ctx, p.Exchange)
	if err != nil {
		log.Warn("open orders unavailable", slog.String("error", err.Error()))
		return
	}

	for _, o := range orders {
		if o.Market != leg.Market || o.Coin != leg.Coin {
			continue
		}
		// Skip stale orders so an old similar-looking order is not mistaken
		// for this one. The quantity is deliberately not compared: some
		// exchanges report only the remaining quantity.
		if age := time.Since(o.PlacedAt); age > openOrderMaxAge {
			log.Debug("skipping old open order",
				slog.String("order_id", o.ID),
				slog.Duration("age", age),
			)
			continue
		}
		if leg.Rate > o.Rate*(1+openOrderRateTolerance) || leg.Rate < o.Rate*(1-openOrderRateTolerance) {
			continue
		}
		leg.OrderID = o.ID
		log.Info("order located", slog.String("order_id", o.ID))
		return
	}
	log.Info("order not located")
}

// VerifyBalance checks whether the step's proceeds have arrived: the coin
// quantity after a buy, the market quantity after a sell. The best of the
// cached and the live exchange balance decides. Full availability advances
// the path; at least 95% shrinks the remaining legs to the partial fill and
// advances; anything less retries after a short pause, and past
// maxBalanceRetries the path is beyond automatic recovery.
func (e *Executor) VerifyBalance(ctx context.Context, p *domain.Path, step int, retries *int) {
	leg := p.Leg(step)
	buy := p.Side(step) == domain.SideBuy

	var unit string
	var quantity float64
	if buy {
		unit, quantity = leg.Coin, leg.CoinQuantity
	} else {
		unit, quantity = leg.Market, leg.MarketQuantity
	}

	log := e.logger.With(
		slog.String("path", p.ID),
		slog.Int("step", step),
		slog.String("unit", unit),
	)
	log.Info("verifying balance", slog.Float64("expected", quantity))

	cachedFactor := e.balances.Available(p.Exchange, unit) / quantity

	liveFactor := 0.0
	if balances, err := e.venue.Balances(ctx, p.Exchange); err == nil {
		if b, ok := balances[unit]; ok {
			liveFactor = b.Spendable() / quantity
		}
	} else {
		log.Warn("live balances unavailable", slog.String("error", err.Error()))
	}

	factor := math.Max(cachedFactor, liveFactor)
	log.Debug("balance factors",
		slog.Float64("cached", cachedFactor),
		slog.Float64("live", liveFactor),
	)

	// Write the winning figure back so the next step reads a consistent
	// balance without another exchange round trip.
	e.balances.SetAvailable(p.Exchange, unit, factor*quantity)

	switch {
	case factor >= 1:
		p.Status = domain.StatusAfterBalance(step)
		log.Info("balance good")

	case factor >= 0.95:
		// A partial fill; shrink the rest of the path to match.
		p.ScaleFrom(step, factor)
		p.Status = domain.StatusAfterBalance(step)
		log.Info("balance nearly good, scaling remaining legs",
			slog.Float64("factor", factor),
		)

	default:
		*retries++
		if *retries > maxBalanceRetries {
			p.Status = domain.StatusUnrecoverable
			log.Error("balance never converged", slog.Int("retries", *retries))
			return
		}
		log.Info("balance insufficient, will retry",
			slog.Float64("factor", factor),
			slog.Int("retry", *retries),
		)
		select {
		case <-ctx.Done():
		case <-time.After(e.retryDelay):
		}
	}
}
