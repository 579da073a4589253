// Package engine implements the multipath core: path valuation, the
// convergence search for an executable and profitable trade size, the
// step-wise execution state machine, and clash/pause coordination between
// concurrently driven paths.
package engine

import (
	"math"

	"github.com/pmoerman/quadbot/internal/domain"
)

// DefaultFeeApplications is how many times the venue's trade fee is deducted
// per leg. The fee is applied twice as a safety margin against fee-schedule
// uncertainty, not as a measured value.
const DefaultFeeApplications = 2

// FeeFactor converts a fractional trade fee into the multiplier applied to
// every leg's proceeds.
func FeeFactor(fee float64, applications int) float64 {
	return 1 - float64(applications)*fee
}

// Calculate propagates the committed market-1 quantity through all four legs
// at the path's current rates, deducting fees at every leg, and recomputes
// the net gain percentage. A NaN or Inf anywhere (a zero rate, for instance)
// forces the gain to 0: no signal, not an error.
func Calculate(p *domain.Path, feeFactor float64) {
	l1 := &p.Legs[0]
	l2 := &p.Legs[1]
	l3 := &p.Legs[2]
	l4 := &p.Legs[3]

	// Step 1: buy coin 1 at market 1. Fees reduce what the buy yields.
	l1.CoinQuantity = l1.MarketQuantity / l1.Rate * feeFactor

	// The coin just bought is what step 2 sells.
	l2.CoinQuantity = l1.CoinQuantity

	// Step 2: sell coin 2 at market 2.
	l2.MarketQuantity = l2.Rate * l2.CoinQuantity * feeFactor

	// The proceeds fund the step 3 buy.
	l3.MarketQuantity = l2.MarketQuantity

	// Step 3: buy coin 3 at market 3.
	l3.CoinQuantity = l3.MarketQuantity / l3.Rate * feeFactor

	// The coin just bought is what step 4 sells.
	l4.CoinQuantity = l3.CoinQuantity

	// Step 4: sell coin 4 back at the origin market.
	l4.MarketQuantity = l4.Rate * l4.CoinQuantity * feeFactor

	p.Gain = (l4.MarketQuantity - l1.MarketQuantity) / l1.MarketQuantity * 100

	if unreal(p.Gain) || unreal(l1.CoinQuantity) || unreal(l2.MarketQuantity) ||
		unreal(l3.CoinQuantity) || unreal(l4.MarketQuantity) {
		p.Gain = 0
	}
}

func unreal(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}
