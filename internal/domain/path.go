// Package domain holds the core types shared across the quadbot packages.
package domain

import "fmt"

// Side indicates whether a trading step buys or sells the coin.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// LegKey identifies one tradable combination on one exchange. It is the unit
// of clash detection and of trading pauses.
type LegKey struct {
	Exchange string
	Market   string
	Coin     string
}

func (k LegKey) String() string {
	return k.Exchange + "/" + k.Market + "/" + k.Coin
}

// Leg is one of the four trading steps of a Path. Odd steps (1 and 3) buy the
// coin at the market; even steps (2 and 4) sell it. Rate is the ask for buy
// legs and the bid for sell legs. A leg whose Coin equals its Market is a
// no-op: nothing can be traded there, but the leg still occupies its slot in
// the state machine.
type Leg struct {
	Market         string
	Coin           string
	MarketQuantity float64
	CoinQuantity   float64
	Rate           float64
	OrderID        string
}

// NoOp reports whether this leg trades nothing because the coin is the same
// as the market.
func (l Leg) NoOp() bool {
	return l.Coin == l.Market
}

// Path is a four-leg trading route on one exchange: buy at market 1, sell at
// market 2, buy at market 3, sell back at market 4 (which equals market 1).
// Leg 1 feeds leg 2 and leg 3 feeds leg 4, so Legs[0].Coin == Legs[1].Coin
// and Legs[2].Coin == Legs[3].Coin by construction.
type Path struct {
	ID        string
	Exchange  string
	Legs      [4]Leg
	Gain      float64 // net gain over the whole path, in percent
	Status    Status
	Executing bool // set while a driver owns this path
}

// Leg returns the leg for the given 1-based step. Steps outside 1..4 are a
// programming error and panic.
func (p *Path) Leg(step int) *Leg {
	if step < 1 || step > 4 {
		panic(fmt.Sprintf("domain: step %d out of range", step))
	}
	return &p.Legs[step-1]
}

// Side returns the trading direction of the given step.
func (p *Path) Side(step int) Side {
	if step%2 == 1 {
		return SideBuy
	}
	return SideSell
}

// Key returns the clash/pause key for the given step.
func (p *Path) Key(step int) LegKey {
	l := p.Leg(step)
	return LegKey{Exchange: p.Exchange, Market: l.Market, Coin: l.Coin}
}

// TradingSteps counts the legs that place a real order, i.e. are not
// same-coin no-ops.
func (p *Path) TradingSteps() int {
	n := 0
	for _, l := range p.Legs {
		if !l.NoOp() {
			n++
		}
	}
	return n
}

// Route is a short human-readable description of the path, used in logs.
func (p *Path) Route() string {
	return p.Legs[0].Market + ">" + p.Legs[1].Coin + ">" + p.Legs[2].Market + ">" + p.Legs[3].Coin + ">" + p.Legs[3].Market
}

// SameRoute reports whether two paths trade the same legs on the same
// exchange, regardless of quantities, rates or status.
func (p *Path) SameRoute(q *Path) bool {
	if p.Exchange != q.Exchange {
		return false
	}
	for i := range p.Legs {
		if p.Legs[i].Market != q.Legs[i].Market || p.Legs[i].Coin != q.Legs[i].Coin {
			return false
		}
	}
	return true
}

// ScaleFrom multiplies the quantities of the given step and every later step
// by factor. It is applied when a step only partially filled, so the rest of
// the path shrinks to match what is actually available. The initial
// market-1 quantity is already spent and is left untouched.
func (p *Path) ScaleFrom(step int, factor float64) {
	if step <= 1 {
		p.Legs[0].CoinQuantity *= factor
		p.Legs[1].CoinQuantity *= factor
	}
	if step <= 2 {
		p.Legs[1].MarketQuantity *= factor
		p.Legs[2].MarketQuantity *= factor
	}
	if step <= 3 {
		p.Legs[2].CoinQuantity *= factor
		p.Legs[3].CoinQuantity *= factor
	}
	if step <= 4 {
		p.Legs[3].MarketQuantity *= factor
	}
}
