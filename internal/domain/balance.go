package domain

import "time"

// Balance is the funds in one unit (a coin or market currency) on one
// exchange, as reported by the exchange or held in the local cache.
type Balance struct {
	Total       float64
	Available   float64
	Reserved    float64 // held by open orders
	Unconfirmed float64 // deposits still confirming
}

// Spendable is what can actually be committed to a new order right now.
func (b Balance) Spendable() float64 {
	return b.Total - b.Reserved - b.Unconfirmed
}

// OpenOrder is one open limit order as reported by an exchange. It carries
// just enough to re-identify an order whose placement result was lost.
type OpenOrder struct {
	ID       string
	Market   string
	Coin     string
	Side     Side
	Quantity float64
	Rate     float64
	PlacedAt time.Time
}

// MinimumSizes maps exchange/market/coin to the minimum quantity that
// exchange accepts for a trade. A missing key means the exchange publishes
// no limit there.
type MinimumSizes map[LegKey]float64

// Lookup returns the minimum size for the key, and whether one is set.
func (m MinimumSizes) Lookup(exchange, market, coin string) (float64, bool) {
	size, ok := m[LegKey{Exchange: exchange, Market: market, Coin: coin}]
	return size, ok
}

// Pause is an active trading pause on one exchange/market/coin combination,
// imposed after an execution failure.
type Pause struct {
	Key    LegKey
	Reason string
	Until  time.Time
}

// Rate is a cached approximate ask/bid pair for one exchange/market/coin.
type Rate struct {
	Ask       float64
	Bid       float64
	UpdatedAt time.Time
}
