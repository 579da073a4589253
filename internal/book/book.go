// Package book provides feasibility checks and roll-up operations on one
// side of an order book. All functions work on the visible depth only; they
// never consult an exchange.
package book

import "github.com/pmoerman/quadbot/internal/domain"

// defaultDustFloor applies to markets without a specific entry below.
const defaultDustFloor = 0.001

// dustFloors holds the minimum notional value per market currency below
// which exchanges reject a trade. The values are the highest observed across
// exchanges, so preferring them also prefers larger, more profitable trades.
var dustFloors = map[string]float64{
	"BTC":  0.001,
	"LTC":  0.01,
	"ETH":  0.0005,
	"DOGE": 100,
	"USDT": 1,
	"USD":  0.1,
}

// DustFloor returns the minimum notional value for trades on the given
// market currency.
func DustFloor(market string) float64 {
	if floor, ok := dustFloors[market]; ok {
		return floor
	}
	return defaultDustFloor
}

// IsGood reports whether the book has enough depth to work with: at least
// two price levels, or three when requireExtra is set. The extra level is
// required when checking whether a further roll-up would still leave a
// usable book.
func IsGood(b *domain.Book, requireExtra bool) bool {
	want := 2
	if requireExtra {
		want = 3
	}
	return len(b.Quantities) >= want && len(b.Rates) >= want
}

// IsDust reports whether trading quantity at rate on the given market falls
// below the market's notional floor, so an exchange would reject it.
func IsDust(market string, quantity, rate float64) bool {
	return quantity*rate < DustFloor(market)
}

// TooLow reports whether quantity is below the exchange's published minimum
// trade size for the market/coin. No published minimum means no limit.
func TooLow(minimums domain.MinimumSizes, exchange, market, coin string, quantity float64) bool {
	minimum, ok := minimums.Lookup(exchange, market, coin)
	if !ok {
		return false
	}
	return quantity < minimum
}

// mergeFront absorbs the best level into the next one: the front quantity is
// added to the following level and the front rate is dropped. This simulates
// a fill that eats through the best level and continues at the next price.
func mergeFront(b *domain.Book) {
	front := b.Quantities[0]
	b.Quantities = b.Quantities[1:]
	b.Rates = b.Rates[1:]
	b.Quantities[0] += front
}

// RollUpForDust merges dust-sized front levels into the next level, for as
// long as the front level is dust and the book stays usable. A book too
// small to merge is left as is.
func RollUpForDust(market string, b *domain.Book) {
	for IsGood(b, false) && IsDust(market, b.Quantities[0], b.Rates[0]) {
		mergeFront(b)
	}
}

// RollUpForMinimum merges front levels that fall below the exchange's
// minimum trade size into the next level, under the same stopping rules as
// RollUpForDust.
func RollUpForMinimum(minimums domain.MinimumSizes, exchange, market, coin string, b *domain.Book) {
	for IsGood(b, false) && TooLow(minimums, exchange, market, coin, b.Quantities[0]) {
		mergeFront(b)
	}
}

// FixRateForQuantity merges front levels until the front level alone can
// satisfy the target quantity, or the book runs out of depth. After the
// merge the front rate is the first unconsumed level's rate, which is the
// realistic price for a fill of that size.
func FixRateForQuantity(target float64, b *domain.Book) {
	for IsGood(b, false) && b.Quantities[0] < target {
		mergeFront(b)
	}
}
