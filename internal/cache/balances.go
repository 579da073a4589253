// Package cache holds the in-process caches shared by concurrently running
// path drivers: per-exchange balances and approximate market rates.
package cache

import "sync"

type balanceKey struct {
	exchange string
	unit     string
}

// Balances is the shared available-balance cache. Placement debits it
// optimistically through Reserve; balance verification writes fresh figures
// back through SetAvailable. The lock is held only for the map operation,
// never across a network call.
type Balances struct {
	mu        sync.Mutex
	available map[balanceKey]float64
}

// NewBalances creates an empty balance cache.
func NewBalances() *Balances {
	return &Balances{available: make(map[balanceKey]float64)}
}

// Available returns the cached available quantity for one unit on one
// exchange. An unknown unit reads as zero.
func (b *Balances) Available(exchange, unit string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available[balanceKey{exchange: exchange, unit: unit}]
}

// SetAvailable overwrites the cached quantity for one unit.
func (b *Balances) SetAvailable(exchange, unit string, quantity float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.available[balanceKey{exchange: exchange, unit: unit}] = quantity
}

// Reserve debits quantity from the unit's available balance if it is fully
// covered and reports whether the debit was made. Check and debit happen
// under one lock so concurrent reservations cannot both pass against the
// same pre-debit figure. A reservation is never credited back; fresher
// figures arrive via SetAvailable.
func (b *Balances) Reserve(exchange, unit string, quantity float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := balanceKey{exchange: exchange, unit: unit}
	if b.available[key] < quantity {
		return false
	}
	b.available[key] -= quantity
	return true
}
