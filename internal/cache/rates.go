package cache

import (
	"sync"
	"time"

	"github.com/pmoerman/quadbot/internal/domain"
)

// Rates caches the latest approximate ask/bid per exchange/market/coin, fed
// by the ticker feeds and read by the analyzer. Entries older than the TTL
// are treated as absent: a stale rate generates paths that convergence will
// only reject later, at order-book cost.
type Rates struct {
	mu    sync.RWMutex
	ttl   time.Duration
	rates map[domain.LegKey]domain.Rate
}

// NewRates creates a rate cache with the given staleness bound.
func NewRates(ttl time.Duration) *Rates {
	return &Rates{ttl: ttl, rates: make(map[domain.LegKey]domain.Rate)}
}

// Set records the latest rate for the key, stamped now.
func (r *Rates) Set(key domain.LegKey, ask, bid float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates[key] = domain.Rate{Ask: ask, Bid: bid, UpdatedAt: time.Now()}
}

// Get returns the cached rate for the key if it exists and is fresh.
func (r *Rates) Get(key domain.LegKey) (domain.Rate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rate, ok := r.rates[key]
	if !ok || time.Since(rate.UpdatedAt) > r.ttl {
		return domain.Rate{}, false
	}
	return rate, true
}

// Snapshot returns all fresh rates, keyed by leg. The analyzer iterates this
// to enumerate candidate routes.
func (r *Rates) Snapshot() map[domain.LegKey]domain.Rate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[domain.LegKey]domain.Rate, len(r.rates))
	for k, v := range r.rates {
		if time.Since(v.UpdatedAt) > r.ttl {
			continue
		}
		out[k] = v
	}
	return out
}
