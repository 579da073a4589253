package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/pmoerman/quadbot/internal/domain"
)

func TestBalancesReserve(t *testing.T) {
	b := NewBalances()
	b.SetAvailable("alfa", "BTC", 1.0)

	if !b.Reserve("alfa", "BTC", 0.4) {
		t.Fatal("covered reservation refused")
	}
	if got := b.Available("alfa", "BTC"); got != 0.6 {
		t.Errorf("available = %v, want 0.6", got)
	}
	if b.Reserve("alfa", "BTC", 0.7) {
		t.Error("uncovered reservation accepted")
	}
	if got := b.Available("alfa", "BTC"); got != 0.6 {
		t.Errorf("failed reservation changed the balance: %v", got)
	}
}

func TestBalancesUnknownUnitIsZero(t *testing.T) {
	b := NewBalances()
	if got := b.Available("alfa", "XMR"); got != 0 {
		t.Errorf("available = %v, want 0", got)
	}
	if b.Reserve("alfa", "XMR", 0.0001) {
		t.Error("reservation against an unknown unit accepted")
	}
}

// Concurrent reservations must never overdraw: with 1.0 available, at most
// ten 0.1 reservations can succeed no matter how they interleave.
func TestBalancesConcurrentReserve(t *testing.T) {
	b := NewBalances()
	b.SetAvailable("alfa", "BTC", 1.0)

	var wg sync.WaitGroup
	granted := make(chan struct{}, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Reserve("alfa", "BTC", 0.1) {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	if count > 10 {
		t.Errorf("%d reservations granted against 1.0 available", count)
	}
	if b.Available("alfa", "BTC") < 0 {
		t.Errorf("balance overdrawn: %v", b.Available("alfa", "BTC"))
	}
}

func TestRatesFreshness(t *testing.T) {
	r := NewRates(50 * time.Millisecond)
	key := domain.LegKey{Exchange: "alfa", Market: "BTC", Coin: "XMR"}

	r.Set(key, 0.011, 0.010)
	got, ok := r.Get(key)
	if !ok {
		t.Fatal("fresh rate not found")
	}
	if got.Ask != 0.011 || got.Bid != 0.010 {
		t.Errorf("rate = %+v", got)
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := r.Get(key); ok {
		t.Error("stale rate still served")
	}
	if len(r.Snapshot()) != 0 {
		t.Error("stale rate still in snapshot")
	}
}

func TestRatesSnapshotIsACopy(t *testing.T) {
	r := NewRates(time.Minute)
	key := domain.LegKey{Exchange: "alfa", Market: "BTC", Coin: "XMR"}
	r.Set(key, 0.011, 0.010)

	snap := r.Snapshot()
	snap[key] = domain.Rate{Ask: 99}

	got, _ := r.Get(key)
	if got.Ask != 0.011 {
		t.Errorf("mutating the snapshot changed the cache: %+v", got)
	}
}
