package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pmoerman/quadbot/internal/domain"
)

// fakeVenue is an in-memory Venue keyed by market/coin. The side is ignored:
// tests store the one book the leg under test will ask for.
type fakeVenue struct {
	books      map[string]domain.Book
	balances   map[string]domain.Balance
	openOrders []domain.OpenOrder
	fee        float64
	ease       float64

	bookErr     error
	placeErr    error
	placeID     string
	placeCalls  int
	bookCalls   int
	ordersCalls int
}

func bookKey(market, coin string) string {
	return market + "/" + coin
}

func (v *fakeVenue) OrderBook(_ context.Context, _, market, coin string, _ domain.Side) (domain.Book, error) {
	v.bookCalls++
	if v.bookErr != nil {
		return domain.Book{}, v.bookErr
	}
	b, ok := v.books[bookKey(market, coin)]
	if !ok {
		return domain.Book{}, nil
	}
	return b.Clone(), nil
}

func (v *fakeVenue) Balances(context.Context, string) (map[string]domain.Balance, error) {
	if v.balances == nil {
		return nil, errors.New("no balances")
	}
	out := make(map[string]domain.Balance, len(v.balances))
	for k, b := range v.balances {
		out[k] = b
	}
	return out, nil
}

func (v *fakeVenue) PlaceLimitOrder(_ context.Context, _, _, _ string, _ domain.Side, _, _ float64) (string, error) {
	v.placeCalls++
	if v.placeErr != nil {
		return "", v.placeErr
	}
	if v.placeID != "" {
		return v.placeID, nil
	}
	return fmt.Sprintf("ord-%d", v.placeCalls), nil
}

func (v *fakeVenue) OpenOrders(context.Context, string) ([]domain.OpenOrder, error) {
	v.ordersCalls++
	return v.openOrders, nil
}

func (v *fakeVenue) TradeFee(string) float64 { return v.fee }

func (v *fakeVenue) OrderEasePercent(string) float64 { return v.ease }

// fakeBalances is a trivial BalanceKeeper; engine tests are single-goroutine
// so no locking is needed.
type fakeBalances struct {
	available map[string]float64
}

func balanceKey(exchange, unit string) string {
	return exchange + "/" + unit
}

func (b *fakeBalances) Available(exchange, unit string) float64 {
	return b.available[balanceKey(exchange, unit)]
}

func (b *fakeBalances) SetAvailable(exchange, unit string, quantity float64) {
	b.available[balanceKey(exchange, unit)] = quantity
}

func (b *fakeBalances) Reserve(exchange, unit string, quantity float64) bool {
	key := balanceKey(exchange, unit)
	if b.available[key] < quantity {
		return false
	}
	b.available[key] -= quantity
	return true
}

type pauseRecord struct {
	key      domain.LegKey
	duration time.Duration
	reason   string
}

type fakePauser struct {
	pauses []pauseRecord
}

func (p *fakePauser) Pause(_ context.Context, key domain.LegKey, d time.Duration, reason string) error {
	p.pauses = append(p.pauses, pauseRecord{key: key, duration: d, reason: reason})
	return nil
}

// fakeStore records every Update so tests can assert persistence happened.
type fakeStore struct {
	updates []domain.Path
}

func (s *fakeStore) Create(context.Context, domain.Path) error { return nil }

func (s *fakeStore) Update(_ context.Context, p domain.Path) error {
	s.updates = append(s.updates, p)
	return nil
}

func (s *fakeStore) GetByID(context.Context, string) (domain.Path, error) {
	return domain.Path{}, domain.ErrNotFound
}

func (s *fakeStore) List(context.Context) ([]domain.Path, error) { return nil, nil }

func (s *fakeStore) Delete(context.Context, string) error { return nil }

func (s *fakeStore) Expire(context.Context, time.Duration) (int, error) { return 0, nil }

// deepBook returns a three-level book with effectively unlimited depth at the
// given best rate, so quantity roll-ups never move the rate.
func deepBook(bestRate float64) domain.Book {
	return domain.Book{
		Quantities: []float64{1e6, 1e6, 1e6},
		Rates:      []float64{bestRate, bestRate * 1.01, bestRate * 1.02},
	}
}

// fourLegPath builds a BTC > XMR > USDT > LTC > BTC path on exchange alfa
// with the given per-leg rates.
func fourLegPath(r1, r2, r3, r4 float64) *domain.Path {
	return &domain.Path{
		ID:       "p1",
		Exchange: "alfa",
		Status:   domain.StatusBare,
		Legs: [4]domain.Leg{
			{Market: "BTC", Coin: "XMR", Rate: r1},
			{Market: "USDT", Coin: "XMR", Rate: r2},
			{Market: "USDT", Coin: "LTC", Rate: r3},
			{Market: "BTC", Coin: "LTC", Rate: r4},
		},
	}
}
