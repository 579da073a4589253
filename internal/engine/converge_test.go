package engine

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/pmoerman/quadbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// profitableRates returns rates whose round-trip product yields the given
// gain percentage on a fee-free venue.
func profitableRates(gainPct float64) (r1, r2, r3, r4 float64) {
	r1, r2, r3 = 0.01, 150, 50
	r4 = (1 + gainPct/100) * r1 / r2 * r3
	return
}

func deepBooksFor(p *domain.Path) [4]domain.Book {
	var books [4]domain.Book
	for i := range p.Legs {
		books[i] = deepBook(p.Legs[i].Rate)
	}
	return books
}

func TestRefineClassification(t *testing.T) {
	tests := []struct {
		name string
		gain float64
		want domain.Status
	}{
		// Four real trading steps raise the bar to 3.0.
		{"above the bar", 3.1, domain.StatusProfitable},
		{"below the bar", 2.5, domain.StatusUnprofitable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fourLegPath(profitableRates(tt.gain))
			venue := &fakeVenue{}
			conv := NewConverger(venue, nil, testLogger())

			books := deepBooksFor(p)
			conv.Refine(p, &books)

			if p.Status != tt.want {
				t.Errorf("status = %s, want %s", p.Status, tt.want)
			}
			if math.Abs(p.Gain-tt.gain) > 0.01 {
				t.Errorf("gain = %v, want about %v", p.Gain, tt.gain)
			}
		})
	}
}

// Seeding must stop at the smallest non-dust size: the first leg's notional
// value ends just above the BTC dust floor.
func TestRefineSeedsMinimalQuantity(t *testing.T) {
	p := fourLegPath(profitableRates(3.5))
	conv := NewConverger(&fakeVenue{}, nil, testLogger())

	books := deepBooksFor(p)
	conv.Refine(p, &books)

	notional := p.Legs[0].CoinQuantity * p.Legs[0].Rate
	if notional < 0.001 || notional > 0.001*1.1*1.05 {
		t.Errorf("leg1 notional = %v, want just above the 0.001 floor", notional)
	}
}

// A thin top level forces the buy rate up. The correction may only move the
// rate in the adverse direction and must lower the gain accordingly.
func TestRefineAdverseRateCorrection(t *testing.T) {
	p := fourLegPath(profitableRates(5))
	originalRate := p.Legs[0].Rate

	books := deepBooksFor(p)
	// Leg 1's best level is far too thin for any non-dust quantity; the
	// realistic rate is the 2% worse second level.
	books[0] = domain.Book{
		Quantities: []float64{1e-9, 1e6, 1e6, 1e6},
		Rates:      []float64{originalRate, originalRate * 1.02, originalRate * 1.03, originalRate * 1.04},
	}

	conv := NewConverger(&fakeVenue{}, nil, testLogger())
	conv.Refine(p, &books)

	if p.Legs[0].Rate <= originalRate {
		t.Errorf("buy rate = %v, want above %v", p.Legs[0].Rate, originalRate)
	}
	if math.Abs(p.Legs[0].Rate-originalRate*1.02) > 1e-9 {
		t.Errorf("buy rate = %v, want %v", p.Legs[0].Rate, originalRate*1.02)
	}
	if p.Gain >= 5 {
		t.Errorf("gain = %v, want below the uncorrected 5", p.Gain)
	}
}

// A sell leg's rate may only be corrected downward. A book whose realistic
// rate is better than assumed must leave the assumption alone.
func TestRefineIgnoresFavorableCorrection(t *testing.T) {
	p := fourLegPath(profitableRates(3.5))
	books := deepBooksFor(p)
	// Leg 2's buyers pay more than assumed.
	books[1] = deepBook(p.Legs[1].Rate * 1.05)

	conv := NewConverger(&fakeVenue{}, nil, testLogger())
	conv.Refine(p, &books)

	if p.Legs[1].Rate != 150.0 {
		t.Errorf("sell rate = %v, want the original 150", p.Legs[1].Rate)
	}
}

// When a rolled-up book cannot keep a spare level beyond the trade, the path
// is unjudgeable and must not look profitable.
func TestRefineShallowBookZeroesGain(t *testing.T) {
	p := fourLegPath(profitableRates(10))
	books := deepBooksFor(p)
	books[2] = domain.Book{
		Quantities: []float64{1e-9, 1e6},
		Rates:      []float64{p.Legs[2].Rate, p.Legs[2].Rate * 1.01},
	}

	conv := NewConverger(&fakeVenue{}, nil, testLogger())
	conv.Refine(p, &books)

	if p.Gain != 0 {
		t.Errorf("gain = %v, want 0", p.Gain)
	}
	if p.Status != domain.StatusUnprofitable {
		t.Errorf("status = %s, want %s", p.Status, domain.StatusUnprofitable)
	}
}

// An exchange minimum above the dust floor forces the quantity up past it.
func TestRefineGrowsPastExchangeMinimum(t *testing.T) {
	p := fourLegPath(profitableRates(3.5))
	minimums := domain.MinimumSizes{
		{Exchange: "alfa", Market: "BTC", Coin: "XMR"}: 1.0,
	}

	conv := NewConverger(&fakeVenue{}, minimums, testLogger())
	books := deepBooksFor(p)
	conv.Refine(p, &books)

	if p.Legs[0].CoinQuantity < 1.0 {
		t.Errorf("leg1 coin quantity = %v, want at least the 1.0 minimum", p.Legs[0].CoinQuantity)
	}
	if p.Status != domain.StatusProfitable {
		t.Errorf("status = %s, want profitable", p.Status)
	}
}

func TestRequiredGainCountsRealSteps(t *testing.T) {
	conv := NewConverger(&fakeVenue{}, nil, testLogger())

	p := fourLegPath(profitableRates(3))
	if got := conv.RequiredGain(p); math.Abs(got-3.0) > 1e-12 {
		t.Errorf("RequiredGain = %v, want 3.0", got)
	}

	// A same-coin leg places no order and must not raise the bar.
	p.Legs[1].Market = "XMR"
	p.Legs[1].Coin = "XMR"
	if got := conv.RequiredGain(p); math.Abs(got-2.25) > 1e-12 {
		t.Errorf("RequiredGain = %v, want 2.25", got)
	}
}

func TestInvestigateEmptyBookFails(t *testing.T) {
	p := fourLegPath(profitableRates(3.5))
	venue := &fakeVenue{books: map[string]domain.Book{
		bookKey("BTC", "XMR"):  deepBook(p.Legs[0].Rate),
		bookKey("USDT", "XMR"): deepBook(p.Legs[1].Rate),
		bookKey("USDT", "LTC"): deepBook(p.Legs[2].Rate),
		// BTC/LTC book missing.
	}}
	conv := NewConverger(venue, nil, testLogger())

	if err := conv.Investigate(context.Background(), p); err == nil {
		t.Fatal("expected an error for the missing book")
	}
}

func TestInvestigateClassifies(t *testing.T) {
	p := fourLegPath(profitableRates(4))
	venue := &fakeVenue{books: map[string]domain.Book{
		bookKey("BTC", "XMR"):  deepBook(p.Legs[0].Rate),
		bookKey("USDT", "XMR"): deepBook(p.Legs[1].Rate),
		bookKey("USDT", "LTC"): deepBook(p.Legs[2].Rate),
		bookKey("BTC", "LTC"):  deepBook(p.Legs[3].Rate),
	}}
	conv := NewConverger(venue, nil, testLogger())

	if err := conv.Investigate(context.Background(), p); err != nil {
		t.Fatalf("Investigate: %v", err)
	}
	if p.Status != domain.StatusProfitable {
		t.Errorf("status = %s, want profitable", p.Status)
	}
	if venue.bookCalls != 4 {
		t.Errorf("book calls = %d, want 4", venue.bookCalls)
	}
}
