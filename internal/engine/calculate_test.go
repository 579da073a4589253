package engine

import (
	"math"
	"testing"

	"github.com/pmoerman/quadbot/internal/domain"
)

func TestFeeFactor(t *testing.T) {
	if got := FeeFactor(0.0025, 2); math.Abs(got-0.995) > 1e-12 {
		t.Errorf("FeeFactor(0.0025, 2) = %v, want 0.995", got)
	}
	if got := FeeFactor(0, 2); got != 1 {
		t.Errorf("FeeFactor(0, 2) = %v, want 1", got)
	}
}

// With no fees, a path whose rate products cancel exactly must come out at
// zero gain, not a rounding artifact large enough to look profitable.
func TestCalculateFeeFreeRoundTrip(t *testing.T) {
	p := fourLegPath(0.01, 150, 50, 0.01*50/150)
	p.Legs[0].MarketQuantity = 0.5

	Calculate(p, 1)

	if math.Abs(p.Gain) > 1e-9 {
		t.Errorf("gain = %v, want 0", p.Gain)
	}
	if math.Abs(p.Legs[3].MarketQuantity-0.5) > 1e-12 {
		t.Errorf("final market quantity = %v, want 0.5", p.Legs[3].MarketQuantity)
	}
}

func TestCalculatePropagatesQuantities(t *testing.T) {
	p := fourLegPath(0.01, 150, 50, 0.0035)
	p.Legs[0].MarketQuantity = 1
	feeFactor := FeeFactor(0.0025, 2)

	Calculate(p, feeFactor)

	wantCoin1 := 1 / 0.01 * feeFactor
	if math.Abs(p.Legs[0].CoinQuantity-wantCoin1) > 1e-9 {
		t.Errorf("leg1 coin quantity = %v, want %v", p.Legs[0].CoinQuantity, wantCoin1)
	}
	if p.Legs[1].CoinQuantity != p.Legs[0].CoinQuantity {
		t.Error("leg2 does not sell what leg1 bought")
	}
	if p.Legs[2].MarketQuantity != p.Legs[1].MarketQuantity {
		t.Error("leg3 does not spend what leg2 earned")
	}
	if p.Legs[3].CoinQuantity != p.Legs[2].CoinQuantity {
		t.Error("leg4 does not sell what leg3 bought")
	}
}

// Running Calculate twice with unchanged inputs must not change anything:
// the propagation is a pure function of market-1 quantity and the rates.
func TestCalculateIdempotent(t *testing.T) {
	p := fourLegPath(0.01, 150, 50, 0.0035)
	p.Legs[0].MarketQuantity = 0.25

	Calculate(p, 0.995)
	first := *p
	Calculate(p, 0.995)

	if *p != first {
		t.Errorf("second Calculate changed the path:\n%+v\n%+v", first, *p)
	}
}

func TestCalculateZeroRateGivesZeroGain(t *testing.T) {
	tests := []struct {
		name string
		path *domain.Path
	}{
		{"zero buy rate", fourLegPath(0, 150, 50, 0.0035)},
		{"zero second buy rate", fourLegPath(0.01, 150, 0, 0.0035)},
		{"zero start quantity", fourLegPath(0.01, 150, 50, 0.0035)},
	}
	tests[0].path.Legs[0].MarketQuantity = 1
	tests[1].path.Legs[0].MarketQuantity = 1
	// Start quantity 0 makes the gain 0/0.

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Calculate(tt.path, 0.995)
			if tt.path.Gain != 0 {
				t.Errorf("gain = %v, want 0", tt.path.Gain)
			}
		})
	}
}
