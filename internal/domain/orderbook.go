package domain

// Book is one side of an order book for one exchange/market/coin: parallel
// quantity and rate slices, one entry per price level, best price first.
// Books are fetched fresh for each convergence attempt or execution step and
// never shared; roll-up operations work on a Clone.
type Book struct {
	Quantities []float64
	Rates      []float64
}

// Levels returns the number of price levels.
func (b *Book) Levels() int {
	return len(b.Quantities)
}

// Empty reports whether the book has no levels at all.
func (b *Book) Empty() bool {
	return len(b.Quantities) == 0
}

// TotalQuantity sums the quantity across all levels. Roll-ups conserve this.
func (b *Book) TotalQuantity() float64 {
	total := 0.0
	for _, q := range b.Quantities {
		total += q
	}
	return total
}

// Clone returns a deep copy, so the caller can roll up levels without
// touching the original snapshot.
func (b *Book) Clone() Book {
	c := Book{
		Quantities: make([]float64, len(b.Quantities)),
		Rates:      make([]float64, len(b.Rates)),
	}
	copy(c.Quantities, b.Quantities)
	copy(c.Rates, b.Rates)
	return c
}
