package engine

import (
	"context"
	"time"

	"github.com/pmoerman/quadbot/internal/domain"
)

// Venue is the slice of exchange behavior the engine calls. It is typically
// implemented by the REST exchange client; tests use a fake.
type Venue interface {
	// OrderBook returns one side of the book, best price first. Pass
	// SideSell to get the sellers (asks, what a buy eats into) and SideBuy
	// to get the buyers (bids, what a sell eats into).
	OrderBook(ctx context.Context, exchange, market, coin string, side domain.Side) (domain.Book, error)
	// Balances returns the live per-unit balances at the exchange.
	Balances(ctx context.Context, exchange string) (map[string]domain.Balance, error)
	// PlaceLimitOrder submits a limit order and returns the exchange's order
	// ID. An empty ID with a nil error means the outcome is ambiguous.
	PlaceLimitOrder(ctx context.Context, exchange, market, coin string, side domain.Side, quantity, rate float64) (string, error)
	// OpenOrders lists the currently open orders at the exchange.
	OpenOrders(ctx context.Context, exchange string) ([]domain.OpenOrder, error)
	// TradeFee returns the exchange's trading fee as a fraction.
	TradeFee(exchange string) float64
	// OrderEasePercent returns how far, in percent, limit prices are nudged
	// in the trader's favor to reduce unfilled orders.
	OrderEasePercent(exchange string) float64
}

// BalanceKeeper is the shared balance cache. Reserve performs the
// check-and-debit under one lock, so two concurrent steps can never both
// pass a balance check against the same pre-debit figure.
type BalanceKeeper interface {
	Available(exchange, unit string) float64
	SetAvailable(exchange, unit string, quantity float64)
	// Reserve debits quantity from the available balance if it is covered
	// and reports whether the reservation was made.
	Reserve(exchange, unit string, quantity float64) bool
}

// Pauser imposes temporary trading pauses on exchange/market/coin
// combinations after execution failures.
type Pauser interface {
	Pause(ctx context.Context, key domain.LegKey, d time.Duration, reason string) error
}

// bookSide returns which side of the book a step needs: a buy eats into the
// sellers, a sell into the buyers.
func bookSide(step int) domain.Side {
	if step%2 == 1 {
		return domain.SideSell
	}
	return domain.SideBuy
}
