package exchange

import (
	"context"
	"fmt"

	"github.com/pmoerman/quadbot/internal/domain"
)

// Venue routes engine calls to the right per-exchange client. An unknown
// exchange is a configuration error, not a trading condition.
type Venue struct {
	clients map[string]*Client
}

// NewVenue creates a Venue over the given clients, keyed by their configured
// names.
func NewVenue(clients ...*Client) *Venue {
	m := make(map[string]*Client, len(clients))
	for _, c := range clients {
		m[c.Name()] = c
	}
	return &Venue{clients: m}
}

// Names returns the configured exchange names.
func (v *Venue) Names() []string {
	names := make([]string, 0, len(v.clients))
	for name := range v.clients {
		names = append(names, name)
	}
	return names
}

// Client returns the client for one exchange.
func (v *Venue) Client(exchange string) (*Client, error) {
	c, ok := v.clients[exchange]
	if !ok {
		return nil, fmt.Errorf("exchange: unknown exchange %q", exchange)
	}
	return c, nil
}

func (v *Venue) OrderBook(ctx context.Context, exchange, market, coin string, side domain.Side) (domain.Book, error) {
	c, err := v.Client(exchange)
	if err != nil {
		return domain.Book{}, err
	}
	return c.OrderBook(ctx, market, coin, side)
}

func (v *Venue) Balances(ctx context.Context, exchange string) (map[string]domain.Balance, error) {
	c, err := v.Client(exchange)
	if err != nil {
		return nil, err
	}
	return c.Balances(ctx)
}

func (v *Venue) PlaceLimitOrder(ctx context.Context, exchange, market, coin string, side domain.Side, quantity, rate float64) (string, error) {
	c, err := v.Client(exchange)
	if err != nil {
		return "", err
	}
	return c.PlaceLimitOrder(ctx, market, coin, side, quantity, rate)
}

func (v *Venue) OpenOrders(ctx context.Context, exchange string) ([]domain.OpenOrder, error) {
	c, err := v.Client(exchange)
	if err != nil {
		return nil, err
	}
	return c.OpenOrders(ctx)
}

// TradeFee returns the exchange's taker fee as a fraction, or 0 for an
// unknown exchange; convergence on an unknown exchange fails earlier, at the
// order-book fetch.
func (v *Venue) TradeFee(exchange string) float64 {
	if c, ok := v.clients[exchange]; ok {
		return c.TradeFee()
	}
	return 0
}

// OrderEasePercent returns the exchange's limit-price concession.
func (v *Venue) OrderEasePercent(exchange string) float64 {
	if c, ok := v.clients[exchange]; ok {
		return c.OrderEasePercent()
	}
	return 0
}
