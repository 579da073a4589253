// Package exchange implements the REST clients for the trading venues and
// aggregates them behind the engine's Venue interface.
package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pmoerman/quadbot/internal/domain"
)

// Config holds one exchange's endpoint, credentials and trading parameters.
type Config struct {
	Name             string
	BaseURL          string
	APIKey           string
	APISecret        string
	TradeFeePercent  float64 // taker fee, in percent
	OrderEasePercent float64 // price concession on limit orders, in percent
}

// Client is the REST client for one exchange. Public endpoints are plain
// GETs; private endpoints are form POSTs signed with HMAC-SHA512 over the
// body, with a strictly increasing nonce.
type Client struct {
	cfg        Config
	httpClient *http.Client
	nonce      atomic.Int64
}

// NewClient creates a Client for the given exchange.
func NewClient(cfg Config) *Client {
	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	// Nonces must outlive restarts; the wall clock in microseconds does.
	c.nonce.Store(time.Now().UnixMicro())
	return c
}

// Name returns the exchange's configured name.
func (c *Client) Name() string { return c.cfg.Name }

// TradeFee returns the taker fee as a fraction.
func (c *Client) TradeFee() float64 { return c.cfg.TradeFeePercent / 100 }

// OrderEasePercent returns the configured limit-price concession.
func (c *Client) OrderEasePercent() float64 { return c.cfg.OrderEasePercent }

// OrderBook fetches one side of the book for a market/coin pair, best rate
// first.
func (c *Client) OrderBook(ctx context.Context, market, coin string, side domain.Side) (domain.Book, error) {
	params := url.Values{}
	params.Set("market", market)
	params.Set("coin", coin)

	body, err := c.get(ctx, "/public/orderbook", params)
	if err != nil {
		return domain.Book{}, fmt.Errorf("exchange %s: order book %s/%s: %w", c.cfg.Name, market, coin, err)
	}

	var resp struct {
		Asks []bookLevel `json:"asks"`
		Bids []bookLevel `json:"bids"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Book{}, fmt.Errorf("exchange %s: decode order book: %w", c.cfg.Name, err)
	}

	levels := resp.Asks
	if side == domain.SideBuy {
		levels = resp.Bids
	}
	book := domain.Book{
		Quantities: make([]float64, len(levels)),
		Rates:      make([]float64, len(levels)),
	}
	for i, l := range levels {
		book.Quantities[i] = l.Quantity
		book.Rates[i] = l.Rate
	}
	return book, nil
}

// Balances fetches the per-unit balances of the account.
func (c *Client) Balances(ctx context.Context) (map[string]domain.Balance, error) {
	body, err := c.post(ctx, "balances", url.Values{})
	if err != nil {
		return nil, fmt.Errorf("exchange %s: balances: %w", c.cfg.Name, err)
	}

	var resp struct {
		Balances map[string]struct {
			Total       float64 `json:"total"`
			Available   float64 `json:"available"`
			Reserved    float64 `json:"reserved"`
			Unconfirmed float64 `json:"unconfirmed"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("exchange %s: decode balances: %w", c.cfg.Name, err)
	}

	balances := make(map[string]domain.Balance, len(resp.Balances))
	for unit, b := range resp.Balances {
		balances[unit] = domain.Balance{
			Total:       b.Total,
			Available:   b.Available,
			Reserved:    b.Reserved,
			Unconfirmed: b.Unconfirmed,
		}
	}
	return balances, nil
}

// PlaceLimitOrder submits a limit order and returns the exchange's order ID.
// An empty ID with a nil error means the exchange answered but did not name
// the order; the caller must treat the placement as ambiguous.
func (c *Client) PlaceLimitOrder(ctx context.Context, market, coin string, side domain.Side, quantity, rate float64) (string, error) {
	params := url.Values{}
	params.Set("market", market)
	params.Set("coin", coin)
	params.Set("side", string(side))
	params.Set("quantity", formatFloat(quantity))
	params.Set("rate", formatFloat(rate))

	body, err := c.post(ctx, "placeLimitOrder", params)
	if err != nil {
		return "", fmt.Errorf("exchange %s: place %s %s/%s: %w", c.cfg.Name, side, market, coin, err)
	}

	var resp struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("exchange %s: decode order response: %w", c.cfg.Name, err)
	}
	return resp.OrderID, nil
}

// OpenOrders lists the account's open limit orders.
func (c *Client) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	body, err := c.post(ctx, "openOrders", url.Values{})
	if err != nil {
		return nil, fmt.Errorf("exchange %s: open orders: %w", c.cfg.Name, err)
	}

	var resp struct {
		Orders []struct {
			ID       string  `json:"id"`
			Market   string  `json:"market"`
			Coin     string  `json:"coin"`
			Side     string  `json:"side"`
			Quantity float64 `json:"quantity"`
			Rate     float64 `json:"rate"`
			PlacedAt int64   `json:"placedAt"` // Unix seconds
		} `json:"orders"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("exchange %s: decode open orders: %w", c.cfg.Name, err)
	}

	orders := make([]domain.OpenOrder, len(resp.Orders))
	for i, o := range resp.Orders {
		orders[i] = domain.OpenOrder{
			ID:       o.ID,
			Market:   o.Market,
			Coin:     o.Coin,
			Side:     domain.Side(o.Side),
			Quantity: o.Quantity,
			Rate:     o.Rate,
			PlacedAt: time.Unix(o.PlacedAt, 0),
		}
	}
	return orders, nil
}

// MinimumSizes fetches the exchange's published minimum order sizes.
func (c *Client) MinimumSizes(ctx context.Context) (domain.MinimumSizes, error) {
	body, err := c.get(ctx, "/public/limits", url.Values{})
	if err != nil {
		return nil, fmt.Errorf("exchange %s: limits: %w", c.cfg.Name, err)
	}

	var resp struct {
		Limits []struct {
			Market  string  `json:"market"`
			Coin    string  `json:"coin"`
			Minimum float64 `json:"minimum"`
		} `json:"limits"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("exchange %s: decode limits: %w", c.cfg.Name, err)
	}

	sizes := make(domain.MinimumSizes, len(resp.Limits))
	for _, l := range resp.Limits {
		sizes[domain.LegKey{Exchange: c.cfg.Name, Market: l.Market, Coin: l.Coin}] = l.Minimum
	}
	return sizes, nil
}

type bookLevel struct {
	Quantity float64 `json:"quantity"`
	Rate     float64 `json:"rate"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.cfg.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// post sends a signed private request. The command and the nonce travel in
// the form body; the signature is hex HMAC-SHA512 of the exact body bytes.
func (c *Client) post(ctx context.Context, command string, params url.Values) ([]byte, error) {
	params.Set("command", command)
	params.Set("nonce", strconv.FormatInt(c.nonce.Add(1), 10))
	body := params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/private", strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Key", c.cfg.APIKey)
	req.Header.Set("Sign", signHMACSHA512(c.cfg.APISecret, body))

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func signHMACSHA512(secret, body string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// formatFloat renders quantities and rates without exponent notation, which
// some exchange parsers reject.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
