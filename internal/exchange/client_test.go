package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/pmoerman/quadbot/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		Name:      "alfa",
		BaseURL:   srv.URL,
		APIKey:    "key",
		APISecret: "secret",
	})
}

func TestOrderBookSides(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/public/orderbook" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("market") != "BTC" || r.URL.Query().Get("coin") != "XMR" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		io.WriteString(w, `{
			"asks": [{"quantity": 5, "rate": 0.011}, {"quantity": 7, "rate": 0.012}],
			"bids": [{"quantity": 3, "rate": 0.010}]
		}`)
	})

	asks, err := c.OrderBook(context.Background(), "BTC", "XMR", domain.SideSell)
	if err != nil {
		t.Fatalf("OrderBook asks: %v", err)
	}
	if asks.Levels() != 2 || asks.Rates[0] != 0.011 {
		t.Errorf("asks = %+v", asks)
	}

	bids, err := c.OrderBook(context.Background(), "BTC", "XMR", domain.SideBuy)
	if err != nil {
		t.Fatalf("OrderBook bids: %v", err)
	}
	if bids.Levels() != 1 || bids.Rates[0] != 0.010 {
		t.Errorf("bids = %+v", bids)
	}
}

// Private requests carry the API key, a signature over the exact body bytes,
// and a strictly increasing nonce.
func TestPrivateRequestSigning(t *testing.T) {
	var nonces []int64
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		if got := r.Header.Get("Key"); got != "key" {
			t.Errorf("Key header = %q", got)
		}
		mac := hmac.New(sha512.New, []byte("secret"))
		mac.Write(body)
		if got, want := r.Header.Get("Sign"), hex.EncodeToString(mac.Sum(nil)); got != want {
			t.Errorf("Sign header = %q, want %q", got, want)
		}

		form, err := url.ParseQuery(string(body))
		if err != nil {
			t.Fatalf("parse body: %v", err)
		}
		nonce, err := strconv.ParseInt(form.Get("nonce"), 10, 64)
		if err != nil {
			t.Fatalf("parse nonce %q: %v", form.Get("nonce"), err)
		}
		nonces = append(nonces, nonce)

		io.WriteString(w, `{"balances": {}}`)
	})

	for i := 0; i < 3; i++ {
		if _, err := c.Balances(context.Background()); err != nil {
			t.Fatalf("Balances: %v", err)
		}
	}
	for i := 1; i < len(nonces); i++ {
		if nonces[i] <= nonces[i-1] {
			t.Errorf("nonce %d not increasing: %v", i, nonces)
		}
	}
}

func TestPlaceLimitOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		if form.Get("command") != "placeLimitOrder" {
			t.Errorf("command = %q", form.Get("command"))
		}
		if form.Get("side") != "buy" || form.Get("market") != "BTC" || form.Get("coin") != "XMR" {
			t.Errorf("form = %v", form)
		}
		// No exponent notation in quantities.
		if form.Get("quantity") != "0.00001" {
			t.Errorf("quantity = %q, want 0.00001", form.Get("quantity"))
		}
		io.WriteString(w, `{"orderId": "abc-123"}`)
	})

	id, err := c.PlaceLimitOrder(context.Background(), "BTC", "XMR", domain.SideBuy, 0.00001, 0.011)
	if err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}
	if id != "abc-123" {
		t.Errorf("order ID = %q", id)
	}
}

// A well-formed response without an order ID is not an error: the caller has
// to treat the placement as ambiguous.
func TestPlaceLimitOrderNoID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	})

	id, err := c.PlaceLimitOrder(context.Background(), "BTC", "XMR", domain.SideBuy, 1, 0.011)
	if err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}
	if id != "" {
		t.Errorf("order ID = %q, want empty", id)
	}
}

func TestErrorStatusSurfaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	})

	if _, err := c.OpenOrders(context.Background()); err == nil {
		t.Fatal("expected an error for a 429 response")
	}
}

func TestMinimumSizesKeyedByExchange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"limits": [{"market": "BTC", "coin": "XMR", "minimum": 0.1}]}`)
	})

	sizes, err := c.MinimumSizes(context.Background())
	if err != nil {
		t.Fatalf("MinimumSizes: %v", err)
	}
	size, ok := sizes.Lookup("alfa", "BTC", "XMR")
	if !ok || size != 0.1 {
		t.Errorf("sizes = %v", sizes)
	}
}

func TestVenueRouting(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"asks": [], "bids": []}`)
	})
	v := NewVenue(c)

	if _, err := v.OrderBook(context.Background(), "alfa", "BTC", "XMR", domain.SideSell); err != nil {
		t.Errorf("known exchange: %v", err)
	}
	if _, err := v.OrderBook(context.Background(), "bravo", "BTC", "XMR", domain.SideSell); err == nil {
		t.Error("unknown exchange did not error")
	}
}
