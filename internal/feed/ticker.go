// Package feed streams exchange ticker updates into the in-process rate
// cache that the analyzer reads.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pmoerman/quadbot/internal/cache"
	"github.com/pmoerman/quadbot/internal/domain"
)

const (
	dialTimeout    = 15 * time.Second
	pingInterval   = 30 * time.Second
	readTimeout    = 75 * time.Second
	writeTimeout   = 10 * time.Second
	reconnectDelay = 2 * time.Second
)

// tickerEvent is one ticker message from an exchange stream.
type tickerEvent struct {
	Market string  `json:"market"`
	Coin   string  `json:"coin"`
	Ask    float64 `json:"ask"`
	Bid    float64 `json:"bid"`
}

// TickerFeed keeps one exchange's ticker stream connected and writes every
// update into the rate cache. The approximate rates only seed path
// generation; convergence re-checks everything against full order books, so
// a briefly stale cache costs opportunities, not money.
type TickerFeed struct {
	exchange string
	wsURL    string
	rates    *cache.Rates
	logger   *slog.Logger
}

// NewTickerFeed creates a feed for one exchange.
func NewTickerFeed(exchange, wsURL string, rates *cache.Rates, logger *slog.Logger) *TickerFeed {
	return &TickerFeed{
		exchange: exchange,
		wsURL:    wsURL,
		rates:    rates,
		logger: logger.With(
			slog.String("component", "ticker_feed"),
			slog.String("exchange", exchange),
		),
	}
}

// Run connects and consumes ticker events until ctx is cancelled,
// reconnecting with a fixed delay on any failure.
func (f *TickerFeed) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("ticker stream disconnected, reconnecting", slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (f *TickerFeed) runConnection(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, f.wsURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	sub := map[string]string{"command": "subscribe", "channel": "ticker"}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.Info("ticker stream subscribed")

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	// Ping keeps intermediaries from dropping a quiet connection; the pong
	// pushes the read deadline forward.
	go f.pingLoop(ctx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		f.handleMessage(data)
	}
}

func (f *TickerFeed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (f *TickerFeed) handleMessage(data []byte) {
	var ev tickerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		f.logger.Debug("unparseable ticker message",
			slog.String("error", err.Error()),
			slog.Int("payload_len", len(data)),
		)
		return
	}
	if ev.Market == "" || ev.Coin == "" || ev.Ask <= 0 || ev.Bid <= 0 {
		return
	}

	key := domain.LegKey{Exchange: f.exchange, Market: ev.Market, Coin: ev.Coin}
	f.rates.Set(key, ev.Ask, ev.Bid)
}
