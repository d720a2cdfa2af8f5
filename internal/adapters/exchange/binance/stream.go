package binance

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

const (
	streamRetryDelay   = 5 * time.Second
	listenKeyKeepAlive = 30 * time.Minute
)

// WatchReferencePrice streams last-trade prices for the pair. The
// returned channel closes when ctx is canceled; transient stream errors
// reconnect after a short delay. A slow consumer loses ticks, never
// blocks the stream.
func (g *Gateway) WatchReferencePrice(ctx context.Context) (<-chan decimal.Decimal, error) {
	ch := make(chan decimal.Decimal, 64)
	streamURL := g.client.wsBase + "/ws/" + strings.ToLower(g.symbol) + "@trade"

	go func() {
		defer close(ch)
		for ctx.Err() == nil {
			if err := g.pumpPrices(ctx, streamURL, ch); err != nil && ctx.Err() == nil {
				slog.Warn("binance: price stream error, reconnecting",
					"symbol", g.symbol, "err", err)
				sleepCtx(ctx, streamRetryDelay)
			}
		}
	}()
	return ch, nil
}

func (g *Gateway) pumpPrices(ctx context.Context, streamURL string, ch chan<- decimal.Decimal) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", streamURL, err)
	}
	defer conn.Close()
	go closeOnDone(ctx, conn)

	for {
		var ev tradeEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if ev.EventType != "trade" {
			continue
		}
		price, err := parseDecimal("trade price", ev.Price)
		if err != nil {
			slog.Warn("binance: bad trade event", "err", err)
			continue
		}
		select {
		case ch <- price:
		default: // consumer is behind, drop the tick
		}
	}
}

// WatchOrderFills streams fills of the account's limit orders via the
// user-data stream. The channel closes when ctx is canceled; the listen
// key is kept alive for the life of each connection. Fills are never
// dropped: sends block until the engine takes them.
func (g *Gateway) WatchOrderFills(ctx context.Context) (<-chan domain.Trade, error) {
	ch := make(chan domain.Trade, 64)

	go func() {
		defer close(ch)
		for ctx.Err() == nil {
			if err := g.pumpFills(ctx, ch); err != nil && ctx.Err() == nil {
				slog.Warn("binance: user stream error, reconnecting", "err", err)
				sleepCtx(ctx, streamRetryDelay)
			}
		}
	}()
	return ch, nil
}

func (g *Gateway) pumpFills(ctx context.Context, ch chan<- domain.Trade) error {
	key, err := g.createListenKey(ctx)
	if err != nil {
		return err
	}

	streamURL := g.client.wsBase + "/ws/" + key
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return fmt.Errorf("dial user stream: %w", err)
	}
	defer conn.Close()
	go closeOnDone(ctx, conn)

	stop := make(chan struct{})
	defer close(stop)
	go g.keepListenKeyAlive(ctx, key, stop)

	for {
		var ev executionReport
		if err := conn.ReadJSON(&ev); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		// Only fully filled limit orders matter to the grid; the
		// initial market entries are tracked synchronously.
		if ev.EventType != "executionReport" || ev.OrderStatus != "FILLED" || ev.OrderType != "LIMIT" {
			continue
		}

		trade, err := g.tradeFromReport(ev)
		if err != nil {
			slog.Warn("binance: bad execution report", "order_id", ev.OrderID, "err", err)
			continue
		}
		select {
		case ch <- trade:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (g *Gateway) tradeFromReport(ev executionReport) (domain.Trade, error) {
	price, err := parseDecimal("price", ev.Price)
	if err != nil {
		return domain.Trade{}, err
	}
	amount, err := parseDecimal("filled qty", ev.FilledQty)
	if err != nil {
		return domain.Trade{}, err
	}
	cost, err := parseDecimal("filled quote qty", ev.FilledQuoteQty)
	if err != nil {
		return domain.Trade{}, err
	}
	return domain.Trade{
		OrderID:   orderIDString(ev.OrderID),
		Side:      mapSide(ev.Side),
		Symbol:    g.pair,
		Price:     price,
		Amount:    amount,
		Cost:      cost,
		Timestamp: ev.TransactionTime,
	}, nil
}

func (g *Gateway) createListenKey(ctx context.Context) (string, error) {
	var out listenKeyResponse
	if err := g.client.keyed(ctx, http.MethodPost, "/api/v3/userDataStream", nil, &out); err != nil {
		return "", fmt.Errorf("create listen key: %w", err)
	}
	return out.ListenKey, nil
}

// keepListenKeyAlive pings the listen key until the connection's pump
// stops. Binance expires idle keys after 60 minutes.
func (g *Gateway) keepListenKeyAlive(ctx context.Context, key string, stop <-chan struct{}) {
	ticker := time.NewTicker(listenKeyKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			q := url.Values{"listenKey": {key}}
			if err := g.client.keyed(ctx, http.MethodPut, "/api/v3/userDataStream", q, nil); err != nil {
				slog.Warn("binance: listen key keepalive failed", "err", err)
			}
		}
	}
}

// closeOnDone unblocks a pending read when the context ends.
func closeOnDone(ctx context.Context, conn *websocket.Conn) {
	<-ctx.Done()
	conn.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
