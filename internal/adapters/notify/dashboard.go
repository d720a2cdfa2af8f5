package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

const (
	dashboardQueueSize = 256
	pingInterval       = 30 * time.Second
	redialDelay        = 5 * time.Second
	writeTimeout       = 10 * time.Second
	priceHistorySize   = 10
)

// Dashboard implements ports.Notifier by pushing JSON updates to a
// monitoring frontend over a websocket. Sends are queued and flushed by
// Run; a full queue drops the oldest update rather than blocking the
// engine.
type Dashboard struct {
	botName string
	url     string
	dialer  *websocket.Dialer
	queue   chan dashboardMsg

	mu     sync.Mutex
	prices []string // last trade prices, newest last
}

type dashboardMsg struct {
	Bot     string         `json:"bot"`
	Type    string         `json:"type"`
	Message map[string]any `json:"message"`
}

// NewDashboard creates a notifier targeting wss://<host>.
func NewDashboard(botName, host string) *Dashboard {
	return &Dashboard{
		botName: botName,
		url:     "wss://" + host,
		dialer:  websocket.DefaultDialer,
		queue:   make(chan dashboardMsg, dashboardQueueSize),
	}
}

// Run maintains the connection and flushes queued updates until ctx is
// canceled. Connection failures redial after a short delay; updates
// queued while disconnected are kept.
func (d *Dashboard) Run(ctx context.Context) {
	for {
		conn, _, err := d.dialer.DialContext(ctx, d.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("dashboard: connect failed", "url", d.url, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(redialDelay):
			}
			continue
		}
		slog.Info("dashboard: connected", "url", d.url)

		if !d.pump(ctx, conn) {
			conn.Close()
			return
		}
		conn.Close()
	}
}

// pump writes queued messages and keep-alive pings on one connection.
// Returns false when ctx ended, true when the connection should be
// re-established.
func (d *Dashboard) pump(ctx context.Context, conn *websocket.Conn) bool {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return false
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				slog.Warn("dashboard: ping failed, reconnecting", "err", err)
				return true
			}
		case msg := <-d.queue:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				slog.Warn("dashboard: send failed, reconnecting", "err", err)
				d.enqueue(msg) // keep the update for the next connection
				return true
			}
		}
	}
}

// SendTrade queues a trade update and records the price in the history
// ring attached to stats payloads.
func (d *Dashboard) SendTrade(_ context.Context, side domain.Side, amount, price decimal.Decimal, timestamp int64) error {
	d.addPrice(price)
	d.enqueue(dashboardMsg{
		Bot:  d.botName,
		Type: "trade",
		Message: map[string]any{
			"side":      string(side),
			"amount":    amount.String(),
			"price":     price.String(),
			"timestamp": timestamp,
		},
	})
	return nil
}

// SendStatus queues a rung-count update.
func (d *Dashboard) SendStatus(_ context.Context, activeCount, totalCount, completedCount int) error {
	d.enqueue(dashboardMsg{
		Bot:  d.botName,
		Type: "status",
		Message: map[string]any{
			"active":    activeCount,
			"total":     totalCount,
			"completed": completedCount,
		},
	})
	return nil
}

// SendStats queues profit aggregates plus the recent price history.
func (d *Dashboard) SendStats(_ context.Context, stats domain.ProfitStats) error {
	d.mu.Lock()
	prices := append([]string(nil), d.prices...)
	d.mu.Unlock()

	d.enqueue(dashboardMsg{
		Bot:  d.botName,
		Type: "stats",
		Message: map[string]any{
			"total_profit":   stats.Total.String(),
			"daily_profit":   stats.Daily.String(),
			"weekly_profit":  stats.Weekly.String(),
			"monthly_profit": stats.Monthly.String(),
			"prices":         prices,
		},
	})
	return nil
}

// SendError queues an error update.
func (d *Dashboard) SendError(_ context.Context, message string, timestamp int64) error {
	d.enqueue(dashboardMsg{
		Bot:  d.botName,
		Type: "error",
		Message: map[string]any{
			"message":   message,
			"timestamp": timestamp,
		},
	})
	return nil
}

func (d *Dashboard) addPrice(price decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prices = append(d.prices, price.String())
	if len(d.prices) > priceHistorySize {
		d.prices = d.prices[len(d.prices)-priceHistorySize:]
	}
}

func (d *Dashboard) enqueue(msg dashboardMsg) {
	for {
		select {
		case d.queue <- msg:
			return
		default:
		}
		// Queue full: drop the oldest update to make room.
		select {
		case <-d.queue:
			slog.Warn("dashboard: queue full, dropping oldest update")
		default:
		}
	}
}
