package grid

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

// Config holds the grid parameters for one trading pair.
type Config struct {
	Pair           string // "BTC/USDT"
	Investment     decimal.Decimal
	GridCount      int
	GridPercent    decimal.Decimal
	HealthInterval time.Duration
}

// BaseAsset returns the traded asset of the pair ("BTC" for "BTC/USDT").
// It doubles as the snapshot key.
func (c Config) BaseAsset() string {
	base, _, _ := strings.Cut(c.Pair, "/")
	return base
}

// QuotePerTrade is the quote-currency budget of a single rung.
func (c Config) QuotePerTrade() decimal.Decimal {
	return domain.QuotePerTrade(c.Investment, c.GridCount)
}

// Engine is the reconciliation state machine. It owns the Registry and
// the grid increment; every mutation (initialization, fill handling,
// health check) serializes through mu, so two fills for the same rung
// are never processed concurrently even when the fill stream and the
// health timer race.
type Engine struct {
	cfg      Config
	gateway  ports.ExchangeGateway
	store    ports.SnapshotStore
	notifier ports.Notifier
	registry *Registry

	mu        sync.Mutex
	increment decimal.Decimal

	priceMu   sync.RWMutex
	lastPrice decimal.Decimal
}

// New creates an engine with all collaborators injected.
func New(cfg Config, gateway ports.ExchangeGateway, store ports.SnapshotStore, notifier ports.Notifier) *Engine {
	return &Engine{
		cfg:      cfg,
		gateway:  gateway,
		store:    store,
		notifier: notifier,
		registry: NewRegistry(),
	}
}

// Increment returns the grid increment computed at initialization.
func (e *Engine) Increment() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.increment
}

// Registry exposes the ledger for inspection in tests and reporting.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Run starts the engine's event sources and blocks until ctx is
// canceled: the fill watcher, the ticker watcher and the health-check
// timer each run as their own goroutine and funnel into the mutex-
// guarded mutation methods. In-flight gateway calls at shutdown are
// abandoned; the next health pass repairs whatever they left behind.
func (e *Engine) Run(ctx context.Context) error {
	fills, err := e.gateway.WatchOrderFills(ctx)
	if err != nil {
		return err
	}
	prices, err := e.gateway.WatchReferencePrice(ctx)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for trade := range fills {
			if err := e.OnTrade(ctx, trade); err != nil {
				slog.Error("grid: fill handling failed",
					"order_id", trade.OrderID, "side", trade.Side, "err", err)
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for price := range prices {
			e.priceMu.Lock()
			e.lastPrice = price
			e.priceMu.Unlock()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(e.cfg.HealthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.HealthCheck(ctx); err != nil {
					slog.Error("grid: health check failed", "err", err)
				}
			}
		}
	}()

	wg.Wait()
	slog.Info("grid: engine stopped", "pair", e.cfg.Pair)
	return nil
}

// LastPrice returns the most recent streamed reference price, zero if
// no tick has arrived yet.
func (e *Engine) LastPrice() decimal.Decimal {
	e.priceMu.RLock()
	defer e.priceMu.RUnlock()
	return e.lastPrice
}

// persist saves the active rung set. A write failure is logged and the
// engine continues in memory: the next successful health pass
// re-persists.
func (e *Engine) persist(ctx context.Context) {
	if err := e.store.Save(ctx, e.cfg.BaseAsset(), e.registry.Active()); err != nil {
		slog.Warn("grid: snapshot save failed", "asset", e.cfg.BaseAsset(), "err", err)
	}
}

// notifyStatus pushes rung counts and profit aggregates. Notification
// failures never block a mutation path.
func (e *Engine) notifyStatus(ctx context.Context) {
	active := e.registry.ActiveCount()
	completed := e.registry.CompletedCount()
	if err := e.notifier.SendStatus(ctx, active, e.cfg.GridCount, completed); err != nil {
		slog.Warn("grid: status notification failed", "err", err)
	}
	if err := e.notifier.SendStats(ctx, e.profitStats(time.Now())); err != nil {
		slog.Warn("grid: stats notification failed", "err", err)
	}
}

func (e *Engine) notifyTrade(ctx context.Context, trade domain.Trade) {
	if err := e.notifier.SendTrade(ctx, trade.Side, trade.Amount, trade.Price, trade.Timestamp); err != nil {
		slog.Warn("grid: trade notification failed", "err", err)
	}
}

func (e *Engine) notifyError(ctx context.Context, err error) {
	if sendErr := e.notifier.SendError(ctx, err.Error(), nowMillis()); sendErr != nil {
		slog.Warn("grid: error notification failed", "err", sendErr)
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
