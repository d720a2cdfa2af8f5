package grid

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// Initialize builds or restores the grid. Any failure is reported via an
// error notification and returned to the caller: initialization failure
// is fatal to the run, there is no partial-grid retry.
func (e *Engine) Initialize(ctx context.Context, freshStart bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.initialize(ctx, freshStart); err != nil {
		e.notifyError(ctx, err)
		return fmt.Errorf("grid.Initialize: %w", err)
	}
	return nil
}

func (e *Engine) initialize(ctx context.Context, freshStart bool) error {
	if !freshStart {
		rungs, err := e.store.Load(ctx, e.cfg.BaseAsset())
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if len(rungs) > 0 {
			return e.resume(ctx, rungs)
		}
		// No snapshot: fall through and build a grid from scratch,
		// without touching whatever orders already exist on the venue.
	} else {
		if err := e.freshStart(ctx); err != nil {
			return fmt.Errorf("fresh start: %w", err)
		}
	}

	return e.buildGrid(ctx)
}

// resume restores a persisted rung set. The increment is recomputed from
// the live price; the rungs themselves are left untouched and the next
// health pass reconciles them against the venue.
func (e *Engine) resume(ctx context.Context, rungs []domain.OrderPair) error {
	price, err := e.gateway.FetchReferencePrice(ctx)
	if err != nil {
		return fmt.Errorf("fetch reference price: %w", err)
	}
	e.increment = domain.GridIncrement(price, e.cfg.GridPercent)
	e.registry.Restore(rungs)

	slog.Info("grid: resumed from snapshot",
		"pair", e.cfg.Pair,
		"rungs", e.registry.ActiveCount(),
		"increment", e.increment)
	e.notifyStatus(ctx)
	return nil
}

// freshStart cancels every open order on the venue, liquidates any free
// base-asset position and clears both ledgers.
func (e *Engine) freshStart(ctx context.Context) error {
	open, err := e.gateway.FetchOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("fetch open orders: %w", err)
	}
	for _, o := range open {
		if err := e.gateway.CancelOrder(ctx, o.ID); err != nil {
			return fmt.Errorf("cancel order %s: %w", o.ID, err)
		}
	}

	balances, err := e.gateway.FetchBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	if position := balances[e.cfg.BaseAsset()]; position.IsPositive() {
		if _, err := e.gateway.PlaceMarketSell(ctx, position); err != nil {
			return fmt.Errorf("liquidate position %s: %w", position, err)
		}
		slog.Info("grid: liquidated position", "asset", e.cfg.BaseAsset(), "amount", position)
	}

	e.registry.Reset()
	return nil
}

// buildGrid places the initial market entry, its paired sell and the
// ladder of limit buys below the reference price.
func (e *Engine) buildGrid(ctx context.Context) error {
	price, err := e.gateway.FetchReferencePrice(ctx)
	if err != nil {
		return fmt.Errorf("fetch reference price: %w", err)
	}
	e.increment = domain.GridIncrement(price, e.cfg.GridPercent)

	// Zero-state baseline so an observer sees the counters reset before
	// any order exists.
	e.notifyStatus(ctx)

	quote := e.cfg.QuotePerTrade()
	amount := domain.AmountAt(quote, price)

	entry, err := e.gateway.PlaceMarketBuy(ctx, amount)
	if err != nil {
		return fmt.Errorf("initial market buy: %w", err)
	}
	first := domain.OrderPair{
		BuyOrderID: entry.ID,
		BuyPrice:   price,
		BuyKind:    domain.KindMarket,
		BuyStatus:  domain.StatusClosed,
		Amount:     amount,
		CreatedAt:  orderTimestamp(entry),
	}

	sellPrice := price.Add(e.increment)
	sell, err := e.gateway.PlaceLimitSell(ctx, amount, sellPrice)
	if err != nil {
		return fmt.Errorf("initial sell at %s: %w", sellPrice, err)
	}
	first.SellOrderID = sell.ID
	first.SellPrice = sellPrice
	e.registry.Add(first)

	for i := 1; i < e.cfg.GridCount; i++ {
		buyPrice := price.Sub(e.increment.Mul(decimal.NewFromInt(int64(i))))
		buyAmount := domain.AmountAt(quote, buyPrice)

		ref, err := e.gateway.PlaceLimitBuy(ctx, buyAmount, buyPrice)
		if err != nil {
			return fmt.Errorf("grid buy %d at %s: %w", i, buyPrice, err)
		}
		e.registry.Add(domain.OrderPair{
			BuyOrderID: ref.ID,
			BuyPrice:   buyPrice,
			BuyKind:    domain.KindLimit,
			BuyStatus:  domain.StatusOpen,
			Amount:     buyAmount,
			CreatedAt:  orderTimestamp(ref),
		})
	}

	e.persist(ctx)
	slog.Info("grid: initialized",
		"pair", e.cfg.Pair,
		"price", price,
		"increment", e.increment,
		"rungs", e.registry.ActiveCount())
	e.notifyStatus(ctx)
	return nil
}

// orderTimestamp prefers the venue's timestamp, falling back to local
// time when the venue omits it.
func orderTimestamp(ref domain.OrderRef) int64 {
	if ref.Timestamp > 0 {
		return ref.Timestamp
	}
	return nowMillis()
}
