package grid

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// OnTrade processes one fill event. The trade notification goes out
// before the mutation, the status notification and the snapshot after.
// A failed order placement is reported and left for the next health
// pass; the engine never auto-retries.
func (e *Engine) OnTrade(ctx context.Context, trade domain.Trade) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.notifyTrade(ctx, trade)

	var err error
	switch trade.Side {
	case domain.SideBuy:
		err = e.handleBuyFill(ctx, trade)
	case domain.SideSell:
		err = e.handleSellFill(ctx, trade)
	default:
		err = fmt.Errorf("unknown side %q", trade.Side)
	}
	if err != nil {
		e.notifyError(ctx, err)
		return fmt.Errorf("grid.OnTrade: %s fill %s: %w", trade.Side, trade.OrderID, err)
	}

	e.persist(ctx)
	e.notifyStatus(ctx)
	return nil
}

// handleBuyFill attaches a sell leg one increment above the fill price.
// A fill for an order the engine lost track of gets a synthesized rung
// from the trade itself.
func (e *Engine) handleBuyFill(ctx context.Context, trade domain.Trade) error {
	i := e.registry.FindByBuyOrder(trade.OrderID)
	if i < 0 {
		slog.Warn("grid: buy fill for untracked order, synthesizing rung",
			"order_id", trade.OrderID, "price", trade.Price)
		e.registry.Add(domain.OrderPair{
			BuyOrderID: trade.OrderID,
			BuyPrice:   trade.Price,
			BuyKind:    domain.KindLimit,
			BuyStatus:  domain.StatusOpen,
			Amount:     trade.Amount,
			CreatedAt:  trade.Timestamp,
		})
		i = e.registry.ActiveCount() - 1
	}

	rung := e.registry.Get(i)
	sellPrice := trade.Price.Add(e.increment)
	ref, err := e.gateway.PlaceLimitSell(ctx, trade.Amount, sellPrice)
	if err != nil {
		return fmt.Errorf("place sell at %s: %w", sellPrice, err)
	}

	rung.SellOrderID = ref.ID
	rung.SellPrice = sellPrice
	rung.BuyStatus = domain.StatusClosed
	e.registry.Update(i, rung)

	slog.Info("grid: buy filled, sell placed",
		"buy_price", trade.Price, "sell_price", sellPrice, "amount", trade.Amount)
	return nil
}

// handleSellFill retires the rung and re-buys at its original entry
// price: each rung perpetually harvests the same spread no matter how
// many times it cycles. When the filled sell was the last active sell
// leg, the grid has fallen behind a rising market and trails up.
func (e *Engine) handleSellFill(ctx context.Context, trade domain.Trade) error {
	i := e.registry.FindBySellOrder(trade.OrderID)
	if i < 0 {
		slog.Warn("grid: sell fill for untracked order, ignoring",
			"order_id", trade.OrderID, "price", trade.Price)
		return nil
	}

	rung := e.registry.Get(i)
	rung.ClosedAt = trade.Timestamp
	e.registry.Update(i, rung)
	completed := e.registry.Complete(i)

	ref, err := e.gateway.PlaceLimitBuy(ctx, completed.Amount, completed.BuyPrice)
	if err != nil {
		return fmt.Errorf("re-buy at %s: %w", completed.BuyPrice, err)
	}
	e.registry.Add(domain.OrderPair{
		BuyOrderID: ref.ID,
		BuyPrice:   completed.BuyPrice,
		BuyKind:    domain.KindLimit,
		BuyStatus:  domain.StatusOpen,
		Amount:     completed.Amount,
		CreatedAt:  orderTimestamp(ref),
	})

	slog.Info("grid: sell filled, re-buy placed",
		"sell_price", trade.Price,
		"buy_price", completed.BuyPrice,
		"profit", completed.Profit(),
		"completed", e.registry.CompletedCount())

	if e.registry.ActiveSellLegs() == 0 {
		if err := e.trailUp(ctx); err != nil {
			return fmt.Errorf("trail up: %w", err)
		}
	}
	return nil
}

// trailUp repositions the lowest rung at the current price: cancel its
// buy, enter at market, pair it with a sell one increment above. This
// keeps the ladder following a market that has moved persistently
// higher instead of stranding its bottom rung.
func (e *Engine) trailUp(ctx context.Context) error {
	i := e.registry.LowestBuy()
	if i < 0 {
		return nil
	}

	price, err := e.gateway.FetchReferencePrice(ctx)
	if err != nil {
		return fmt.Errorf("fetch reference price: %w", err)
	}

	rung := e.registry.Get(i)
	if rung.HasBuyLeg() && rung.BuyStatus == domain.StatusOpen {
		if err := e.gateway.CancelOrder(ctx, rung.BuyOrderID); err != nil {
			// The order may already be gone; the market entry below is
			// still the right move.
			slog.Warn("grid: trail-up cancel failed", "order_id", rung.BuyOrderID, "err", err)
		}
	}

	amount := domain.AmountAt(e.cfg.QuotePerTrade(), price)
	entry, err := e.gateway.PlaceMarketBuy(ctx, amount)
	if err != nil {
		return fmt.Errorf("market buy: %w", err)
	}

	sellPrice := price.Add(e.increment)
	sell, err := e.gateway.PlaceLimitSell(ctx, amount, sellPrice)
	if err != nil {
		return fmt.Errorf("place sell at %s: %w", sellPrice, err)
	}

	e.registry.Update(i, domain.OrderPair{
		BuyOrderID:  entry.ID,
		BuyPrice:    price,
		BuyKind:     domain.KindMarket,
		BuyStatus:   domain.StatusClosed,
		SellOrderID: sell.ID,
		SellPrice:   sellPrice,
		Amount:      amount,
		CreatedAt:   orderTimestamp(entry),
	})

	slog.Info("grid: trailed up",
		"old_buy", rung.BuyPrice, "new_entry", price, "sell_price", sellPrice)
	return nil
}
