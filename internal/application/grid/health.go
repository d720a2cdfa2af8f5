package grid

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// HealthCheck reconciles the engine's rung set against the venue's open
// orders. This is the self-healing pass that repairs missed fill
// notifications, crashed processes and out-of-band cancellations. One
// bad rung never stalls the rest: per-rung errors are logged and the
// rung is retried next interval. The grid increment is never recomputed
// here.
func (e *Engine) HealthCheck(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	price, err := e.gateway.FetchReferencePrice(ctx)
	if err != nil {
		return fmt.Errorf("grid.HealthCheck: fetch reference price: %w", err)
	}
	open, err := e.gateway.FetchOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("grid.HealthCheck: fetch open orders: %w", err)
	}
	openSet := make(map[string]bool, len(open))
	for _, o := range open {
		openSet[o.ID] = true
	}

	changed := false
	var completeIdx []int

	// Scan only the rungs present at the start of the pass: repairs may
	// append replacement rungs, which the next pass will cover.
	n := e.registry.ActiveCount()
	for i := 0; i < n; i++ {
		done, mutated, err := e.repairRung(ctx, i, price, openSet)
		if err != nil {
			slog.Warn("grid: rung repair failed, skipping until next pass",
				"rung", i, "err", err)
			continue
		}
		if done {
			completeIdx = append(completeIdx, i)
		}
		changed = changed || mutated
	}

	// Removals happen after the scan, highest index first, so earlier
	// indexes stay valid.
	sort.Sort(sort.Reverse(sort.IntSlice(completeIdx)))
	for _, i := range completeIdx {
		e.registry.Complete(i)
	}

	changed = e.trimExcess(ctx) || changed

	if changed {
		e.persist(ctx)
		e.notifyStatus(ctx)
	}
	return nil
}

// repairRung checks one rung's legs against the open-order set and
// queries the venue for the authoritative status of any missing order.
// It reports whether the rung finished its cycle (sell leg filled) and
// whether anything about it changed.
func (e *Engine) repairRung(ctx context.Context, i int, price decimal.Decimal, openSet map[string]bool) (done, mutated bool, err error) {
	rung := e.registry.Get(i)

	switch {
	case rung.BuyStatus == domain.StatusOpen && rung.BuyKind == domain.KindLimit &&
		rung.HasBuyLeg() && !openSet[rung.BuyOrderID]:
		state, err := e.gateway.FetchOrderStatus(ctx, rung.BuyOrderID)
		if err != nil {
			return false, false, fmt.Errorf("status of buy %s: %w", rung.BuyOrderID, err)
		}

		switch state.Status {
		case domain.StatusClosed:
			// Missed buy fill. Sell at least one full increment above
			// the live price, never below it.
			sellPrice := decimal.Max(price, rung.BuyPrice).Add(e.increment)
			ref, err := e.gateway.PlaceLimitSell(ctx, rung.Amount, sellPrice)
			if err != nil {
				return false, false, fmt.Errorf("place repair sell at %s: %w", sellPrice, err)
			}
			rung.SellOrderID = ref.ID
			rung.SellPrice = sellPrice
			rung.BuyStatus = domain.StatusClosed
			e.registry.Update(i, rung)
			e.notifyTrade(ctx, domain.Trade{
				OrderID:   rung.BuyOrderID,
				Side:      domain.SideBuy,
				Symbol:    e.cfg.Pair,
				Price:     rung.BuyPrice,
				Amount:    rung.Amount,
				Cost:      rung.BuyPrice.Mul(rung.Amount),
				Timestamp: nowMillis(),
			})
			slog.Info("grid: repaired missed buy fill",
				"buy_price", rung.BuyPrice, "sell_price", sellPrice)
			return false, true, nil

		case domain.StatusCanceled:
			// Re-enter without chasing the price up.
			buyPrice := decimal.Min(price, rung.BuyPrice)
			ref, err := e.gateway.PlaceLimitBuy(ctx, rung.Amount, buyPrice)
			if err != nil {
				return false, false, fmt.Errorf("re-place buy at %s: %w", buyPrice, err)
			}
			rung.BuyOrderID = ref.ID
			rung.BuyPrice = buyPrice
			e.registry.Update(i, rung)
			slog.Info("grid: re-placed canceled buy", "buy_price", buyPrice)
			return false, true, nil
		}

	case rung.HasSellLeg() && !openSet[rung.SellOrderID]:
		state, err := e.gateway.FetchOrderStatus(ctx, rung.SellOrderID)
		if err != nil {
			return false, false, fmt.Errorf("status of sell %s: %w", rung.SellOrderID, err)
		}

		switch state.Status {
		case domain.StatusClosed:
			// Missed sell fill: retire the rung and spawn its
			// replacement, anchored no higher than one increment below
			// the live price.
			buyPrice := decimal.Min(price, rung.SellPrice).Sub(e.increment)
			ref, err := e.gateway.PlaceLimitBuy(ctx, rung.Amount, buyPrice)
			if err != nil {
				return false, false, fmt.Errorf("place replacement buy at %s: %w", buyPrice, err)
			}
			rung.ClosedAt = nowMillis()
			e.registry.Update(i, rung)
			e.registry.Add(domain.OrderPair{
				BuyOrderID: ref.ID,
				BuyPrice:   buyPrice,
				BuyKind:    domain.KindLimit,
				BuyStatus:  domain.StatusOpen,
				Amount:     rung.Amount,
				CreatedAt:  orderTimestamp(ref),
			})
			e.notifyTrade(ctx, domain.Trade{
				OrderID:   rung.SellOrderID,
				Side:      domain.SideSell,
				Symbol:    e.cfg.Pair,
				Price:     rung.SellPrice,
				Amount:    rung.Amount,
				Cost:      rung.SellPrice.Mul(rung.Amount),
				Timestamp: nowMillis(),
			})
			slog.Info("grid: repaired missed sell fill",
				"sell_price", rung.SellPrice, "replacement_buy", buyPrice)
			return true, true, nil

		case domain.StatusCanceled:
			// Re-offer without undercutting the market.
			sellPrice := decimal.Max(price, rung.SellPrice)
			ref, err := e.gateway.PlaceLimitSell(ctx, rung.Amount, sellPrice)
			if err != nil {
				return false, false, fmt.Errorf("re-place sell at %s: %w", sellPrice, err)
			}
			rung.SellOrderID = ref.ID
			rung.SellPrice = sellPrice
			e.registry.Update(i, rung)
			slog.Info("grid: re-placed canceled sell", "sell_price", sellPrice)
			return false, true, nil
		}
	}

	return false, false, nil
}

// trimExcess cancels and drops the newest rungs until the active count
// is back within the configured grid size.
func (e *Engine) trimExcess(ctx context.Context) bool {
	trimmed := false
	for e.registry.ActiveCount() > e.cfg.GridCount {
		i := e.registry.Newest()
		rung := e.registry.Get(i)

		if rung.HasBuyLeg() && rung.BuyStatus == domain.StatusOpen {
			if err := e.gateway.CancelOrder(ctx, rung.BuyOrderID); err != nil {
				slog.Warn("grid: excess buy cancel failed", "order_id", rung.BuyOrderID, "err", err)
			}
		}
		if rung.HasSellLeg() {
			if err := e.gateway.CancelOrder(ctx, rung.SellOrderID); err != nil {
				slog.Warn("grid: excess sell cancel failed", "order_id", rung.SellOrderID, "err", err)
			}
		}

		e.registry.RemoveAt(i)
		trimmed = true
		slog.Info("grid: trimmed excess rung",
			"buy_price", rung.BuyPrice, "active", e.registry.ActiveCount())
	}
	return trimmed
}
