package topup

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/gridbot/internal/ports"
)

const maxStartOffset = 180 * time.Second

// Config drives the auxiliary fee-coin top-up job: when the free
// fee-coin balance is worth less than RepurchaseBalance (in quote
// currency), buy RepurchaseAmount worth at market.
type Config struct {
	Coin              string
	RepurchaseBalance decimal.Decimal
	RepurchaseAmount  decimal.Decimal
	Interval          time.Duration
}

// Worker runs the top-up loop against a gateway scoped to the fee-coin
// pair (e.g. "BNB/USDT"). Errors are logged and the next interval
// retries; the job never affects the grid engine.
type Worker struct {
	cfg     Config
	gateway ports.ExchangeGateway
	offset  time.Duration
}

// New creates a worker. The first check is delayed by a deterministic
// offset derived from the instance name (FNV-1a mod 180s), so several
// bots sharing one account spread their purchases instead of buying in
// the same second.
func New(cfg Config, gateway ports.ExchangeGateway, instance string) *Worker {
	h := fnv.New32a()
	h.Write([]byte(instance))
	seconds := h.Sum32() % uint32(maxStartOffset/time.Second)
	offset := time.Duration(seconds) * time.Second

	return &Worker{cfg: cfg, gateway: gateway, offset: offset}
}

// StartOffset exposes the derived delay for logging and tests.
func (w *Worker) StartOffset() time.Duration {
	return w.offset
}

// Run checks the balance every interval until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("topup: worker starting",
		"coin", w.cfg.Coin, "interval", w.cfg.Interval, "offset", w.offset)

	select {
	case <-ctx.Done():
		return
	case <-time.After(w.offset):
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := w.checkOnce(ctx); err != nil {
			slog.Warn("topup: check failed", "coin", w.cfg.Coin, "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// checkOnce tops up the fee coin if its quote value dropped below the
// threshold.
func (w *Worker) checkOnce(ctx context.Context) error {
	balances, err := w.gateway.FetchBalance(ctx)
	if err != nil {
		return fmt.Errorf("topup.checkOnce: fetch balance: %w", err)
	}
	price, err := w.gateway.FetchReferencePrice(ctx)
	if err != nil {
		return fmt.Errorf("topup.checkOnce: fetch price: %w", err)
	}

	value := balances[w.cfg.Coin].Mul(price)
	if value.GreaterThanOrEqual(w.cfg.RepurchaseBalance) {
		return nil
	}

	amount := w.cfg.RepurchaseAmount.Div(price)
	if _, err := w.gateway.PlaceMarketBuy(ctx, amount); err != nil {
		return fmt.Errorf("topup.checkOnce: market buy %s: %w", amount, err)
	}

	slog.Info("topup: topped up fee coin",
		"coin", w.cfg.Coin, "amount", amount, "value_before", value)
	return nil
}
