package topup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

type stubGateway struct {
	price    decimal.Decimal
	balances map[string]decimal.Decimal
	bought   []decimal.Decimal
	failBuy  error
}

func (g *stubGateway) FetchReferencePrice(context.Context) (decimal.Decimal, error) {
	return g.price, nil
}

func (g *stubGateway) WatchReferencePrice(context.Context) (<-chan decimal.Decimal, error) {
	return nil, errors.New("not implemented")
}

func (g *stubGateway) WatchOrderFills(context.Context) (<-chan domain.Trade, error) {
	return nil, errors.New("not implemented")
}

func (g *stubGateway) FetchOpenOrders(context.Context) ([]domain.OpenOrder, error) {
	return nil, nil
}

func (g *stubGateway) FetchOrderStatus(context.Context, string) (domain.OrderState, error) {
	return domain.OrderState{}, errors.New("not implemented")
}

func (g *stubGateway) PlaceLimitBuy(context.Context, decimal.Decimal, decimal.Decimal) (domain.OrderRef, error) {
	return domain.OrderRef{}, errors.New("not implemented")
}

func (g *stubGateway) PlaceLimitSell(context.Context, decimal.Decimal, decimal.Decimal) (domain.OrderRef, error) {
	return domain.OrderRef{}, errors.New("not implemented")
}

func (g *stubGateway) PlaceMarketBuy(_ context.Context, amount decimal.Decimal) (domain.OrderRef, error) {
	if g.failBuy != nil {
		return domain.OrderRef{}, g.failBuy
	}
	g.bought = append(g.bought, amount)
	return domain.OrderRef{ID: "topup-1", Amount: amount}, nil
}

func (g *stubGateway) PlaceMarketSell(context.Context, decimal.Decimal) (domain.OrderRef, error) {
	return domain.OrderRef{}, errors.New("not implemented")
}

func (g *stubGateway) CancelOrder(context.Context, string) error {
	return errors.New("not implemented")
}

func (g *stubGateway) FetchBalance(context.Context) (map[string]decimal.Decimal, error) {
	return g.balances, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testWorker(gw *stubGateway) *Worker {
	return New(Config{
		Coin:              "BNB",
		RepurchaseBalance: dec("20"),
		RepurchaseAmount:  dec("30"),
		Interval:          time.Minute,
	}, gw, "btc-grid-1")
}

func TestCheckOnce_BuysWhenBalanceLow(t *testing.T) {
	// 0.01 BNB at 600 is 6 quote, below the 20 threshold.
	gw := &stubGateway{
		price:    dec("600"),
		balances: map[string]decimal.Decimal{"BNB": dec("0.01")},
	}

	require.NoError(t, testWorker(gw).checkOnce(context.Background()))

	require.Len(t, gw.bought, 1)
	assert.True(t, gw.bought[0].Equal(dec("30").Div(dec("600"))),
		"should buy 30 quote worth, got %s", gw.bought[0])
}

func TestCheckOnce_SkipsWhenBalanceSufficient(t *testing.T) {
	// 0.05 BNB at 600 is 30 quote, above the threshold.
	gw := &stubGateway{
		price:    dec("600"),
		balances: map[string]decimal.Decimal{"BNB": dec("0.05")},
	}

	require.NoError(t, testWorker(gw).checkOnce(context.Background()))
	assert.Empty(t, gw.bought)
}

func TestCheckOnce_MissingBalanceCountsAsZero(t *testing.T) {
	gw := &stubGateway{price: dec("600"), balances: map[string]decimal.Decimal{}}

	require.NoError(t, testWorker(gw).checkOnce(context.Background()))
	require.Len(t, gw.bought, 1)
}

func TestCheckOnce_BuyFailureSurfaces(t *testing.T) {
	gw := &stubGateway{
		price:    dec("600"),
		balances: map[string]decimal.Decimal{"BNB": dec("0.01")},
		failBuy:  errors.New("insufficient funds"),
	}

	err := testWorker(gw).checkOnce(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "insufficient funds")
}

func TestStartOffset_DeterministicAndBounded(t *testing.T) {
	gw := &stubGateway{}
	a := New(Config{Interval: time.Minute}, gw, "bot-a")
	b := New(Config{Interval: time.Minute}, gw, "bot-a")
	c := New(Config{Interval: time.Minute}, gw, "bot-b")

	assert.Equal(t, a.StartOffset(), b.StartOffset(), "same instance name, same offset")
	assert.NotEqual(t, a.StartOffset(), c.StartOffset())
	assert.Less(t, a.StartOffset(), maxStartOffset)
	assert.GreaterOrEqual(t, a.StartOffset(), time.Duration(0))
}

func TestRun_StopsOnCancelBeforeOffset(t *testing.T) {
	gw := &stubGateway{price: dec("600"), balances: map[string]decimal.Decimal{}}
	w := testWorker(gw)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
