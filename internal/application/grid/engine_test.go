package grid_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/gridbot/internal/application/grid"
	"github.com/alejandrodnm/gridbot/internal/domain"
)

// --- fakes ---

type placedOrder struct {
	ID     string
	Side   domain.Side
	Kind   domain.OrderKind
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// fakeGateway scripts venue behavior and records every order call.
type fakeGateway struct {
	mu         sync.Mutex
	price      decimal.Decimal
	nextID     int
	placed     []placedOrder
	canceled   []string
	openOrders []domain.OpenOrder
	statuses   map[string]domain.OrderState
	balances   map[string]decimal.Decimal
	failPlace  error
	failStatus map[string]error
}

func newFakeGateway(price string) *fakeGateway {
	return &fakeGateway{
		price:      dec(price),
		statuses:   make(map[string]domain.OrderState),
		balances:   make(map[string]decimal.Decimal),
		failStatus: make(map[string]error),
	}
}

func (g *fakeGateway) place(side domain.Side, kind domain.OrderKind, amount, price decimal.Decimal) (domain.OrderRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failPlace != nil {
		return domain.OrderRef{}, g.failPlace
	}
	g.nextID++
	id := fmt.Sprintf("ord-%d", g.nextID)
	g.placed = append(g.placed, placedOrder{ID: id, Side: side, Kind: kind, Amount: amount, Price: price})
	return domain.OrderRef{ID: id, Price: price, Amount: amount, Timestamp: time.Now().UnixMilli()}, nil
}

func (g *fakeGateway) FetchReferencePrice(context.Context) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.price, nil
}

func (g *fakeGateway) WatchReferencePrice(ctx context.Context) (<-chan decimal.Decimal, error) {
	ch := make(chan decimal.Decimal)
	go func() { <-ctx.Done(); close(ch) }()
	return ch, nil
}

func (g *fakeGateway) WatchOrderFills(ctx context.Context) (<-chan domain.Trade, error) {
	ch := make(chan domain.Trade)
	go func() { <-ctx.Done(); close(ch) }()
	return ch, nil
}

func (g *fakeGateway) FetchOpenOrders(context.Context) ([]domain.OpenOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.OpenOrder(nil), g.openOrders...), nil
}

func (g *fakeGateway) FetchOrderStatus(_ context.Context, orderID string) (domain.OrderState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failStatus[orderID]; err != nil {
		return domain.OrderState{}, err
	}
	if st, ok := g.statuses[orderID]; ok {
		return st, nil
	}
	return domain.OrderState{Status: domain.StatusOpen}, nil
}

func (g *fakeGateway) PlaceLimitBuy(_ context.Context, amount, price decimal.Decimal) (domain.OrderRef, error) {
	return g.place(domain.SideBuy, domain.KindLimit, amount, price)
}

func (g *fakeGateway) PlaceLimitSell(_ context.Context, amount, price decimal.Decimal) (domain.OrderRef, error) {
	return g.place(domain.SideSell, domain.KindLimit, amount, price)
}

func (g *fakeGateway) PlaceMarketBuy(_ context.Context, amount decimal.Decimal) (domain.OrderRef, error) {
	g.mu.Lock()
	price := g.price
	g.mu.Unlock()
	return g.place(domain.SideBuy, domain.KindMarket, amount, price)
}

func (g *fakeGateway) PlaceMarketSell(_ context.Context, amount decimal.Decimal) (domain.OrderRef, error) {
	g.mu.Lock()
	price := g.price
	g.mu.Unlock()
	return g.place(domain.SideSell, domain.KindMarket, amount, price)
}

func (g *fakeGateway) CancelOrder(_ context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.canceled = append(g.canceled, orderID)
	return nil
}

func (g *fakeGateway) FetchBalance(context.Context) (map[string]decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(g.balances))
	for k, v := range g.balances {
		out[k] = v
	}
	return out, nil
}

// lastPlaced returns the most recent order matching side and kind.
func (g *fakeGateway) lastPlaced(side domain.Side, kind domain.OrderKind) (placedOrder, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.placed) - 1; i >= 0; i-- {
		if g.placed[i].Side == side && g.placed[i].Kind == kind {
			return g.placed[i], true
		}
	}
	return placedOrder{}, false
}

// fakeStore is an in-memory ports.SnapshotStore counting writes.
type fakeStore struct {
	mu        sync.Mutex
	snapshots map[string][]domain.OrderPair
	saves     int
	failSave  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{snapshots: make(map[string][]domain.OrderPair)}
}

func (s *fakeStore) Save(_ context.Context, assetKey string, rungs []domain.OrderPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return s.failSave
	}
	s.snapshots[assetKey] = append([]domain.OrderPair(nil), rungs...)
	s.saves++
	return nil
}

func (s *fakeStore) Load(_ context.Context, assetKey string) ([]domain.OrderPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OrderPair(nil), s.snapshots[assetKey]...), nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// fakeNotifier records every notification in order.
type fakeNotifier struct {
	mu       sync.Mutex
	trades   []domain.Trade
	statuses [][3]int
	stats    []domain.ProfitStats
	errors   []string
	sequence []string // "trade" / "status" / "stats" / "error"
}

func newFakeNotifier() *fakeNotifier { return &fakeNotifier{} }

func (n *fakeNotifier) SendTrade(_ context.Context, side domain.Side, amount, price decimal.Decimal, timestamp int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.trades = append(n.trades, domain.Trade{Side: side, Amount: amount, Price: price, Timestamp: timestamp})
	n.sequence = append(n.sequence, "trade")
	return nil
}

func (n *fakeNotifier) SendStatus(_ context.Context, active, total, completed int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, [3]int{active, total, completed})
	n.sequence = append(n.sequence, "status")
	return nil
}

func (n *fakeNotifier) SendStats(_ context.Context, stats domain.ProfitStats) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stats = append(n.stats, stats)
	n.sequence = append(n.sequence, "stats")
	return nil
}

func (n *fakeNotifier) SendError(_ context.Context, message string, timestamp int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
	n.sequence = append(n.sequence, "error")
	return nil
}

// --- helpers ---

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testConfig() grid.Config {
	return grid.Config{
		Pair:           "BTC/USDT",
		Investment:     dec("1000"),
		GridCount:      10,
		GridPercent:    dec("1"),
		HealthInterval: time.Minute,
	}
}

// newInitializedEngine fresh-starts a 10-rung grid at price 45000.
func newInitializedEngine(t *testing.T) (*grid.Engine, *fakeGateway, *fakeStore, *fakeNotifier) {
	t.Helper()
	gw := newFakeGateway("45000")
	store := newFakeStore()
	notifier := newFakeNotifier()
	engine := grid.New(testConfig(), gw, store, notifier)

	require.NoError(t, engine.Initialize(context.Background(), true))
	return engine, gw, store, notifier
}

func TestConfig_QuotePerTrade(t *testing.T) {
	cfg := testConfig()
	require.True(t, cfg.QuotePerTrade().Equal(dec("100")),
		"1000 across 10 grids should be 100 per trade, got %s", cfg.QuotePerTrade())
	require.Equal(t, "BTC", cfg.BaseAsset())
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	engine, _, _, _ := newInitializedEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after context cancellation")
	}
}
