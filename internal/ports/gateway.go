package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// ExchangeGateway is the venue-facing surface the engine consumes. All
// calls go over the network and may fail transiently; streaming methods
// own their reconnect loop and only stop when the context is canceled.
type ExchangeGateway interface {
	// FetchReferencePrice returns the last traded price for the
	// configured pair.
	FetchReferencePrice(ctx context.Context) (decimal.Decimal, error)

	// WatchReferencePrice streams price updates until ctx is canceled.
	// The channel is closed on shutdown.
	WatchReferencePrice(ctx context.Context) (<-chan decimal.Decimal, error)

	// WatchOrderFills streams fills of the engine's limit orders until
	// ctx is canceled. The channel is closed on shutdown.
	WatchOrderFills(ctx context.Context) (<-chan domain.Trade, error)

	// FetchOpenOrders returns the venue's current open-order set for the
	// configured pair.
	FetchOpenOrders(ctx context.Context) ([]domain.OpenOrder, error)

	// FetchOrderStatus returns the authoritative state of a single order.
	FetchOrderStatus(ctx context.Context, orderID string) (domain.OrderState, error)

	// PlaceLimitBuy submits a limit buy for amount base units at price.
	PlaceLimitBuy(ctx context.Context, amount, price decimal.Decimal) (domain.OrderRef, error)

	// PlaceLimitSell submits a limit sell for amount base units at price.
	PlaceLimitSell(ctx context.Context, amount, price decimal.Decimal) (domain.OrderRef, error)

	// PlaceMarketBuy buys amount base units at market.
	PlaceMarketBuy(ctx context.Context, amount decimal.Decimal) (domain.OrderRef, error)

	// PlaceMarketSell sells amount base units at market.
	PlaceMarketSell(ctx context.Context, amount decimal.Decimal) (domain.OrderRef, error)

	// CancelOrder cancels a specific order by its venue ID.
	CancelOrder(ctx context.Context, orderID string) error

	// FetchBalance returns free balances keyed by asset.
	FetchBalance(ctx context.Context) (map[string]decimal.Decimal, error)
}
