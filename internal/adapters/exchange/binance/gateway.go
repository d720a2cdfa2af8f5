package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/gridbot/internal/adapters/exchange"
	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

func init() {
	exchange.Register("binance", func(opts exchange.Options) (ports.ExchangeGateway, error) {
		return New(opts)
	})
}

// Gateway implements ports.ExchangeGateway against Binance spot, scoped
// to a single trading pair. The sandbox flag targets the public testnet.
type Gateway struct {
	client *client
	pair   string
	symbol string
}

// New builds a gateway for the configured pair.
func New(opts exchange.Options) (*Gateway, error) {
	if opts.Pair == "" {
		return nil, fmt.Errorf("binance.New: empty pair")
	}
	return &Gateway{
		client: newClient(opts.APIKey, opts.APISecret, opts.Sandbox),
		pair:   opts.Pair,
		symbol: toSymbol(opts.Pair),
	}, nil
}

// FetchReferencePrice returns the last traded price for the pair.
func (g *Gateway) FetchReferencePrice(ctx context.Context) (decimal.Decimal, error) {
	q := url.Values{"symbol": {g.symbol}}
	var out tickerPrice
	if err := g.client.public(ctx, "/api/v3/ticker/price", q, &out); err != nil {
		return decimal.Decimal{}, fmt.Errorf("binance.FetchReferencePrice: %w", err)
	}
	price, err := parseDecimal("price", out.Price)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("binance.FetchReferencePrice: %w", err)
	}
	return price, nil
}

// FetchOpenOrders returns the venue's open orders for the pair.
func (g *Gateway) FetchOpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	q := url.Values{"symbol": {g.symbol}}
	var out []orderDetail
	if err := g.client.signed(ctx, http.MethodGet, "/api/v3/openOrders", q, &out); err != nil {
		return nil, fmt.Errorf("binance.FetchOpenOrders: %w", err)
	}

	orders := make([]domain.OpenOrder, 0, len(out))
	for _, o := range out {
		price, err := parseDecimal("price", o.Price)
		if err != nil {
			return nil, fmt.Errorf("binance.FetchOpenOrders: order %d: %w", o.OrderID, err)
		}
		amount, err := parseDecimal("origQty", o.OrigQty)
		if err != nil {
			return nil, fmt.Errorf("binance.FetchOpenOrders: order %d: %w", o.OrderID, err)
		}
		orders = append(orders, domain.OpenOrder{
			ID:     orderIDString(o.OrderID),
			Side:   mapSide(o.Side),
			Price:  price,
			Amount: amount,
		})
	}
	return orders, nil
}

// FetchOrderStatus returns the authoritative state of one order.
func (g *Gateway) FetchOrderStatus(ctx context.Context, orderID string) (domain.OrderState, error) {
	q := url.Values{"symbol": {g.symbol}, "orderId": {orderID}}
	var out orderDetail
	if err := g.client.signed(ctx, http.MethodGet, "/api/v3/order", q, &out); err != nil {
		return domain.OrderState{}, fmt.Errorf("binance.FetchOrderStatus %s: %w", orderID, err)
	}

	price, err := parseDecimal("price", out.Price)
	if err != nil {
		return domain.OrderState{}, fmt.Errorf("binance.FetchOrderStatus %s: %w", orderID, err)
	}
	amount, err := parseDecimal("origQty", out.OrigQty)
	if err != nil {
		return domain.OrderState{}, fmt.Errorf("binance.FetchOrderStatus %s: %w", orderID, err)
	}
	return domain.OrderState{
		Status: mapStatus(out.Status),
		Price:  price,
		Amount: amount,
	}, nil
}

// PlaceLimitBuy submits a GTC limit buy.
func (g *Gateway) PlaceLimitBuy(ctx context.Context, amount, price decimal.Decimal) (domain.OrderRef, error) {
	return g.placeOrder(ctx, "BUY", "LIMIT", amount, price)
}

// PlaceLimitSell submits a GTC limit sell.
func (g *Gateway) PlaceLimitSell(ctx context.Context, amount, price decimal.Decimal) (domain.OrderRef, error) {
	return g.placeOrder(ctx, "SELL", "LIMIT", amount, price)
}

// PlaceMarketBuy buys amount base units at market.
func (g *Gateway) PlaceMarketBuy(ctx context.Context, amount decimal.Decimal) (domain.OrderRef, error) {
	return g.placeOrder(ctx, "BUY", "MARKET", amount, decimal.Decimal{})
}

// PlaceMarketSell sells amount base units at market.
func (g *Gateway) PlaceMarketSell(ctx context.Context, amount decimal.Decimal) (domain.OrderRef, error) {
	return g.placeOrder(ctx, "SELL", "MARKET", amount, decimal.Decimal{})
}

func (g *Gateway) placeOrder(ctx context.Context, side, kind string, amount, price decimal.Decimal) (domain.OrderRef, error) {
	q := url.Values{
		"symbol":           {g.symbol},
		"side":             {side},
		"type":             {kind},
		"quantity":         {amount.String()},
		"newClientOrderId": {"grid-" + uuid.New().String()},
		"newOrderRespType": {"RESULT"},
	}
	if kind == "LIMIT" {
		q.Set("price", price.String())
		q.Set("timeInForce", "GTC")
	}

	var out orderAck
	if err := g.client.signed(ctx, http.MethodPost, "/api/v3/order", q, &out); err != nil {
		return domain.OrderRef{}, fmt.Errorf("binance.placeOrder %s %s: %w", side, kind, err)
	}

	refPrice := price
	if kind == "MARKET" {
		// Market acks report the effective price; fall back to zero when
		// the venue omits it.
		if parsed, err := parseDecimal("price", out.Price); err == nil {
			refPrice = parsed
		}
	}
	return domain.OrderRef{
		ID:        orderIDString(out.OrderID),
		Price:     refPrice,
		Amount:    amount,
		Timestamp: out.TransactTime,
	}, nil
}

// CancelOrder cancels one order by venue ID.
func (g *Gateway) CancelOrder(ctx context.Context, orderID string) error {
	q := url.Values{"symbol": {g.symbol}, "orderId": {orderID}}
	if err := g.client.signed(ctx, http.MethodDelete, "/api/v3/order", q, nil); err != nil {
		return fmt.Errorf("binance.CancelOrder %s: %w", orderID, err)
	}
	return nil
}

// FetchBalance returns free balances keyed by asset.
func (g *Gateway) FetchBalance(ctx context.Context) (map[string]decimal.Decimal, error) {
	var out accountInfo
	if err := g.client.signed(ctx, http.MethodGet, "/api/v3/account", nil, &out); err != nil {
		return nil, fmt.Errorf("binance.FetchBalance: %w", err)
	}

	balances := make(map[string]decimal.Decimal, len(out.Balances))
	for _, b := range out.Balances {
		free, err := parseDecimal("free", b.Free)
		if err != nil {
			return nil, fmt.Errorf("binance.FetchBalance: %s: %w", b.Asset, err)
		}
		balances[b.Asset] = free
	}
	return balances, nil
}
