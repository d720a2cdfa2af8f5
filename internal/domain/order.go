package domain

import (
	"github.com/shopspring/decimal"
)

// Side is the direction of an order or fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderKind distinguishes how the buy leg of a rung was entered.
type OrderKind string

const (
	KindLimit  OrderKind = "limit"
	KindMarket OrderKind = "market"
	KindNone   OrderKind = "none"
)

// OrderStatus is the lifecycle state of an order as reported by the venue.
type OrderStatus string

const (
	StatusOpen     OrderStatus = "open"
	StatusClosed   OrderStatus = "closed"
	StatusCanceled OrderStatus = "canceled"
	StatusNone     OrderStatus = "none"
)

// OrderPair is one ladder rung: a buy order and the sell order placed one
// grid increment above it once the buy fills. While a rung is active at
// least one of the two order IDs is set. Amount never changes for the
// life of the rung.
type OrderPair struct {
	BuyOrderID  string
	SellOrderID string
	BuyPrice    decimal.Decimal
	SellPrice   decimal.Decimal
	BuyKind     OrderKind
	Amount      decimal.Decimal
	CreatedAt   int64 // epoch millis
	BuyStatus   OrderStatus
	ClosedAt    int64 // epoch millis, set when the sell leg fills
}

// HasBuyLeg reports whether the rung tracks a buy order on the venue.
func (p OrderPair) HasBuyLeg() bool {
	return p.BuyOrderID != ""
}

// HasSellLeg reports whether the rung tracks a sell order on the venue.
func (p OrderPair) HasSellLeg() bool {
	return p.SellOrderID != ""
}

// HasOpenSellLeg reports whether the rung is currently waiting for its
// sell order to fill. A rung whose buy leg is still open has no sell yet.
func (p OrderPair) HasOpenSellLeg() bool {
	return p.SellOrderID != "" && p.BuyStatus == StatusClosed
}

// Profit is the realized gain of a completed rung: (sell − buy) × amount.
// Only meaningful once both prices are set.
func (p OrderPair) Profit() decimal.Decimal {
	return p.SellPrice.Sub(p.BuyPrice).Mul(p.Amount)
}

// Trade is a fill event from the venue's order stream. Immutable,
// consumed exactly once by the engine.
type Trade struct {
	OrderID   string
	Side      Side
	Symbol    string
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Cost      decimal.Decimal
	Timestamp int64 // epoch millis
}

// OpenOrder is one entry of the venue's open-order set.
type OpenOrder struct {
	ID     string
	Side   Side
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// OrderState is the authoritative status of a single order, fetched when
// the order is missing from the open set.
type OrderState struct {
	Status OrderStatus
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// OrderRef is the venue's acknowledgement of a placed order.
type OrderRef struct {
	ID        string
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Timestamp int64
}

// ProfitStats aggregates realized profit over completed rungs.
type ProfitStats struct {
	Total   decimal.Decimal
	Daily   decimal.Decimal
	Weekly  decimal.Decimal
	Monthly decimal.Decimal
}
