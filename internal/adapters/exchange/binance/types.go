package binance

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// Wire types for the subset of the spot API the gateway touches.
// Binance serializes prices and quantities as strings; they are parsed
// into decimals at the boundary and floats never enter the engine.

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type orderAck struct {
	Symbol       string `json:"symbol"`
	OrderID      int64  `json:"orderId"`
	Price        string `json:"price"`
	OrigQty      string `json:"origQty"`
	TransactTime int64  `json:"transactTime"`
	Status       string `json:"status"`
}

type orderDetail struct {
	OrderID int64  `json:"orderId"`
	Side    string `json:"side"`
	Price   string `json:"price"`
	OrigQty string `json:"origQty"`
	Status  string `json:"status"`
	Time    int64  `json:"time"`
}

type accountInfo struct {
	Balances []struct {
		Asset string `json:"asset"`
		Free  string `json:"free"`
	} `json:"balances"`
}

type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

// tradeEvent is a <symbol>@trade stream payload.
type tradeEvent struct {
	EventType string `json:"e"`
	Price     string `json:"p"`
}

// executionReport is a user-data stream order update.
type executionReport struct {
	EventType       string `json:"e"`
	Symbol          string `json:"s"`
	Side            string `json:"S"`
	OrderType       string `json:"o"`
	OrderStatus     string `json:"X"`
	OrderID         int64  `json:"i"`
	Price           string `json:"p"`
	FilledQty       string `json:"z"`
	FilledQuoteQty  string `json:"Z"`
	TransactionTime int64  `json:"T"`
}

// toSymbol converts "BTC/USDT" into Binance's "BTCUSDT".
func toSymbol(pair string) string {
	return strings.ReplaceAll(pair, "/", "")
}

func orderIDString(id int64) string {
	return strconv.FormatInt(id, 10)
}

// mapStatus folds Binance order states onto the engine's taxonomy.
func mapStatus(status string) domain.OrderStatus {
	switch status {
	case "NEW", "PARTIALLY_FILLED", "PENDING_NEW":
		return domain.StatusOpen
	case "FILLED":
		return domain.StatusClosed
	case "CANCELED", "PENDING_CANCEL", "REJECTED", "EXPIRED", "EXPIRED_IN_MATCH":
		return domain.StatusCanceled
	default:
		return domain.StatusNone
	}
}

func mapSide(side string) domain.Side {
	if strings.EqualFold(side, "SELL") {
		return domain.SideSell
	}
	return domain.SideBuy
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return d, nil
}
