package binance

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

func TestToSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSDT", toSymbol("BTC/USDT"))
	assert.Equal(t, "ETHBTC", toSymbol("ETH/BTC"))
	assert.Equal(t, "BNBUSDT", toSymbol("BNBUSDT"))
}

func TestMapStatus(t *testing.T) {
	cases := map[string]domain.OrderStatus{
		"NEW":              domain.StatusOpen,
		"PARTIALLY_FILLED": domain.StatusOpen,
		"FILLED":           domain.StatusClosed,
		"CANCELED":         domain.StatusCanceled,
		"REJECTED":         domain.StatusCanceled,
		"EXPIRED":          domain.StatusCanceled,
		"SOMETHING_NEW":    domain.StatusNone,
	}
	for raw, want := range cases {
		assert.Equal(t, want, mapStatus(raw), "status %s", raw)
	}
}

func TestMapSide(t *testing.T) {
	assert.Equal(t, domain.SideSell, mapSide("SELL"))
	assert.Equal(t, domain.SideSell, mapSide("sell"))
	assert.Equal(t, domain.SideBuy, mapSide("BUY"))
}

func TestParseDecimal(t *testing.T) {
	d, err := parseDecimal("price", "45000.50")
	require.NoError(t, err)
	assert.Equal(t, "45000.5", d.String())

	_, err = parseDecimal("price", "garbage")
	require.Error(t, err)
	assert.ErrorContains(t, err, `price "garbage"`)
}

func TestExecutionReportDecoding(t *testing.T) {
	// Trimmed user-data stream payload as Binance sends it.
	raw := `{
		"e": "executionReport",
		"s": "BTCUSDT",
		"S": "BUY",
		"o": "LIMIT",
		"X": "FILLED",
		"i": 4293153,
		"p": "44550.00000000",
		"z": "0.00224466",
		"Z": "100.00000000",
		"T": 1700000000000
	}`

	var report executionReport
	require.NoError(t, json.Unmarshal([]byte(raw), &report))

	assert.Equal(t, "executionReport", report.EventType)
	assert.Equal(t, "BTCUSDT", report.Symbol)
	assert.Equal(t, "4293153", orderIDString(report.OrderID))
	assert.Equal(t, "FILLED", report.OrderStatus)
	assert.Equal(t, "LIMIT", report.OrderType)
	assert.Equal(t, int64(1700000000000), report.TransactionTime)

	price, err := parseDecimal("price", report.Price)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("44550")))
}

func TestTradeEventDecoding(t *testing.T) {
	raw := `{"e":"trade","E":1700000000000,"s":"BTCUSDT","p":"45123.45000000","q":"0.001"}`

	var ev tradeEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	assert.Equal(t, "trade", ev.EventType)
	assert.Equal(t, "45123.45000000", ev.Price)
}
