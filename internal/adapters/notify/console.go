package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// Console implements ports.Notifier by writing human-readable lines to
// a writer. In table mode, profit stats render as a small table instead
// of a single line.
type Console struct {
	out   io.Writer
	pair  string
	table bool
}

// NewConsole creates a notifier that writes to stdout.
func NewConsole(pair string, table bool) *Console {
	return &Console{out: os.Stdout, pair: pair, table: table}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer, pair string, table bool) *Console {
	return &Console{out: w, pair: pair, table: table}
}

// SendTrade prints one line per processed fill.
func (c *Console) SendTrade(_ context.Context, side domain.Side, amount, price decimal.Decimal, timestamp int64) error {
	ts := time.UnixMilli(timestamp).Format("15:04:05")
	_, err := fmt.Fprintf(c.out, "[%s] %s %s %s %s @ %s\n",
		ts, c.pair, side, amount, c.baseAsset(), price)
	return err
}

// SendStatus prints the rung counters.
func (c *Console) SendStatus(_ context.Context, activeCount, totalCount, completedCount int) error {
	_, err := fmt.Fprintf(c.out, "[%s] %s grid %d/%d rungs, %d completed\n",
		time.Now().Format("15:04:05"), c.pair, activeCount, totalCount, completedCount)
	return err
}

// SendStats prints realized profit aggregates.
func (c *Console) SendStats(_ context.Context, stats domain.ProfitStats) error {
	if !c.table {
		_, err := fmt.Fprintf(c.out, "[%s] %s profit total:%s 24h:%s 7d:%s 30d:%s\n",
			time.Now().Format("15:04:05"), c.pair,
			stats.Total, stats.Daily, stats.Weekly, stats.Monthly)
		return err
	}

	t := tablewriter.NewWriter(c.out)
	t.Header("Period", "Profit")
	t.Append("total", stats.Total.String())
	t.Append("24h", stats.Daily.String())
	t.Append("7d", stats.Weekly.String())
	t.Append("30d", stats.Monthly.String())
	t.Render()
	return nil
}

// SendError prints an error line.
func (c *Console) SendError(_ context.Context, message string, timestamp int64) error {
	ts := time.UnixMilli(timestamp).Format("15:04:05")
	_, err := fmt.Fprintf(c.out, "[%s] %s ERROR: %s\n", ts, c.pair, message)
	return err
}

func (c *Console) baseAsset() string {
	for i := 0; i < len(c.pair); i++ {
		if c.pair[i] == '/' {
			return c.pair[:i]
		}
	}
	return c.pair
}
