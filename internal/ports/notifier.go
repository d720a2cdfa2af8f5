package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// Notifier receives engine events for monitoring. Implementations are
// sinks only, nothing flows back into the engine. Send failures must
// never stall a mutation path.
type Notifier interface {
	// SendTrade reports a fill the engine just processed.
	SendTrade(ctx context.Context, side domain.Side, amount, price decimal.Decimal, timestamp int64) error

	// SendStatus reports rung counts after a state change.
	SendStatus(ctx context.Context, activeCount, totalCount, completedCount int) error

	// SendStats reports realized profit aggregates.
	SendStats(ctx context.Context, stats domain.ProfitStats) error

	// SendError reports a failure worth surfacing to the dashboard.
	SendError(ctx context.Context, message string, timestamp int64) error
}
