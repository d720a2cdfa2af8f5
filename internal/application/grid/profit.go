package grid

import (
	"time"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// profitStats aggregates realized profit from the completed ledger.
// Each completed rung contributes (sellPrice − buyPrice) × amount.
func (e *Engine) profitStats(now time.Time) domain.ProfitStats {
	var stats domain.ProfitStats
	day := now.Add(-24 * time.Hour).UnixMilli()
	week := now.Add(-7 * 24 * time.Hour).UnixMilli()
	month := now.Add(-30 * 24 * time.Hour).UnixMilli()

	for _, p := range e.registry.Completed() {
		profit := p.Profit()
		stats.Total = stats.Total.Add(profit)
		if p.ClosedAt >= day {
			stats.Daily = stats.Daily.Add(profit)
		}
		if p.ClosedAt >= week {
			stats.Weekly = stats.Weekly.Add(profit)
		}
		if p.ClosedAt >= month {
			stats.Monthly = stats.Monthly.Add(profit)
		}
	}
	return stats
}

// ProfitStats is the exported view, computed under the engine mutex.
func (e *Engine) ProfitStats() domain.ProfitStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profitStats(time.Now())
}
