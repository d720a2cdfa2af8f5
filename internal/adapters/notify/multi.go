package notify

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

// Multi fans out every notification to all wrapped notifiers. A failing
// sink never prevents the others from receiving the update.
type Multi struct {
	sinks []ports.Notifier
}

// NewMulti combines notifiers into one.
func NewMulti(sinks ...ports.Notifier) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) SendTrade(ctx context.Context, side domain.Side, amount, price decimal.Decimal, timestamp int64) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.SendTrade(ctx, side, amount, price, timestamp))
	}
	return errors.Join(errs...)
}

func (m *Multi) SendStatus(ctx context.Context, activeCount, totalCount, completedCount int) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.SendStatus(ctx, activeCount, totalCount, completedCount))
	}
	return errors.Join(errs...)
}

func (m *Multi) SendStats(ctx context.Context, stats domain.ProfitStats) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.SendStats(ctx, stats))
	}
	return errors.Join(errs...)
}

func (m *Multi) SendError(ctx context.Context, message string, timestamp int64) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.SendError(ctx, message, timestamp))
	}
	return errors.Join(errs...)
}
