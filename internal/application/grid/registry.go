package grid

import (
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// Registry is the authoritative in-memory ledger of rungs. It owns no
// I/O and is only touched under the engine's mutex: callers serialize
// through the engine's single mutation path.
type Registry struct {
	active    []domain.OrderPair
	completed []domain.OrderPair
}

// NewRegistry returns an empty ledger.
func NewRegistry() *Registry {
	return &Registry{}
}

// Restore replaces the active set with a loaded snapshot.
func (r *Registry) Restore(rungs []domain.OrderPair) {
	r.active = append([]domain.OrderPair(nil), rungs...)
}

// Reset clears both the active and completed sets.
func (r *Registry) Reset() {
	r.active = nil
	r.completed = nil
}

// Add appends a new rung to the active set.
func (r *Registry) Add(p domain.OrderPair) {
	r.active = append(r.active, p)
}

// ActiveCount returns the number of active rungs.
func (r *Registry) ActiveCount() int {
	return len(r.active)
}

// CompletedCount returns the number of completed rungs.
func (r *Registry) CompletedCount() int {
	return len(r.completed)
}

// Active returns a copy of the active set, safe to iterate while the
// registry mutates. Index-based updates go through Update/RemoveAt.
func (r *Registry) Active() []domain.OrderPair {
	return append([]domain.OrderPair(nil), r.active...)
}

// Completed returns a copy of the completed ledger.
func (r *Registry) Completed() []domain.OrderPair {
	return append([]domain.OrderPair(nil), r.completed...)
}

// FindByBuyOrder returns the index of the rung whose buy leg matches
// orderID, or -1.
func (r *Registry) FindByBuyOrder(orderID string) int {
	for i, p := range r.active {
		if p.BuyOrderID == orderID {
			return i
		}
	}
	return -1
}

// FindBySellOrder returns the index of the rung whose sell leg matches
// orderID, or -1.
func (r *Registry) FindBySellOrder(orderID string) int {
	for i, p := range r.active {
		if p.SellOrderID == orderID {
			return i
		}
	}
	return -1
}

// Get returns the rung at index i.
func (r *Registry) Get(i int) domain.OrderPair {
	return r.active[i]
}

// Update replaces the rung at index i.
func (r *Registry) Update(i int, p domain.OrderPair) {
	r.active[i] = p
}

// Complete removes the rung at index i from the active set and appends
// it to the completed ledger.
func (r *Registry) Complete(i int) domain.OrderPair {
	p := r.active[i]
	r.active = append(r.active[:i], r.active[i+1:]...)
	r.completed = append(r.completed, p)
	return p
}

// RemoveAt drops the rung at index i without completing it. Used when
// trimming excess rungs after their venue orders are canceled.
func (r *Registry) RemoveAt(i int) domain.OrderPair {
	p := r.active[i]
	r.active = append(r.active[:i], r.active[i+1:]...)
	return p
}

// Newest returns the index of the most recently added rung, breaking
// ties by position. Excess rungs are trimmed newest-first.
func (r *Registry) Newest() int {
	best := -1
	for i, p := range r.active {
		if best == -1 || p.CreatedAt >= r.active[best].CreatedAt {
			best = i
		}
	}
	return best
}

// LowestBuy returns the index of the active rung with the numerically
// lowest buy price, or -1 if no rung has a buy price. Trail-up
// sacrifices this rung.
func (r *Registry) LowestBuy() int {
	best := -1
	var bestPrice decimal.Decimal
	for i, p := range r.active {
		if p.BuyPrice.IsZero() && !p.HasBuyLeg() {
			continue
		}
		if best == -1 || p.BuyPrice.LessThan(bestPrice) {
			best = i
			bestPrice = p.BuyPrice
		}
	}
	return best
}

// ActiveSellLegs counts rungs currently waiting on a sell order.
func (r *Registry) ActiveSellLegs() int {
	n := 0
	for _, p := range r.active {
		if p.HasOpenSellLeg() {
			n++
		}
	}
	return n
}
