package ports

import (
	"context"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// SnapshotStore persists the active rung set for crash recovery. One
// store serves multiple grid instances: the key is the traded asset
// symbol. Decimals survive the round trip with exact precision.
type SnapshotStore interface {
	// Save overwrites the snapshot for the given asset.
	Save(ctx context.Context, assetKey string, rungs []domain.OrderPair) error

	// Load returns the last saved snapshot, or an empty slice if none.
	Load(ctx context.Context, assetKey string) ([]domain.OrderPair, error)

	// Close releases the underlying store cleanly.
	Close() error
}
