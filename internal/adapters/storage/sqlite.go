package storage

// sqlite.go: durable rung snapshots, one row per traded asset.
//
// The store is a plain key-value table so a single database can serve
// several grid instances running against different pairs. Snapshots are
// whole-set overwrites (UPSERT); there is no read-modify-write contract
// back into the engine. Decimals travel as exact-precision strings,
// never floats.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    asset_key TEXT PRIMARY KEY,
    rungs     TEXT     NOT NULL,
    saved_at  DATETIME NOT NULL
);
`

// SQLiteStore implements ports.SnapshotStore using SQLite (pure Go, no CGo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given path and
// applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save overwrites the snapshot for the given asset.
func (s *SQLiteStore) Save(ctx context.Context, assetKey string, rungs []domain.OrderPair) error {
	payload, err := encodeRungs(rungs)
	if err != nil {
		return fmt.Errorf("storage.Save: encode %s: %w", assetKey, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (asset_key, rungs, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(asset_key) DO UPDATE SET
			rungs    = excluded.rungs,
			saved_at = excluded.saved_at
	`, assetKey, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage.Save: upsert %s: %w", assetKey, err)
	}
	return nil
}

// Load returns the last saved snapshot for the asset, or an empty slice
// if none exists.
func (s *SQLiteStore) Load(ctx context.Context, assetKey string) ([]domain.OrderPair, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT rungs FROM snapshots WHERE asset_key = ?`, assetKey,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.Load: query %s: %w", assetKey, err)
	}

	rungs, err := decodeRungs(payload)
	if err != nil {
		return nil, fmt.Errorf("storage.Load: decode %s: %w", assetKey, err)
	}
	return rungs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- codec ---

// rungRecord is the wire form of one rung. Prices and amounts are
// exact-precision decimal strings.
type rungRecord struct {
	BuyOrderID  string `json:"buyOrderId"`
	SellOrderID string `json:"sellOrderId,omitempty"`
	BuyPrice    string `json:"buyPrice"`
	SellPrice   string `json:"sellPrice,omitempty"`
	BuyKind     string `json:"buyKind"`
	Amount      string `json:"amount"`
	Timestamp   int64  `json:"timestamp"`
}

func encodeRungs(rungs []domain.OrderPair) (string, error) {
	records := make([]rungRecord, 0, len(rungs))
	for _, p := range rungs {
		rec := rungRecord{
			BuyOrderID:  p.BuyOrderID,
			SellOrderID: p.SellOrderID,
			BuyPrice:    p.BuyPrice.String(),
			BuyKind:     string(p.BuyKind),
			Amount:      p.Amount.String(),
			Timestamp:   p.CreatedAt,
		}
		if p.HasSellLeg() {
			rec.SellPrice = p.SellPrice.String()
		}
		records = append(records, rec)
	}

	b, err := json.Marshal(records)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRungs(payload string) ([]domain.OrderPair, error) {
	var records []rungRecord
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, err
	}

	rungs := make([]domain.OrderPair, 0, len(records))
	for _, rec := range records {
		buyPrice, err := decimal.NewFromString(rec.BuyPrice)
		if err != nil {
			return nil, fmt.Errorf("rung %s: buy price %q: %w", rec.BuyOrderID, rec.BuyPrice, err)
		}
		amount, err := decimal.NewFromString(rec.Amount)
		if err != nil {
			return nil, fmt.Errorf("rung %s: amount %q: %w", rec.BuyOrderID, rec.Amount, err)
		}

		p := domain.OrderPair{
			BuyOrderID:  rec.BuyOrderID,
			SellOrderID: rec.SellOrderID,
			BuyPrice:    buyPrice,
			BuyKind:     domain.OrderKind(rec.BuyKind),
			Amount:      amount,
			CreatedAt:   rec.Timestamp,
			// The snapshot only carries active rungs: a rung with a sell
			// leg is waiting on it, one without is waiting on its buy.
			BuyStatus: domain.StatusOpen,
		}
		if rec.SellOrderID != "" {
			p.BuyStatus = domain.StatusClosed
			p.SellPrice, err = decimal.NewFromString(rec.SellPrice)
			if err != nil {
				return nil, fmt.Errorf("rung %s: sell price %q: %w", rec.BuyOrderID, rec.SellPrice, err)
			}
		}
		rungs = append(rungs, p)
	}
	return rungs, nil
}
