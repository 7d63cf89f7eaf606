// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"wheel-tracker/internal/models"
)

// PositionStore defines the interface for trade persistence.
//
// Implementations persist only the authoritative fields of a trade. Loaded
// trades come back with zeroed derived fields; callers run
// trading.Recalculate after every load.
type PositionStore interface {
	// Create assigns a new ID to trade and inserts it.
	Create(ctx context.Context, trade *models.Trade) error
	Get(ctx context.Context, id string) (*models.Trade, error)
	ListOpen(ctx context.Context) ([]models.Trade, error)
	// ListAll returns every trade ordered by ticker, then open date.
	ListAll(ctx context.Context) ([]models.Trade, error)
	Save(ctx context.Context, trade models.Trade) error
	// SaveBatch writes all trades in one transaction; either all rows are
	// updated or none are.
	SaveBatch(ctx context.Context, trades []models.Trade) error
	// SaveQuotes writes only CurrentSharePrice, and only for trades that are
	// still open, in one transaction. It returns the IDs it updated; a trade
	// closed or removed since it was read is skipped.
	SaveQuotes(ctx context.Context, trades []models.Trade) ([]string, error)

	// Lifecycle
	Close() error
}

// RefreshRecorder is implemented by stores that remember when open positions
// were last priced.
type RefreshRecorder interface {
	GetLastRefresh(ctx context.Context) time.Time
	SetLastRefresh(ctx context.Context, t time.Time) error
}
