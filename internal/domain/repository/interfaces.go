// Package repository defines all the repository interfaces used by domain services
// Following the dependency inversion principle, domain logic depends on these interfaces,
// and infrastructure implementations provide concrete implementations
package repository

import (
	"context"
	"time"

	"curveStatApp/internal/domain/model"
)

// TradeArchive defines the interface for durable storage of curve events
// The in-memory ledger stays authoritative for queries; the archive is write-behind
// and is only read back for an optional warm start
type TradeArchive interface {
	// SaveTrade persists one observed trade
	SaveTrade(ctx context.Context, trade *model.TradeRecord) error

	// SaveGraduation persists the graduation of the curve
	SaveGraduation(ctx context.Context, graduation *model.GraduationRecord) error

	// GetTradesSince returns archived trades observed at or after since, oldest first,
	// capped at limit rows
	GetTradesSince(ctx context.Context, since time.Time, limit int) ([]*model.TradeRecord, error)
}
