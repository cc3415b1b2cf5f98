package useCases

import (
	"net/http"
	"time"

	"curveStatApp/internal/domain/model"

	"github.com/shopspring/decimal"
)

// TrendQuery is the read side of the aggregator, used by the HTTP layer.
type TrendQuery interface {
	GetTrendingSnapshot(now time.Time) *model.TrendingSnapshot
	GetTrades(limit int) *model.TradesPage
	GetCurveStats() *model.CurveStats
	TradeCount() int
	HasGraduated() bool
}

// TrendService defines the interface for trade ingestion and trending queries.
type TrendService interface {
	TrendQuery
	RecordTrade(trade model.TradeRecord)
	AdvanceStep(step uint64, price decimal.Decimal)
	Graduate(graduation model.GraduationRecord) bool
}

// Broadcaster defines an interface for pushing updates to WebSocket/API layers.
type Broadcaster interface {
	BroadcastTrending(snapshot *model.TrendingSnapshot)
	Handler() http.HandlerFunc
}
