package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Momentum compares short-window activity against the longer window.
type Momentum string

const (
	MomentumIncreasing Momentum = "increasing"
	MomentumDecreasing Momentum = "decreasing"
)

// VolumeLevel buckets the one-hour volume.
type VolumeLevel string

const (
	VolumeHigh VolumeLevel = "high"
	VolumeLow  VolumeLevel = "low"
)

// TrendMetrics holds the windowed statistics derived from the trade ledger.
type TrendMetrics struct {
	TradesLastHour int
	BuyCount       int
	SellCount      int
	TotalVolume    decimal.Decimal // native volume over the last hour, buys and sells added
	Velocity5Min   decimal.Decimal // trades per minute
	Velocity15Min  decimal.Decimal
	PriceChange    decimal.Decimal // percent change of step index across the hour
}

// TrendClassification is the heuristic label set attached to a snapshot.
type TrendClassification struct {
	IsTrending bool
	Momentum   Momentum
	Volume     VolumeLevel
}

// TrendingSnapshot is the full read model served by /trending.
type TrendingSnapshot struct {
	Timestamp    time.Time
	CurveStats   *CurveSnapshot
	Graduation   *GraduationRecord
	Metrics      TrendMetrics
	RecentTrades []TradeRecord
	Trending     TrendClassification
}

// TradesPage is a newest-first slice of the ledger plus its full size.
type TradesPage struct {
	Trades []TradeRecord
	Total  int
}

// CurveStats pairs the curve snapshot with the graduation state.
type CurveStats struct {
	CurveStats *CurveSnapshot
	Graduation *GraduationRecord
	Timestamp  time.Time
}
