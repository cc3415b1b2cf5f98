package dto

import (
	"time"

	"curveStatApp/internal/domain/model"
)

// Numeric convention: every token or native amount and every derived metric is a
// decimal string. Raw amounts keep full precision; volume is fixed to 6 places,
// velocity and price change to 2. Counts, steps and block numbers stay integers.
const (
	volumePlaces = 6
	ratePlaces   = 2
)

// TradeDTO is the JSON form of a ledger record.
type TradeDTO struct {
	TransactionHash string    `json:"transactionHash"`
	Trader          string    `json:"trader"`
	IsBuy           bool      `json:"isBuy"`
	Quantity        string    `json:"quantity"`
	CostOrProceeds  string    `json:"costOrProceeds"`
	StepIndex       uint64    `json:"stepIndex"`
	ObservedAt      time.Time `json:"observedAt"`
	BlockNumber     uint64    `json:"blockNumber"`
}

// CurveSnapshotDTO is the JSON form of the current curve state.
type CurveSnapshotDTO struct {
	CurrentStep  uint64    `json:"currentStep"`
	CurrentPrice string    `json:"currentPrice"`
	CapturedAt   time.Time `json:"capturedAt"`
}

// GraduationDTO is the JSON form of the graduation record.
type GraduationDTO struct {
	TokensSoldOnCurve string    `json:"tokensSoldOnCurve"`
	NativeReserve     string    `json:"nativeReserve"`
	GraduatedAt       time.Time `json:"graduatedAt"`
	TransactionHash   string    `json:"transactionHash"`
	BlockNumber       uint64    `json:"blockNumber"`
}

// MetricsDTO holds the windowed statistics.
type MetricsDTO struct {
	TradesLastHour int    `json:"tradesLastHour"`
	BuyCount       int    `json:"buyCount"`
	SellCount      int    `json:"sellCount"`
	TotalVolume    string `json:"totalVolume"`
	Velocity5Min   string `json:"velocity5Min"`
	Velocity15Min  string `json:"velocity15Min"`
	PriceChange    string `json:"priceChange"`
}

// TrendingDTO holds the classification labels.
type TrendingDTO struct {
	IsTrending bool   `json:"isTrending"`
	Momentum   string `json:"momentum"`
	Volume     string `json:"volume"`
}

// TrendingResponse is the body of GET /trending and of websocket pushes.
type TrendingResponse struct {
	Timestamp    time.Time         `json:"timestamp"`
	CurveStats   *CurveSnapshotDTO `json:"curveStats"`
	Graduation   *GraduationDTO    `json:"graduation"`
	Metrics      MetricsDTO        `json:"metrics"`
	RecentTrades []TradeDTO        `json:"recentTrades"`
	Trending     TrendingDTO       `json:"trending"`
}

// CurveStatsResponse is the body of GET /curve-stats.
type CurveStatsResponse struct {
	CurveStats *CurveSnapshotDTO `json:"curveStats"`
	Graduation *GraduationDTO    `json:"graduation"`
	Timestamp  time.Time         `json:"timestamp"`
}

// TradesResponse is the body of GET /trades.
type TradesResponse struct {
	Trades    []TradeDTO `json:"trades"`
	Count     int        `json:"count"`
	Total     int        `json:"total"`
	Timestamp time.Time  `json:"timestamp"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	CurveAddress string    `json:"curveAddress"`
	RPC          string    `json:"rpc"`
	TradesCount  int       `json:"tradesCount"`
	HasGraduated bool      `json:"hasGraduated"`
}

// FromTrade creates a TradeDTO from a domain model
func FromTrade(t *model.TradeRecord) TradeDTO {
	return TradeDTO{
		TransactionHash: t.TransactionHash,
		Trader:          t.Trader,
		IsBuy:           t.IsBuy,
		Quantity:        t.Quantity.String(),
		CostOrProceeds:  t.CostOrProceeds.String(),
		StepIndex:       t.StepIndex,
		ObservedAt:      t.ObservedAt,
		BlockNumber:     t.BlockNumber,
	}
}

func FromTrades(trades []model.TradeRecord) []TradeDTO {
	dtos := make([]TradeDTO, len(trades))
	for i := range trades {
		dtos[i] = FromTrade(&trades[i])
	}
	return dtos
}

func FromCurveSnapshot(s *model.CurveSnapshot) *CurveSnapshotDTO {
	if s == nil {
		return nil
	}
	return &CurveSnapshotDTO{
		CurrentStep:  s.CurrentStep,
		CurrentPrice: s.CurrentPrice.String(),
		CapturedAt:   s.CapturedAt,
	}
}

func FromGraduation(g *model.GraduationRecord) *GraduationDTO {
	if g == nil {
		return nil
	}
	return &GraduationDTO{
		TokensSoldOnCurve: g.TokensSoldOnCurve.String(),
		NativeReserve:     g.NativeReserve.String(),
		GraduatedAt:       g.GraduatedAt,
		TransactionHash:   g.TransactionHash,
		BlockNumber:       g.BlockNumber,
	}
}

// FromTrendingSnapshot creates the /trending body from a domain snapshot
func FromTrendingSnapshot(s *model.TrendingSnapshot) *TrendingResponse {
	m := s.Metrics
	return &TrendingResponse{
		Timestamp:  s.Timestamp,
		CurveStats: FromCurveSnapshot(s.CurveStats),
		Graduation: FromGraduation(s.Graduation),
		Metrics: MetricsDTO{
			TradesLastHour: m.TradesLastHour,
			BuyCount:       m.BuyCount,
			SellCount:      m.SellCount,
			TotalVolume:    m.TotalVolume.StringFixed(volumePlaces),
			Velocity5Min:   m.Velocity5Min.StringFixed(ratePlaces),
			Velocity15Min:  m.Velocity15Min.StringFixed(ratePlaces),
			PriceChange:    m.PriceChange.StringFixed(ratePlaces),
		},
		RecentTrades: FromTrades(s.RecentTrades),
		Trending: TrendingDTO{
			IsTrending: s.Trending.IsTrending,
			Momentum:   string(s.Trending.Momentum),
			Volume:     string(s.Trending.Volume),
		},
	}
}

func FromCurveStats(s *model.CurveStats) *CurveStatsResponse {
	return &CurveStatsResponse{
		CurveStats: FromCurveSnapshot(s.CurveStats),
		Graduation: FromGraduation(s.Graduation),
		Timestamp:  s.Timestamp,
	}
}

func FromTradesPage(p *model.TradesPage, now time.Time) *TradesResponse {
	trades := FromTrades(p.Trades)
	return &TradesResponse{
		Trades:    trades,
		Count:     len(trades),
		Total:     p.Total,
		Timestamp: now,
	}
}
