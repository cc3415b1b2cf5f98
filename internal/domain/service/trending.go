package service

import (
	"math/big"
	"time"

	"curveStatApp/internal/domain/model"

	"github.com/shopspring/decimal"
)

const (
	window1h  = time.Hour
	window15m = 15 * time.Minute
	window5m  = 5 * time.Minute
)

var (
	// trades per minute above which the curve counts as trending
	trendingVelocity = decimal.NewFromInt(2)
	// one-hour native volume above which volume is "high"
	highVolume = decimal.NewFromInt(1)
	hundred    = decimal.NewFromInt(100)
)

// computeTrend derives the windowed metrics from a newest-first slice of trades.
func computeTrend(trades []model.TradeRecord, now time.Time) (model.TrendMetrics, model.TrendClassification) {
	var (
		metrics         model.TrendMetrics
		count15, count5 int
		newestInHour    *model.TradeRecord
		oldestInHour    *model.TradeRecord
	)
	metrics.TotalVolume = decimal.Zero

	for i := range trades {
		t := &trades[i]
		if !inWindow(t.ObservedAt, now, window1h) {
			continue
		}

		metrics.TradesLastHour++
		if t.IsBuy {
			metrics.BuyCount++
		} else {
			metrics.SellCount++
		}
		metrics.TotalVolume = metrics.TotalVolume.Add(t.CostOrProceeds.Abs())

		if newestInHour == nil {
			newestInHour = t
		}
		oldestInHour = t

		if inWindow(t.ObservedAt, now, window15m) {
			count15++
		}
		if inWindow(t.ObservedAt, now, window5m) {
			count5++
		}
	}

	metrics.Velocity5Min = velocity(count5, window5m)
	metrics.Velocity15Min = velocity(count15, window15m)
	metrics.PriceChange = decimal.Zero
	if metrics.TradesLastHour >= 2 {
		metrics.PriceChange = stepChangePercent(oldestInHour.StepIndex, newestInHour.StepIndex)
	}

	class := model.TrendClassification{
		IsTrending: metrics.Velocity5Min.GreaterThan(trendingVelocity),
		Momentum:   model.MomentumDecreasing,
		Volume:     model.VolumeLow,
	}
	if metrics.Velocity5Min.GreaterThan(metrics.Velocity15Min) {
		class.Momentum = model.MomentumIncreasing
	}
	if metrics.TotalVolume.GreaterThan(highVolume) {
		class.Volume = model.VolumeHigh
	}

	return metrics, class
}

// inWindow reports whether at lies in the window of length w ending at now, both ends included.
func inWindow(at, now time.Time, w time.Duration) bool {
	return !at.After(now) && now.Sub(at) <= w
}

func velocity(count int, window time.Duration) decimal.Decimal {
	minutes := decimal.NewFromInt(int64(window / time.Minute))
	return decimal.NewFromInt(int64(count)).Div(minutes)
}

// stepChangePercent is 0 when the oldest step is 0.
func stepChangePercent(oldest, newest uint64) decimal.Decimal {
	if oldest == 0 {
		return decimal.Zero
	}
	from := decimal.NewFromBigInt(new(big.Int).SetUint64(oldest), 0)
	to := decimal.NewFromBigInt(new(big.Int).SetUint64(newest), 0)
	return to.Sub(from).Div(from).Mul(hundred)
}
