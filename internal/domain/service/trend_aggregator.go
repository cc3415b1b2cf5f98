// Package service provides implementations of domain services that implement core business logic
// This package depends only on domain models and repository interfaces (not implementations)
package service

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"curveStatApp/internal/domain/model"
	"curveStatApp/internal/domain/useCases"

	"github.com/shopspring/decimal"
)

const (
	// DefaultRetention is the number of trades kept in memory.
	DefaultRetention = 1000
	// DefaultTradesLimit is the page size of GetTrades when the caller gives none.
	DefaultTradesLimit = 100
	// RecentTradesInSnapshot is the number of trades attached to a trending snapshot.
	RecentTradesInSnapshot = 50
)

// TrendAggregator owns the trade ledger, the curve snapshot and the graduation record
// of a single bonding-curve contract and derives trending metrics from them.
//
// Writers are the event handlers, which the event processor runs one at a time.
// Readers are the HTTP handlers. Everything handed out is a copy.
type TrendAggregator struct {
	mu         sync.RWMutex
	trades     *tradeLedger
	snapshot   *model.CurveSnapshot
	graduation *model.GraduationRecord
	now        func() time.Time
	log        *slog.Logger
}

// NewTrendAggregator creates an aggregator that retains at most retention trades.
func NewTrendAggregator(log *slog.Logger, retention int) *TrendAggregator {
	return NewTrendAggregatorWithClock(log, retention, time.Now)
}

// NewTrendAggregatorWithClock is NewTrendAggregator with an injectable clock.
func NewTrendAggregatorWithClock(log *slog.Logger, retention int, now func() time.Time) *TrendAggregator {
	if log == nil {
		log = slog.Default()
	}
	return &TrendAggregator{
		trades: newTradeLedger(retention),
		now:    now,
		log:    log.With(slog.String("component", "trend_aggregator")),
	}
}

// RecordTrade stamps the trade with the receipt time (unless already set) and
// puts it at the front of the ledger, evicting the oldest trade once full.
func (a *TrendAggregator) RecordTrade(trade model.TradeRecord) {
	if trade.ObservedAt.IsZero() {
		trade.ObservedAt = a.now()
	}
	trade.Trader = strings.ToLower(trade.Trader)

	a.mu.Lock()
	a.trades.push(trade)
	a.mu.Unlock()
}

// AdvanceStep overwrites the curve snapshot.
func (a *TrendAggregator) AdvanceStep(step uint64, price decimal.Decimal) {
	a.mu.Lock()
	a.snapshot = &model.CurveSnapshot{
		CurrentStep:  step,
		CurrentPrice: price,
		CapturedAt:   a.now(),
	}
	a.mu.Unlock()
}

// SeedSnapshot sets the snapshot read from the contract at startup.
func (a *TrendAggregator) SeedSnapshot(step uint64, price decimal.Decimal) {
	a.AdvanceStep(step, price)
}

// Graduate stores the graduation record. A curve graduates once: a second call
// is logged as an anomaly, leaves the first record in place and returns false.
func (a *TrendAggregator) Graduate(graduation model.GraduationRecord) bool {
	if graduation.GraduatedAt.IsZero() {
		graduation.GraduatedAt = a.now()
	}

	a.mu.Lock()
	existing := a.graduation
	if existing == nil {
		a.graduation = &graduation
	}
	a.mu.Unlock()

	if existing != nil {
		a.log.Warn("duplicate graduation event",
			slog.String("first_tx", existing.TransactionHash),
			slog.Uint64("first_block", existing.BlockNumber),
			slog.String("duplicate_tx", graduation.TransactionHash),
			slog.Uint64("duplicate_block", graduation.BlockNumber),
		)
		return false
	}

	a.log.Info("curve graduated",
		slog.String("tx", graduation.TransactionHash),
		slog.String("tokens_sold", graduation.TokensSoldOnCurve.String()),
		slog.String("native_reserve", graduation.NativeReserve.String()),
	)
	return true
}

// GetTrendingSnapshot computes the 5m/15m/1h metrics ending at now. It does not
// modify the ledger.
func (a *TrendAggregator) GetTrendingSnapshot(now time.Time) *model.TrendingSnapshot {
	a.mu.RLock()
	all := a.trades.newest(a.trades.len())
	snapshot := copySnapshot(a.snapshot)
	graduation := copyGraduation(a.graduation)
	a.mu.RUnlock()

	metrics, class := computeTrend(all, now)

	recent := all
	if len(recent) > RecentTradesInSnapshot {
		recent = recent[:RecentTradesInSnapshot]
	}

	return &model.TrendingSnapshot{
		Timestamp:    now,
		CurveStats:   snapshot,
		Graduation:   graduation,
		Metrics:      metrics,
		RecentTrades: recent,
		Trending:     class,
	}
}

// GetTrades returns the limit most recent trades. A negative limit means
// DefaultTradesLimit; the result is clamped to the ledger size.
func (a *TrendAggregator) GetTrades(limit int) *model.TradesPage {
	if limit < 0 {
		limit = DefaultTradesLimit
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	return &model.TradesPage{
		Trades: a.trades.newest(limit),
		Total:  a.trades.len(),
	}
}

// GetCurveStats returns the snapshot and graduation as stored.
func (a *TrendAggregator) GetCurveStats() *model.CurveStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return &model.CurveStats{
		CurveStats: copySnapshot(a.snapshot),
		Graduation: copyGraduation(a.graduation),
		Timestamp:  a.now(),
	}
}

// TradeCount is the number of trades currently retained.
func (a *TrendAggregator) TradeCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.trades.len()
}

// HasGraduated reports whether a Graduated event has been seen.
func (a *TrendAggregator) HasGraduated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.graduation != nil
}

func copySnapshot(s *model.CurveSnapshot) *model.CurveSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func copyGraduation(g *model.GraduationRecord) *model.GraduationRecord {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}

// Ensure interface compliance
var _ useCases.TrendService = (*TrendAggregator)(nil)
