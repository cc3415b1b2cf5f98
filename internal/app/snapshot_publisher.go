package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"curveStatApp/internal/app/dto"
	"curveStatApp/internal/domain/useCases"
	"curveStatApp/internal/lib/logger/sl"
)

// SnapshotCache stores the latest trending snapshot of a curve.
type SnapshotCache interface {
	SaveTrending(ctx context.Context, curve string, snapshot *dto.TrendingResponse) error
}

// SnapshotPublisher periodically writes the trending snapshot to the cache.
type SnapshotPublisher struct {
	cache    SnapshotCache
	trends   useCases.TrendQuery
	curve    string
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger
}

func NewSnapshotPublisher(log *slog.Logger, cache SnapshotCache, trends useCases.TrendQuery, curve string, interval time.Duration) *SnapshotPublisher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &SnapshotPublisher{
		cache:    cache,
		trends:   trends,
		curve:    curve,
		interval: interval,
		now:      time.Now,
		log:      log.With(slog.String("component", "snapshot_publisher")),
	}
}

// Run publishes once immediately and then on every tick until ctx is cancelled.
// Failures are logged and retried on the next tick.
func (p *SnapshotPublisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.PublishOnce(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn("failed to publish trending snapshot", sl.Err(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *SnapshotPublisher) PublishOnce(ctx context.Context) error {
	const op = "app.SnapshotPublisher.PublishOnce"

	ctx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	snapshot := dto.FromTrendingSnapshot(p.trends.GetTrendingSnapshot(p.now()))
	if err := p.cache.SaveTrending(ctx, p.curve, snapshot); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
