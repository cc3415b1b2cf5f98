package cache_test

import (
	"context"
	"testing"
	"time"

	"curveStatApp/internal/app/dto"
	"curveStatApp/internal/infrastructure/cache"

	"github.com/alicebob/miniredis/v2"
)

func newTestRepository(t *testing.T, ttl time.Duration) (*cache.RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	repo := cache.NewRedisRepository(mr.Addr(), "", 0, ttl)
	t.Cleanup(func() { repo.Close() })
	return repo, mr
}

func TestRedisRepository(t *testing.T) {
	repo, _ := newTestRepository(t, time.Minute)
	ctx := context.Background()

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	snapshot := &dto.TrendingResponse{
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		CurveStats: &dto.CurveSnapshotDTO{
			CurrentStep:  3,
			CurrentPrice: "0.0015",
		},
		Metrics: dto.MetricsDTO{
			TradesLastHour: 2,
			TotalVolume:    "1.400000",
		},
		RecentTrades: []dto.TradeDTO{},
		Trending:     dto.TrendingDTO{Momentum: "increasing", Volume: "high"},
	}

	if err := repo.SaveTrending(ctx, "0xcurve", snapshot); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	retrieved, err := repo.GetTrending(ctx, "0xcurve")
	if err != nil {
		t.Fatalf("Failed to get snapshot: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Retrieved snapshot is nil")
	}
	if retrieved.Metrics.TotalVolume != "1.400000" {
		t.Errorf("Expected totalVolume 1.400000, got %s", retrieved.Metrics.TotalVolume)
	}
	if retrieved.CurveStats == nil || retrieved.CurveStats.CurrentStep != 3 {
		t.Errorf("Expected current step 3, got %+v", retrieved.CurveStats)
	}
	if !retrieved.Timestamp.Equal(snapshot.Timestamp) {
		t.Errorf("Expected timestamp %s, got %s", snapshot.Timestamp, retrieved.Timestamp)
	}
}

func TestRedisRepositoryMissingKey(t *testing.T) {
	repo, _ := newTestRepository(t, time.Minute)

	got, err := repo.GetTrending(context.Background(), "0xunknown")
	if err != nil {
		t.Fatalf("Expected no error for a missing key, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil snapshot, got %+v", got)
	}
}

func TestRedisRepositoryExpires(t *testing.T) {
	repo, mr := newTestRepository(t, 10*time.Second)
	ctx := context.Background()

	if err := repo.SaveTrending(ctx, "0xcurve", &dto.TrendingResponse{}); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(11 * time.Second)

	got, err := repo.GetTrending(ctx, "0xcurve")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("Expected the snapshot to expire")
	}
}

func TestRedisRepositoryCorruptValue(t *testing.T) {
	repo, mr := newTestRepository(t, time.Minute)
	if err := mr.Set("curvestat:trending:0xcurve", "not json"); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.GetTrending(context.Background(), "0xcurve"); err == nil {
		t.Error("Expected an unmarshal error")
	}
}
