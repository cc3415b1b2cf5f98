package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"curveStatApp/internal/app/dto"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps the latest trending snapshot of each curve in Redis so that
// dashboards and sibling services can read it without hitting the indexer.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(addr, password string, db int, ttl time.Duration) *RedisRepository {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisRepository{client: client, ttl: ttl}
}

func trendingKey(curve string) string {
	return fmt.Sprintf("curvestat:trending:%s", curve)
}

// Ping checks that the server is reachable.
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// SaveTrending stores the snapshot under the curve's key, expiring after the configured TTL.
func (r *RedisRepository) SaveTrending(ctx context.Context, curve string, snapshot *dto.TrendingResponse) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal trending snapshot: %w", err)
	}

	return r.client.Set(ctx, trendingKey(curve), data, r.ttl).Err()
}

// GetTrending returns the cached snapshot, or nil when none is stored or it has expired.
func (r *RedisRepository) GetTrending(ctx context.Context, curve string) (*dto.TrendingResponse, error) {
	data, err := r.client.Get(ctx, trendingKey(curve)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var snapshot dto.TrendingResponse
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trending snapshot: %w", err)
	}

	return &snapshot, nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}
