package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"ecoride/internal/domain"
)

// CacheStore caches read-heavy aggregates in Redis.
type CacheStore struct {
	client *redis.Client
	ttl    time.Duration
}

// EcoStatsCacheTTL bounds staleness if an invalidation is lost.
const EcoStatsCacheTTL = 10 * time.Minute

const ecoStatsPrefix = "cache:eco_stats:"

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client, ttl: EcoStatsCacheTTL}
}

// GetEcoStats returns cached stats, or nil on a cache miss.
func (s *CacheStore) GetEcoStats(ctx context.Context, riderID string) (*domain.EcoStats, error) {
	data, err := s.client.Get(ctx, ecoStatsPrefix+riderID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var stats domain.EcoStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// SetEcoStats stores a rider's stats.
func (s *CacheStore) SetEcoStats(ctx context.Context, riderID string, stats domain.EcoStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, ecoStatsPrefix+riderID, data, s.ttl).Err()
}

// InvalidateEcoStats drops a rider's cached stats.
func (s *CacheStore) InvalidateEcoStats(ctx context.Context, riderID string) error {
	return s.client.Del(ctx, ecoStatsPrefix+riderID).Err()
}
