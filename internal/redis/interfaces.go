// Package redis holds the Redis-backed stores: booking locks, the driver
// location index and read caches.
package redis

import (
	"context"
	"time"

	"ecoride/internal/domain"
)

// LocationStoreInterface defines the interface for driver location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
	FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]DriverLocation, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for per-rider booking locks.
type LockStoreInterface interface {
	AcquireBookingLock(ctx context.Context, riderID string, ttl time.Duration) (bool, error)
	ReleaseBookingLock(ctx context.Context, riderID string) error
}

// EcoStatsCache defines the interface for cached eco-stats aggregates.
type EcoStatsCache interface {
	GetEcoStats(ctx context.Context, riderID string) (*domain.EcoStats, error)
	SetEcoStats(ctx context.Context, riderID string, stats domain.EcoStats) error
	InvalidateEcoStats(ctx context.Context, riderID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ EcoStatsCache          = (*CacheStore)(nil)
)
