package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles per-rider booking locks in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func bookingLockKey(riderID string) string {
	return fmt.Sprintf("lock:booking:%s", riderID)
}

// AcquireBookingLock serializes ride creation for one rider.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireBookingLock(ctx context.Context, riderID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, bookingLockKey(riderID), "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseBookingLock releases the booking lock for the given rider.
func (s *LockStore) ReleaseBookingLock(ctx context.Context, riderID string) error {
	return s.client.Del(ctx, bookingLockKey(riderID)).Err()
}
