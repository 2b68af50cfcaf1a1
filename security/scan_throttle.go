package security

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScanThrottle caps how fast one operator can push scans through the
// gate endpoint. Check-in stays idempotent without it; this only blunts
// a runaway client hammering the API.
type ScanThrottle struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewScanThrottle(redisClient *redis.Client, limit int, window time.Duration) *ScanThrottle {
	return &ScanThrottle{
		redis:  redisClient,
		limit:  limit,
		window: window,
	}
}

// Allow reports whether the operator may scan right now. Redis errors
// fail open so the gate keeps moving when the counter is unavailable.
func (t *ScanThrottle) Allow(ctx context.Context, operatorID string) bool {
	key := fmt.Sprintf("scanthrottle:%s", operatorID)

	count, err := t.redis.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		t.redis.Expire(ctx, key, t.window)
	}

	return count <= int64(t.limit)
}
