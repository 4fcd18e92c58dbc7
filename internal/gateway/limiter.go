package gateway

import (
	"context"
	"time"

	"voicegate/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Limiter bounds an org's concurrent vendor sessions. The gateway acquires a
// slot before starting a session; the completion reconciler releases it when
// the call reaches a terminal state. A nil Limiter disables the cap.
type Limiter interface {
	// Acquire reports whether the org is under its limit, taking a slot if so.
	Acquire(ctx context.Context, orgID string) (bool, error)

	// Release frees one of the org's slots. Releasing below zero is a no-op.
	Release(ctx context.Context, orgID string) error
}

type redisLimiter struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

// NewRedisLimiter builds a redis-backed Limiter. The TTL bounds leaked slots
// when the completion webhook never arrives, so it must comfortably exceed
// the longest plausible call; 0 picks a 2h default.
func NewRedisLimiter(rdb *redis.Client, limit int, ttl time.Duration) Limiter {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &redisLimiter{rdb: rdb, limit: limit, ttl: ttl}
}

func liveCallCapKey(orgID string) string {
	return "org:live_calls:" + orgID
}

func (l *redisLimiter) Acquire(ctx context.Context, orgID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.rdb, liveCallCapKey(orgID), l.limit, l.ttl)
}

func (l *redisLimiter) Release(ctx context.Context, orgID string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.rdb, liveCallCapKey(orgID))
}
