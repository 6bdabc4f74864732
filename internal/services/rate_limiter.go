package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// RateLimiterImpl implements domain.RateLimiter as a sliding window over a
// Redis sorted set per (caller, class). A sliding window avoids the burst
// artifacts of fixed buckets at window boundaries. The limiter fails open:
// if Redis is unreachable the call proceeds unthrottled rather than taking
// down availability.
type RateLimiterImpl struct {
	redisClient *redis.Client
	window      time.Duration
	limits      map[domain.LimitClass]int
	clock       domain.Clock
	logger      zerolog.Logger
}

// RateLimitConfig carries the per-class budgets over one shared window.
type RateLimitConfig struct {
	Window        time.Duration
	MutateLimit   int
	RecoveryLimit int
	ReadLimit     int
}

// NewRateLimiter creates a new Redis-backed sliding window rate limiter.
func NewRateLimiter(redisClient *redis.Client, cfg RateLimitConfig, clock domain.Clock, logger zerolog.Logger) domain.RateLimiter {
	return &RateLimiterImpl{
		redisClient: redisClient,
		window:      cfg.Window,
		limits: map[domain.LimitClass]int{
			domain.LimitClassMutate:   cfg.MutateLimit,
			domain.LimitClassRecovery: cfg.RecoveryLimit,
			domain.LimitClassRead:     cfg.ReadLimit,
		},
		clock:  clock,
		logger: logger.With().Str("component", "rate_limiter").Logger(),
	}
}

// Allow implements domain.RateLimiter.
func (l *RateLimiterImpl) Allow(ctx context.Context, callerKey string, class domain.LimitClass) (*domain.RateLimitDecision, error) {
	limit, ok := l.limits[class]
	if !ok || limit <= 0 {
		return &domain.RateLimitDecision{Allowed: true}, nil
	}

	key := fmt.Sprintf("rl:%s:%s", class, callerKey)
	now := l.clock.Now()
	windowStart := now.Add(-l.window)
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()[:8])

	pipe := l.redisClient.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	cardCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, l.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open.
		l.logger.Warn().Err(err).Str("key", key).Msg("rate limit backend unavailable, allowing request")
		return &domain.RateLimitDecision{Allowed: true}, nil
	}

	count := int(cardCmd.Val())
	if count <= limit {
		return &domain.RateLimitDecision{Allowed: true, Remaining: limit - count}, nil
	}

	// Over budget: retract the event just added and compute when the oldest
	// remaining event slides out of the window.
	l.redisClient.ZRem(ctx, key, member)
	retryAfter := l.window
	if oldest, err := l.redisClient.ZRangeWithScores(ctx, key, 0, 0).Result(); err == nil && len(oldest) == 1 {
		oldestAt := time.Unix(0, int64(oldest[0].Score))
		if wait := oldestAt.Add(l.window).Sub(now); wait > 0 && wait < retryAfter {
			retryAfter = wait
		}
	}

	return &domain.RateLimitDecision{Allowed: false, RetryAfter: retryAfter}, nil
}
