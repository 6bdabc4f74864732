package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// RecoveryGuardImpl implements domain.RecoveryGuard on Redis counters keyed
// by identifier hash and by caller network origin. The double key limits
// both targeted guessing against one identifier and broad scanning from one
// origin. Unlike the rate limiter this guard fails closed: recovery data is
// never touched when the lock state cannot be read.
type RecoveryGuardImpl struct {
	redisClient *redis.Client
	threshold   int
	window      time.Duration
}

// NewRecoveryGuard creates a new brute-force guard for the recovery paths.
func NewRecoveryGuard(redisClient *redis.Client, threshold int, window time.Duration) domain.RecoveryGuard {
	return &RecoveryGuardImpl{
		redisClient: redisClient,
		threshold:   threshold,
		window:      window,
	}
}

func idKey(idHash string) string     { return "recov:fail:id:" + idHash }
func originKey(origin string) string { return "recov:fail:origin:" + origin }

// CheckLocked implements domain.RecoveryGuard.
func (g *RecoveryGuardImpl) CheckLocked(ctx context.Context, idHash, origin string) error {
	pipe := g.redisClient.Pipeline()
	idCmd := pipe.Get(ctx, idKey(idHash))
	originCmd := pipe.Get(ctx, originKey(origin))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return fmt.Errorf("recovery guard unavailable: %w", err)
	}

	for _, cmd := range []*redis.StringCmd{idCmd, originCmd} {
		count, err := cmd.Int()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("recovery guard unavailable: %w", err)
		}
		if count >= g.threshold {
			return domain.ErrRecoveryLocked
		}
	}
	return nil
}

// RecordAttempt implements domain.RecoveryGuard. Failures bump both
// counters; a success clears the identifier counter only, so an origin that
// keeps scanning stays throttled.
func (g *RecoveryGuardImpl) RecordAttempt(ctx context.Context, idHash, origin string, success bool) error {
	if success {
		return g.redisClient.Del(ctx, idKey(idHash)).Err()
	}

	pipe := g.redisClient.TxPipeline()
	pipe.Incr(ctx, idKey(idHash))
	pipe.Expire(ctx, idKey(idHash), g.window)
	pipe.Incr(ctx, originKey(origin))
	pipe.Expire(ctx, originKey(origin), g.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record recovery attempt: %w", err)
	}
	return nil
}
