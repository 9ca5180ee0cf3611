package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"voice-agent-platform/pkg/logger"
	"voice-agent-platform/pkg/utils"
)

var ErrRunInProgress = errors.New("billing: run already in progress for period")

// RunLocker keeps two runs for the same period from overlapping.
type RunLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// RedisRunLocker holds a per-period lock in Redis for at most ttl.
type RedisRunLocker struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisRunLocker(rdb redis.UniversalClient, ttl time.Duration) *RedisRunLocker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisRunLocker{rdb: rdb, ttl: ttl}
}

func (l *RedisRunLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := utils.AcquireLock(ctx, l.rdb, key, token, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRunInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if _, err := utils.ReleaseLock(rctx, l.rdb, key, token); err != nil {
				logger.From(ctx).Warn("billing lock release failed", "key", key, "error", err.Error())
			}
		})
	}, nil
}

func runLockKey(periodStart time.Time) string {
	return "billing:run:" + periodStart.UTC().Format("2006-01-02")
}
