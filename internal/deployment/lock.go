package deployment

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

// Locker serializes Deploy and Cleanup per agent.
// Acquire returns ErrDeployInProgress when another flow holds the agent.
type Locker interface {
	Acquire(ctx context.Context, agentID string) (release func(), err error)
}

// MemoryLocker is an in-process Locker for single-instance deployments and tests.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]struct{}{}}
}

func (l *MemoryLocker) Acquire(_ context.Context, agentID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[agentID]; busy {
		return nil, ErrDeployInProgress
	}
	l.held[agentID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, agentID)
			l.mu.Unlock()
		})
	}, nil
}

const redisLockPrefix = "deploy:lock:"

// RedisLocker is a Locker shared across API instances.
// The TTL bounds how long a crashed process can hold an agent. A live holder
// re-arms the TTL every ttl/3 until it releases, so a flow may outlast it.
type RedisLocker struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) (*RedisLocker, error) {
	if rdb == nil {
		return nil, errors.New("deployment: redis client is nil")
	}
	if ttl <= 0 {
		return nil, errors.New("deployment: lock ttl must be > 0")
	}
	return &RedisLocker{rdb: rdb, ttl: ttl}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, agentID string) (func(), error) {
	key := redisLockPrefix + agentID
	token := uuid.NewString()

	ok, err := utils.AcquireLock(ctx, l.rdb, key, token, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDeployInProgress
	}

	kctx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go l.keepAlive(kctx, done, agentID, key, token)

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			<-done
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if _, err := utils.ReleaseLock(rctx, l.rdb, key, token); err != nil {
				logger.From(ctx).Warn("deploy lock release failed", "agent_id", agentID, "error", err.Error())
			}
		})
	}, nil
}

func (l *RedisLocker) keepAlive(ctx context.Context, done chan<- struct{}, agentID, key, token string) {
	defer close(done)
	every := l.ttl / 3
	if every <= 0 {
		every = l.ttl
	}
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		rctx, cancel := context.WithTimeout(ctx, every)
		ok, err := utils.RefreshLock(rctx, l.rdb, key, token, l.ttl)
		cancel()
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			logger.From(ctx).Warn("deploy lock refresh failed", "agent_id", agentID, "error", err.Error())
		case !ok:
			logger.From(ctx).Error("deploy lock lost while held", "agent_id", agentID, "alert", true)
			return
		}
	}
}
