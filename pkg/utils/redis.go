package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig controls redis client behavior.
// Keep it config-driven; defaults should be safe and conservative.
type RedisConfig struct {
	Addr string

	// Basic timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Pool tuning
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 20
	}
	if out.MinIdleConns < 0 {
		out.MinIdleConns = 0
	}
	if out.PoolTimeout <= 0 {
		out.PoolTimeout = 4 * time.Second
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

var lockReleaseScript = redis.NewScript(`
-- KEYS[1] = lock key
-- ARGV[1] = owner token
--
-- Returns:
--  1 if released
--  0 if the lock is held by someone else (or already expired)
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// AcquireLock attempts to take an exclusive lock on key for ttl, owned by token.
// It returns false (and no error) if another owner holds the lock.
//
// Safety properties:
// - SET NX PX is atomic.
// - TTL prevents leaked locks on process crash.
func AcquireLock(ctx context.Context, rdb redis.Cmdable, key, token string, ttl time.Duration) (bool, error) {
	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if key == "" || token == "" {
		return false, fmt.Errorf("key and token are required")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("ttl must be > 0")
	}

	err := rdb.SetArgs(ctx, key, token, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseLock deletes key only if it is still owned by token.
func ReleaseLock(ctx context.Context, rdb redis.Scripter, key, token string) (bool, error) {
	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if key == "" || token == "" {
		return false, fmt.Errorf("key and token are required")
	}
	n, err := lockReleaseScript.Run(ctx, rdb, []string{key}, token).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

var lockRefreshScript = redis.NewScript(`
-- KEYS[1] = lock key
-- ARGV[1] = owner token
-- ARGV[2] = ttl in milliseconds
--
-- Returns:
--  1 if the ttl was extended
--  0 if the lock is held by someone else (or already expired)
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// RefreshLock resets the ttl of key only if it is still owned by token.
// A false result means the lock was lost and the caller no longer holds it.
func RefreshLock(ctx context.Context, rdb redis.Scripter, key, token string, ttl time.Duration) (bool, error) {
	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if key == "" || token == "" {
		return false, fmt.Errorf("key and token are required")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("ttl must be > 0")
	}
	n, err := lockRefreshScript.Run(ctx, rdb, []string{key}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
