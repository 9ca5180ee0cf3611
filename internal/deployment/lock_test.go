package deployment

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_ExclusivePerAgent(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "a1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "a1")
	require.ErrorIs(t, err, ErrDeployInProgress)

	other, err := l.Acquire(ctx, "a2")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := l.Acquire(ctx, "a1")
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ExclusiveAcrossInstances(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	a, err := NewRedisLocker(rdb, time.Minute)
	require.NoError(t, err)
	b, err := NewRedisLocker(rdb, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	release, err := a.Acquire(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("deploy:lock:a1"))

	_, err = b.Acquire(ctx, "a1")
	require.ErrorIs(t, err, ErrDeployInProgress)

	release()
	assert.False(t, mr.Exists("deploy:lock:a1"))

	release2, err := b.Acquire(ctx, "a1")
	require.NoError(t, err)
	release2()
}

func TestRedisLocker_ExpiresCrashedHolder(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l, err := NewRedisLocker(rdb, time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(context.Background(), "a1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	release, err := l.Acquire(context.Background(), "a1")
	require.NoError(t, err)
	release()
}

func TestRedisLocker_HolderKeepsLockPastTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l, err := NewRedisLocker(rdb, 600*time.Millisecond)
	require.NoError(t, err)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "a1")
	require.NoError(t, err)

	mr.FastForward(500 * time.Millisecond)
	require.Eventually(t, func() bool {
		return mr.TTL("deploy:lock:a1") > 300*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)
	mr.FastForward(500 * time.Millisecond)
	assert.True(t, mr.Exists("deploy:lock:a1"))

	_, err = l.Acquire(ctx, "a1")
	require.ErrorIs(t, err, ErrDeployInProgress)

	release()
	assert.False(t, mr.Exists("deploy:lock:a1"))
}

func TestDeploy_RedisLockHeldThroughSlowGatewayCall(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	locker, err := NewRedisLocker(rdb, 600*time.Millisecond)
	require.NoError(t, err)

	h := newHarness(t)
	h.orch, err = NewOrchestrator(h.store, h.carrier, h.gateway, locker, h.sink, Options{
		SIPURI: testSIPURI,
		Now:    func() time.Time { return testNow },
	})
	require.NoError(t, err)

	// The inbound trunk call stalls for longer than the lock TTL.
	var concurrent error
	stalled := false
	h.gateway.hook = func(_ context.Context, method string) {
		if method != "CreateInboundTrunk" || stalled {
			return
		}
		stalled = true
		mr.FastForward(500 * time.Millisecond)
		require.Eventually(t, func() bool {
			return mr.TTL("deploy:lock:a1") > 300*time.Millisecond
		}, 2*time.Second, 10*time.Millisecond)
		mr.FastForward(500 * time.Millisecond)
		_, concurrent = h.orch.Deploy(context.Background(), deployReq(testPhone))
	}

	_, err = h.orch.Deploy(context.Background(), deployReq(testPhone))
	require.NoError(t, err)
	require.ErrorIs(t, concurrent, ErrDeployInProgress)
	assert.Equal(t, 1, h.rec.count("carrier.CreateTrunk"))
	assert.False(t, mr.Exists("deploy:lock:a1"))
}
