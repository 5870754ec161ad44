package distributed

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient connects to the Redis named by CASTMUX_TEST_REDIS and skips otherwise.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("CASTMUX_TEST_REDIS")
	if addr == "" {
		t.Skip("CASTMUX_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("redis at %s unreachable: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func testManager(t *testing.T) *LeaseManager {
	return NewLeaseManager(testClient(t), "castmux:test:"+uuid.NewString()+":")
}

func TestLease_Exclusive(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	first := m.Lease("camera", 3*time.Second)
	second := m.Lease("camera", 3*time.Second)

	ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, first.Held())

	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	holder, err := second.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Token(), holder)

	require.NoError(t, first.Release(ctx))
	assert.False(t, first.Held())

	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Release(ctx))
}

func TestLease_TryAcquireIsIdempotent(t *testing.T) {
	l := testManager(t).Lease("camera", 3*time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.TryAcquire(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	require.NoError(t, l.Release(ctx))
	assert.NoError(t, l.Release(ctx), "releasing twice is a no-op")
}

func TestLease_RenewsPastTTL(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	l := m.Lease("camera", time.Second)

	ok, err := l.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer l.Release(ctx)

	time.Sleep(2500 * time.Millisecond)
	holder, err := l.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, l.Token(), holder)
}

func TestLease_LostWhenKeyStolen(t *testing.T) {
	client := testClient(t)
	m := NewLeaseManager(client, "castmux:test:"+uuid.NewString()+":")
	ctx := context.Background()
	l := m.Lease("camera", time.Second)

	var lost atomic.Bool
	l.OnLost(func() { lost.Store(true) })

	ok, err := l.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, client.Set(ctx, l.Key(), "someone-else", time.Minute).Err())
	assert.Eventually(t, lost.Load, 3*time.Second, 20*time.Millisecond)
	assert.False(t, l.Held())
	assert.NoError(t, l.Release(ctx))

	holder, err := l.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", holder)
	client.Del(ctx, l.Key())
}

func TestLease_AcquireTimesOut(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	holder := m.Lease("camera", 3*time.Second)
	ok, err := holder.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer holder.Release(ctx)

	err = m.Lease("camera", 3*time.Second).Acquire(ctx, 250*time.Millisecond)
	assert.ErrorContains(t, err, "acquisition timeout")
}

func TestLease_ReleaseAfterExpiry(t *testing.T) {
	client := testClient(t)
	l := NewLease(client, "castmux:test:"+uuid.NewString(), 3*time.Second)
	ctx := context.Background()

	ok, err := l.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, client.Del(ctx, l.Key()).Err())
	assert.ErrorIs(t, l.Release(ctx), ErrLeaseNotHeld)
}
