package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_ExclusiveAndCleansUp(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, l.held())

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(short, "r1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	unlock() // second call is a no-op
	assert.Equal(t, 0, l.held())

	unlock, err = l.Lock(ctx, "r1")
	require.NoError(t, err)
	unlock()
}

func TestLocalLocker_IndependentNames(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	u1, err := l.Lock(ctx, "r1")
	require.NoError(t, err)
	u2, err := l.Lock(ctx, "r2")
	require.NoError(t, err)

	assert.Equal(t, 2, l.held())
	u1()
	u2()
	assert.Equal(t, 0, l.held())
}

func newTestRedisLocker(t *testing.T, lease time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	log, _ := test.NewNullLogger()
	return NewRedisLocker(rdb, "test:", lease, log), mr
}

func TestRedisLocker_Exclusive(t *testing.T) {
	l, mr := newTestRedisLocker(t, 5*time.Second)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:r1"))

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(short, "r1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	assert.False(t, mr.Exists("test:lock:r1"))

	unlock, err = l.Lock(ctx, "r1")
	require.NoError(t, err)
	unlock()
}

func TestRedisLocker_LeaseExpiryRestoresLiveness(t *testing.T) {
	l, mr := newTestRedisLocker(t, time.Second)
	ctx := context.Background()

	// A holder that never unlocks, as if its process died.
	_, err := l.Lock(ctx, "r1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	unlock, err := l.Lock(ctx, "r1")
	require.NoError(t, err)
	unlock()
}

func TestRedisLocker_StaleReleaseKeepsNewHolder(t *testing.T) {
	l, mr := newTestRedisLocker(t, time.Second)
	ctx := context.Background()

	staleUnlock, err := l.Lock(ctx, "r1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	unlock, err := l.Lock(ctx, "r1")
	require.NoError(t, err)

	staleUnlock()
	assert.True(t, mr.Exists("test:lock:r1"), "stale holder must not release the new lease")

	unlock()
	assert.False(t, mr.Exists("test:lock:r1"))
}

func TestRegistry_WithRedisLocker(t *testing.T) {
	l, _ := newTestRedisLocker(t, 5*time.Second)
	reg, store := newTestRegistry(t, WithLocker(l))
	ctx := context.Background()

	_, err := reg.CreateRoom(ctx, "lobby", seat("lobby", "alice", "c1"))
	require.NoError(t, err)
	_, err = reg.CreateRoom(ctx, "lobby", seat("lobby", "bob", "c2"))
	assert.ErrorIs(t, err, ErrRoomExists)

	stored, err := store.Load(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, stored.Names())
}
