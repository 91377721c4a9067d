package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestLocker_SerializesSameKey(t *testing.T) {
	for _, tc := range []struct {
		name  string
		redis bool
	}{
		{"local", false},
		{"redis", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var rdb *redis.Client
			if tc.redis {
				_, rdb = newRedis(t)
			}
			l := New(rdb, 5*time.Second, nil)

			var (
				inside  int32
				maxSeen int32
				wg      sync.WaitGroup
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					release, err := l.Acquire(context.Background(), Key("casa-lola", "2026-03-06"))
					if !assert.NoError(t, err) {
						return
					}
					n := atomic.AddInt32(&inside, 1)
					for {
						m := atomic.LoadInt32(&maxSeen)
						if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
							break
						}
					}
					time.Sleep(5 * time.Millisecond)
					atomic.AddInt32(&inside, -1)
					release()
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), maxSeen)
			assert.Empty(t, l.local)
		})
	}
}

func TestLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := New(nil, time.Second, nil)

	r1, err := l.Acquire(context.Background(), Key("casa-lola", "2026-03-06"))
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r2, err := l.Acquire(ctx, Key("casa-lola", "2026-03-07"))
	require.NoError(t, err)
	r2()
}

func TestLocker_TimesOut(t *testing.T) {
	l := New(nil, time.Second, nil)
	key := Key("casa-lola", "2026-03-06")

	release, err := l.Acquire(context.Background(), key)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, key)
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestLocker_RedisLeaseHeldByAnotherReplica(t *testing.T) {
	mr, rdb := newRedis(t)
	key := Key("casa-lola", "2026-03-06")
	require.NoError(t, mr.Set(keyPrefix+key, "other-replica"))

	l := New(rdb, time.Second, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, err := l.Acquire(ctx, key)
	assert.ErrorIs(t, err, ErrNotAcquired)

	// releasing our own lease must not delete a foreign token
	mr.Del(keyPrefix + key)
	release, err := l.Acquire(context.Background(), key)
	require.NoError(t, err)
	require.NoError(t, mr.Set(keyPrefix+key, "other-replica"))
	release()
	got, err := mr.Get(keyPrefix + key)
	require.NoError(t, err)
	assert.Equal(t, "other-replica", got)
}

func TestLocker_ReleaseDeletesLease(t *testing.T) {
	mr, rdb := newRedis(t)
	key := Key("casa-lola", "2026-03-06")
	l := New(rdb, time.Second, nil)

	release, err := l.Acquire(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+key))
	assert.Equal(t, time.Second, mr.TTL(keyPrefix+key))

	release()
	assert.False(t, mr.Exists(keyPrefix+key))
}
