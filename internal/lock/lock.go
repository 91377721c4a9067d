// Package lock serializes booking commits per restaurant and date.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNotAcquired is returned when the lock could not be taken before the deadline.
var ErrNotAcquired = errors.New("lock not acquired")

const (
	keyPrefix    = "reserva:lock:"
	pollInterval = 25 * time.Millisecond
)

// Deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker combines an in-process keyed mutex with an optional Redis lease so that
// several replicas sharing a database also serialize on the same key.
type Locker struct {
	rdb    *redis.Client
	ttl    time.Duration
	wait   time.Duration
	logger *zerolog.Logger

	mu    sync.Mutex
	local map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// New returns a Locker. rdb may be nil, in which case only the local mutex is used.
func New(rdb *redis.Client, ttl time.Duration, logger *zerolog.Logger) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{
		rdb:    rdb,
		ttl:    ttl,
		wait:   ttl,
		logger: logger,
		local:  make(map[string]*slot),
	}
}

// Key builds the lock key for a restaurant day.
func Key(clientID, date string) string {
	return clientID + ":" + date
}

// Acquire blocks until key is held or ctx ends. The returned release must be called
// exactly once.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	s := l.ref(key)
	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key)
		return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
	}
	releaseLocal := func() {
		<-s.ch
		l.unref(key)
	}

	if l.rdb == nil {
		return releaseLocal, nil
	}

	token := uuid.NewString()
	if err := l.acquireRemote(ctx, key, token); err != nil {
		releaseLocal()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must run even when the caller's ctx is already cancelled.
			rctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.rdb, []string{keyPrefix + key}, token).Err(); err != nil && l.logger != nil {
				l.logger.Warn().Err(err).Str("key", key).Msg("Failed to release redis lock")
			}
			releaseLocal()
		})
	}, nil
}

func (l *Locker) acquireRemote(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, keyPrefix+key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %s", ErrNotAcquired, key)
			}
			return fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrNotAcquired, key)
		case <-ticker.C:
		}
	}
}

func (l *Locker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.local[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.local[key] = s
	}
	s.refs++
	return s
}

func (l *Locker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.local[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(l.local, key)
	}
}
