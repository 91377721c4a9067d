// Package cache keeps restaurant snapshots close to the availability handlers.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"reserva/internal/metrics"
	"reserva/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "reserva:restaurant:"

// Loader reads a restaurant snapshot from the source of truth.
type Loader interface {
	Snapshot(ctx context.Context, clientID string) (*model.RestaurantSnapshot, error)
}

type entry struct {
	snap    *model.RestaurantSnapshot
	expires time.Time
}

// RestaurantCache caches snapshots in Redis when a client is configured and in
// process memory otherwise. Reservations are never cached.
type RestaurantCache struct {
	loader Loader
	redis  *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	memory map[string]entry
}

func NewRestaurantCache(loader Loader, rdb *redis.Client, ttl time.Duration, logger *zerolog.Logger) *RestaurantCache {
	return &RestaurantCache{
		loader: loader,
		redis:  rdb,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		memory: make(map[string]entry),
	}
}

// Snapshot returns the cached snapshot or loads and stores it.
func (c *RestaurantCache) Snapshot(ctx context.Context, clientID string) (*model.RestaurantSnapshot, error) {
	if snap, ok := c.read(ctx, clientID); ok {
		metrics.IncCacheLookup("hit")
		return snap, nil
	}
	metrics.IncCacheLookup("miss")

	snap, err := c.loader.Snapshot(ctx, clientID)
	if err != nil {
		return nil, err
	}
	c.write(ctx, clientID, snap)
	return snap, nil
}

// Invalidate drops one restaurant.
func (c *RestaurantCache) Invalidate(ctx context.Context, clientID string) {
	c.mu.Lock()
	delete(c.memory, clientID)
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, keyPrefix+clientID).Err(); err != nil {
		c.warn(err, "Failed to invalidate restaurant cache")
	}
}

// InvalidateAll drops every cached restaurant, typically after a config reload.
func (c *RestaurantCache) InvalidateAll(ctx context.Context) {
	c.mu.Lock()
	c.memory = make(map[string]entry)
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	iter := c.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.warn(err, "Failed to scan restaurant cache")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.warn(err, "Failed to invalidate restaurant cache")
	}
}

func (c *RestaurantCache) read(ctx context.Context, clientID string) (*model.RestaurantSnapshot, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	if c.redis == nil {
		c.mu.RLock()
		e, ok := c.memory[clientID]
		c.mu.RUnlock()
		if !ok || c.now().After(e.expires) {
			return nil, false
		}
		return e.snap, true
	}

	val, err := c.redis.Get(ctx, keyPrefix+clientID).Result()
	if err != nil {
		if err != redis.Nil {
			c.warn(err, "Restaurant cache read failed")
		}
		return nil, false
	}
	var snap model.RestaurantSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, false
	}
	return &snap, true
}

func (c *RestaurantCache) write(ctx context.Context, clientID string, snap *model.RestaurantSnapshot) {
	if c.ttl <= 0 {
		return
	}

	if c.redis == nil {
		c.mu.Lock()
		c.memory[clientID] = entry{snap: snap, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, keyPrefix+clientID, data, c.ttl).Err(); err != nil {
		c.warn(err, "Restaurant cache write failed")
	}
}

func (c *RestaurantCache) warn(err error, msg string) {
	if c.logger != nil {
		c.logger.Warn().Err(err).Msg(msg)
	}
}
