// Package cache provides a bounded in-memory cache with two-tier
// expiration (time-to-live from insert, time-to-idle from last access)
// and single-flight get-or-compute semantics.
package cache

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
	lastAccess atomic.Int64 // unix nanos
}

// Cache is a concurrent string-keyed cache. Capacity is enforced with LRU
// eviction; entries additionally expire TTL after insertion regardless of
// access and TTI after their last access.
type Cache[V any] struct {
	entries *lru.Cache[string, *entry[V]]
	group   singleflight.Group
	ttl     time.Duration
	tti     time.Duration
	now     func() time.Time
}

// New creates a cache holding at most capacity entries.
func New[V any](capacity int, ttl, tti time.Duration) (*Cache[V], error) {
	entries, err := lru.New[string, *entry[V]](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{
		entries: entries,
		ttl:     ttl,
		tti:     tti,
		now:     time.Now,
	}, nil
}

// Get returns the live value for key, refreshing its idle timer.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	e, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	now := c.now()
	if c.expired(e, now) {
		c.entries.Remove(key)
		return zero, false
	}
	e.lastAccess.Store(now.UnixNano())
	return e.value, true
}

// Set stores a value under key, resetting both expiration timers.
func (c *Cache[V]) Set(key string, value V) {
	now := c.now()
	e := &entry[V]{value: value, insertedAt: now}
	e.lastAccess.Store(now.UnixNano())
	c.entries.Add(key, e)
}

// GetOrCompute returns the cached value for key or computes it. Concurrent
// calls for the same missing key collapse into exactly one invocation of
// compute; every waiter observes the shared outcome. Successful outcomes
// are stored under the TTL/TTI timers; errors are delivered to the waiter
// set but never stored, so a later call retries.
func (c *Cache[V]) GetOrCompute(key string, compute func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under the flight: a concurrent computation may have
		// stored the value between the miss and the Do call.
		if value, ok := c.Get(key); ok {
			return value, nil
		}
		value, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(key, value)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return value.(V), nil
}

// InvalidateIf removes every live entry the predicate matches.
func (c *Cache[V]) InvalidateIf(pred func(key string, value V) bool) int {
	removed := 0
	for _, key := range c.entries.Keys() {
		e, ok := c.entries.Peek(key)
		if !ok {
			continue
		}
		if c.expired(e, c.now()) || pred(key, e.value) {
			if c.entries.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

// Len returns the number of resident entries, expired or not.
func (c *Cache[V]) Len() int {
	return c.entries.Len()
}

func (c *Cache[V]) expired(e *entry[V], now time.Time) bool {
	if c.ttl > 0 && now.Sub(e.insertedAt) >= c.ttl {
		return true
	}
	if c.tti > 0 && now.Sub(time.Unix(0, e.lastAccess.Load())) >= c.tti {
		return true
	}
	return false
}
