// Package cache provides a bounded key/value store where every entry carries
// its own time-to-live and the least recently used live entry is evicted
// when the store is full.
package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// entry is owned by the cache and never handed out.
type entry struct {
	value    interface{}
	storedAt time.Time
	ttl      time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.storedAt.Add(e.ttl))
}

// Stats counts cache outcomes since construction.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64 // live entries removed to make room
	Expirations uint64 // expired entries purged
	Size        int
	Capacity    int
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Cache is safe for concurrent use. A capacity of zero or less turns the
// cache into a no-op store that never reports a hit.
type Cache struct {
	name     string
	capacity int
	now      func() time.Time

	mu    sync.Mutex
	lru   *simplelru.LRU[string, *entry] // nil when capacity <= 0
	stats Stats
}

// New creates a cache holding at most capacity entries.
func New(name string, capacity int, opts ...Option) *Cache {
	c := &Cache{
		name:     name,
		capacity: capacity,
		now:      time.Now,
	}
	if capacity > 0 {
		// NewLRU only fails for a non-positive size.
		c.lru, _ = simplelru.NewLRU[string, *entry](capacity, nil)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the logical name given at construction.
func (c *Cache) Name() string { return c.name }

// Capacity returns the maximum number of entries.
func (c *Cache) Capacity() int { return c.capacity }

// Get returns the value stored under key if it exists and has not expired.
// An expired entry is removed and reported as a miss. A hit marks the entry
// as most recently used.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lru == nil {
		c.stats.Misses++
		return nil, false
	}
	e, ok := c.lru.Peek(key)
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if e.expired(c.now()) {
		c.lru.Remove(key)
		c.stats.Expirations++
		c.stats.Misses++
		return nil, false
	}
	c.lru.Get(key)
	c.stats.Hits++
	return e.value, true
}

// Set stores value under key for ttl. A ttl of zero or less stores nothing
// and drops any previous value, so the next Get misses.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if c.lru == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		c.lru.Remove(key)
		return
	}

	now := c.now()
	e := &entry{value: value, storedAt: now, ttl: ttl}
	if c.lru.Contains(key) {
		c.lru.Add(key, e)
		return
	}

	if c.lru.Len() >= c.capacity {
		c.purgeExpired(now)
	}
	for c.lru.Len() >= c.capacity {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
		c.stats.Evictions++
	}
	c.lru.Add(key, e)
}

// Invalidate removes key and reports whether it was present.
func (c *Cache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lru == nil {
		return false
	}
	return c.lru.Remove(key)
}

// Purge removes every expired entry and returns how many were removed.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeExpired(c.now())
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size()
}

// Stats returns a copy of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.size()
	s.Capacity = c.capacity
	return s
}

func (c *Cache) size() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

// purgeExpired walks oldest first. Peek leaves recency untouched.
func (c *Cache) purgeExpired(now time.Time) int {
	if c.lru == nil {
		return 0
	}
	removed := 0
	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok && e.expired(now) {
			c.lru.Remove(key)
			c.stats.Expirations++
			removed++
		}
	}
	return removed
}
