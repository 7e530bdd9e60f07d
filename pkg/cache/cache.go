package cache

import (
	"sync"
	"time"
)

type item[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a concurrency-safe TTL map. Expired entries are invisible to
// readers and removed by the janitor or by Sweep.
type Cache[V any] struct {
	mu         sync.RWMutex
	items      map[string]item[V]
	defaultTTL time.Duration
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a cache. A positive cleanupInterval starts a janitor
// goroutine that must be released with Stop.
func New[V any](defaultTTL, cleanupInterval time.Duration) *Cache[V] {
	c := &Cache[V]{
		items:      make(map[string]item[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}
	return c
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[key]
	if !ok || !c.now().Before(it.expiresAt) {
		var zero V
		return zero, false
	}
	return it.value, true
}

func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value; a non-positive ttl deletes the key instead.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		delete(c.items, key)
		return
	}
	c.items[key] = item[V]{value: value, expiresAt: c.now().Add(ttl)}
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Sweep drops expired entries and returns how many were removed.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, it := range c.items {
		if !now.Before(it.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache[V]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stop:
			return
		}
	}
}
