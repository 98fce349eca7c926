package cache

import (
	"sync"
	"time"

	"github.com/samber/mo"
)

type item[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiration
}

func (i item[V]) expired(at time.Time) bool {
	return !i.expiresAt.IsZero() && at.After(i.expiresAt)
}

// TTLCache is a map-backed, goroutine-safe cache. Expired entries are
// treated as misses until PurgeExpired removes them.
type TTLCache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]item[V]
}

func NewTTLCache[K comparable, V any]() *TTLCache[K, V] {
	return &TTLCache[K, V]{items: make(map[K]item[V])}
}

// now is swapped out by tests.
var now = time.Now

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	return c.Lookup(key).Get()
}

// Lookup is Get returning an Option.
func (c *TTLCache[K, V]) Lookup(key K) mo.Option[V] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[key]
	if !ok || it.expired(now()) {
		return mo.None[V]()
	}
	return mo.Some(it.value)
}

func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item[V]{value: value, expiresAt: exp}
}

// Len counts only live entries.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	at := now()
	n := 0
	for _, it := range c.items {
		if !it.expired(at) {
			n++
		}
	}
	return n
}

func (c *TTLCache[K, V]) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	at := now()
	removed := 0
	for k, it := range c.items {
		if it.expired(at) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

var _ Cache[string, int] = (*TTLCache[string, int])(nil)
