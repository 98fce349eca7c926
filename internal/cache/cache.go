package cache

import "time"

// Cache is a small key-value cache with a per-entry TTL.
type Cache[K comparable, V any] interface {
	// Get returns the value and whether it was present and not expired.
	Get(key K) (V, bool)
	// Set stores value; ttl <= 0 means the entry never expires.
	Set(key K, value V, ttl time.Duration)
	Len() int
	// PurgeExpired drops expired entries and reports how many were removed.
	PurgeExpired() int
}
