// Package cache provides the short-lived read cache used by the request
// store. Entries expire after a fixed TTL discovered lazily on access;
// there is no background sweeper, so an expired entry can linger in
// memory until the next read, but it is never served.
package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultTTL is how long a cached value is considered fresh.
const DefaultTTL = 5 * time.Minute

// Cache is a string-keyed TTL cache. Safe for concurrent use.
type Cache struct {
	store *gocache.Cache
}

// New creates a cache with the given TTL. A non-positive TTL falls back
// to DefaultTTL. The janitor is disabled so expiry happens only on read.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: gocache.New(ttl, 0)}
}

// Get returns the value for key, or ok=false on a miss or an expired
// entry. An expired entry is evicted on this access.
func (c *Cache) Get(key string) (any, bool) {
	return c.store.Get(key)
}

// Set stores value under key with the cache's TTL, replacing any
// previous entry.
func (c *Cache) Set(key string, value any) {
	c.store.SetDefault(key, value)
}

// Invalidate removes every entry whose key contains the given substring.
func (c *Cache) Invalidate(pattern string) {
	for key := range c.store.Items() {
		if strings.Contains(key, pattern) {
			c.store.Delete(key)
		}
	}
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.store.Flush()
}
