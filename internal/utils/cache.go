package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheItem wraps cached data with the time it was stored.
type CacheItem[V any] struct {
	Data     V
	StoredAt time.Time
}

// TimedCache is a process-local LRU that remembers when each entry was
// written. Freshness is decided by the caller.
type TimedCache[V any] struct {
	lruCache *lru.Cache[string, CacheItem[V]]
}

// NewTimedCache creates a cache holding at most size entries.
func NewTimedCache[V any](size int) (*TimedCache[V], error) {
	l, err := lru.New[string, CacheItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &TimedCache[V]{lruCache: l}, nil
}

// Set replaces the entry for key.
func (c *TimedCache[V]) Set(key string, data V, storedAt time.Time) {
	c.lruCache.Add(key, CacheItem[V]{Data: data, StoredAt: storedAt})
}

// Get returns the entry and its write time.
func (c *TimedCache[V]) Get(key string) (V, time.Time, bool) {
	val, ok := c.lruCache.Get(key)
	if !ok {
		var zero V
		return zero, time.Time{}, false
	}
	return val.Data, val.StoredAt, true
}

// Purge drops every entry.
func (c *TimedCache[V]) Purge() {
	c.lruCache.Purge()
}

func (c *TimedCache[V]) Len() int {
	return c.lruCache.Len()
}
