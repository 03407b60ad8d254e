package auth

import (
	"bytes"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultCacheTTL  = 5 * time.Minute
	DefaultCacheSize = 128
)

type cacheEntry struct {
	payload   json.RawMessage
	fetchedAt time.Time
}

// ResponseCache holds successful GET payloads keyed by endpoint.
// Entries older than the TTL read as absent; capacity is bounded with LRU eviction.
type ResponseCache struct {
	entries *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	now     func() time.Time
}

// NewResponseCache creates a cache. Non-positive size or ttl fall back to the defaults; a nil clock uses time.Now.
func NewResponseCache(size int, ttl time.Duration, now func() time.Time) *ResponseCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}

	// lru.New only fails for non-positive sizes.
	entries, _ := lru.New[string, cacheEntry](size)
	return &ResponseCache{entries: entries, ttl: ttl, now: now}
}

// Get returns a copy of the payload for key when an entry younger than the TTL exists. Expired entries are evicted.
func (c *ResponseCache) Get(key string) (json.RawMessage, bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		c.entries.Remove(key)
		return nil, false
	}
	return bytes.Clone(e.payload), true
}

// Set stores a copy of payload under key, stamped with the current time.
func (c *ResponseCache) Set(key string, payload json.RawMessage) {
	c.entries.Add(key, cacheEntry{payload: bytes.Clone(payload), fetchedAt: c.now()})
}

// Purge removes every entry.
func (c *ResponseCache) Purge() { c.entries.Purge() }

// Len returns the number of entries, including expired ones not yet evicted.
func (c *ResponseCache) Len() int { return c.entries.Len() }
