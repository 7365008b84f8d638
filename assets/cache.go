package assets

import (
	"net/http"
	"sync"
	"time"
)

// Entry is one cached response: the full body, the headers to replay, and
// when it was inserted.
type Entry struct {
	Data       []byte
	Headers    http.Header
	InsertedAt time.Time
}

// ResponseCache is a bounded, TTL-based in-memory cache of fully-read
// responses. Expiry is lazy: a stale entry is a miss on access and is only
// removed by the sweep that runs after an insert pushes the cache past its
// size threshold.
type ResponseCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	sweepSize int
	now       func() time.Time
	entries   map[string]Entry
}

func NewResponseCache(ttl time.Duration, sweepSize int) *ResponseCache {
	return &ResponseCache{
		ttl:       ttl,
		sweepSize: sweepSize,
		now:       time.Now,
		entries:   make(map[string]Entry),
	}
}

// Get returns the cached entry for key. Entries older than the TTL are
// reported as a miss even while still present.
func (c *ResponseCache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || c.now().Sub(entry.InsertedAt) >= c.ttl {
		return Entry{}, false
	}
	return entry, true
}

// Put inserts or overwrites an entry. When the insert pushes the cache past
// the size threshold, all expired entries are swept out.
func (c *ResponseCache) Put(key string, data []byte, headers http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{
		Data:       data,
		Headers:    headers,
		InsertedAt: c.now(),
	}

	if len(c.entries) > c.sweepSize {
		cutoff := c.now().Add(-c.ttl)
		for k, entry := range c.entries {
			if entry.InsertedAt.Before(cutoff) {
				delete(c.entries, k)
			}
		}
	}
}

// Len returns the current entry count, expired entries included.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
