package subscription

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	subscribed bool
	expires    time.Time
}

// MemoryCache is the in-process Cache. With ttl <= 0 entries live for the process lifetime.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, phone string) (bool, bool) {
	c.mu.RLock()
	e, ok := c.entries[phone]
	c.mu.RUnlock()
	if !ok {
		return false, false
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, phone)
		c.mu.Unlock()
		return false, false
	}
	return e.subscribed, true
}

func (c *MemoryCache) Set(_ context.Context, phone string, subscribed bool) {
	e := cacheEntry{subscribed: subscribed}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[phone] = e
	c.mu.Unlock()
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
