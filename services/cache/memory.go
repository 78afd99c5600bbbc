package cachesvc

import (
	"context"
	"sync"
	"time"

	"github.com/lojf/nextgen/core"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// memoryCache is a process-local core.Cache; used in tests and when redis
// is not configured.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

var _ core.Cache = (*memoryCache)(nil)

func NewMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]memEntry)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, core.ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, core.ErrCacheMiss
	}
	return entry.value, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return nil
}
