package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache implements an in-memory TTL cache. It backs the provider
// client so repeated lookups for the same episode within one TTL window
// (e.g. episodes stuck in "processing") do not burn provider quota.
type MemoryCache struct {
	mu     sync.RWMutex
	items  map[string]*cacheItem
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type cacheItem struct {
	value  []byte
	expiry time.Time
}

// Ensure MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	mc := &MemoryCache{
		items:  make(map[string]*cacheItem),
		stopCh: make(chan struct{}),
	}

	mc.wg.Add(1)
	go mc.cleanupExpired()

	return mc
}

// Get retrieves a value from the cache
func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	mc.mu.RLock()
	item, exists := mc.items[key]
	mc.mu.RUnlock()

	if !exists || time.Now().After(item.expiry) {
		return nil, false
	}
	return item.value, true
}

// Set stores a value in the cache with a TTL
func (mc *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.items[key] = &cacheItem{
		value:  value,
		expiry: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes a value from the cache
func (mc *MemoryCache) Delete(_ context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	delete(mc.items, key)
	return nil
}

// Clear removes all values from the cache
func (mc *MemoryCache) Clear(_ context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.items = make(map[string]*cacheItem)
	return nil
}

// Stop terminates the background cleanup goroutine
func (mc *MemoryCache) Stop() {
	close(mc.stopCh)
	mc.wg.Wait()
}

// cleanupExpired periodically drops expired entries
func (mc *MemoryCache) cleanupExpired() {
	defer mc.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			mc.mu.Lock()
			for key, item := range mc.items {
				if now.After(item.expiry) {
					delete(mc.items, key)
				}
			}
			mc.mu.Unlock()
		}
	}
}
