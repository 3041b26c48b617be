package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Vishal-43/smart-attendece-system/internal/model"
)

type memoryEntry struct {
	fence     model.GeoFence
	expiresAt time.Time
}

// MemoryCache is a process-local GeoFenceCache used by tests and by
// deployments running without Redis. Entries are replaced wholesale, so
// concurrent puts for the same key simply let the last writer win.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetNow overrides the clock. Test hook.
func (c *MemoryCache) SetNow(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *MemoryCache) Get(_ context.Context, locationID string) (model.GeoFence, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[locationID]
	now := c.now()
	c.mu.RUnlock()
	if !ok {
		return model.GeoFence{}, false, nil
	}
	if !now.Before(entry.expiresAt) {
		// A Put may have refreshed the entry after the read lock was
		// released; only evict what is still expired.
		c.mu.Lock()
		if current, ok := c.entries[locationID]; ok && !now.Before(current.expiresAt) {
			delete(c.entries, locationID)
		}
		c.mu.Unlock()
		return model.GeoFence{}, false, nil
	}
	return entry.fence, true, nil
}

func (c *MemoryCache) Put(_ context.Context, fence model.GeoFence, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fence.LocationID] = memoryEntry{
		fence:     fence,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}
