// Package cache provides a thread-safe, in-memory byte store with TTL-based
// expiration and size-bounded eviction. The HTTP layer uses it to keep hot
// variant files out of the disk path.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"sprout/pkg/logger"
	"sprout/pkg/utils"
)

const (
	DefaultMaxSize = 100 // MB
	DefaultTTL     = 30 * time.Minute

	// DefaultMaxItemSize keeps large originals in the OS page cache rather
	// than on the Go heap.
	DefaultMaxItemSize = 512 * 1024

	GCInterval = 5 * time.Minute
)

type Options struct {
	Enabled     bool
	MaxCapacity int // MB
	TTL         time.Duration
	MaxItemSize int64
}

type Item struct {
	Data      []byte
	ExpiresAt time.Time
	Size      int64
}

type MemoryCache struct {
	sync.RWMutex
	items       map[string]Item
	totalSize   int64
	maxSize     int64
	maxItemSize int64
	ttl         time.Duration
	enabled     bool
	now         func() time.Time
}

// New builds a cache from opts. Background expiry runs until ctx is done.
func New(ctx context.Context, opts Options) *MemoryCache {
	limitMB := int64(opts.MaxCapacity)
	if limitMB <= 0 {
		limitMB = DefaultMaxSize
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	maxItem := opts.MaxItemSize
	if maxItem <= 0 {
		maxItem = DefaultMaxItemSize
	}

	c := &MemoryCache{
		maxSize:     limitMB * 1024 * 1024,
		maxItemSize: maxItem,
		ttl:         ttl,
		enabled:     opts.Enabled,
		now:         time.Now,
	}

	if !c.enabled {
		logger.LogWarn("Memory cache is DISABLED via config (pass-through mode).")
		return c
	}

	c.items = make(map[string]Item)
	if ctx != nil {
		go c.startGC(ctx)
	}
	logger.LogInfo("Memory cache initialized: %d MB limit, TTL %s", limitMB, ttl)
	return c
}

// Set stores data under key. Items larger than the per-item limit or half
// the cache are ignored.
func (c *MemoryCache) Set(key string, data []byte) {
	if !c.enabled {
		return
	}

	c.Lock()
	defer c.Unlock()

	size := int64(len(data))
	if size > c.maxSize/2 || size > c.maxItemSize {
		return
	}

	if oldItem, exists := c.items[key]; exists {
		c.totalSize -= oldItem.Size
		delete(c.items, key)
	}

	if c.totalSize+size > c.maxSize {
		c.prune()
	}

	c.items[key] = Item{
		Data:      data,
		ExpiresAt: c.now().Add(c.ttl),
		Size:      size,
	}
	c.totalSize += size
}

// Get retrieves an item if it exists and hasn't expired.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}

	c.RLock()
	defer c.RUnlock()

	item, found := c.items[key]
	if !found || c.now().After(item.ExpiresAt) {
		return nil, false
	}
	return item.Data, true
}

func (c *MemoryCache) Delete(key string) {
	if !c.enabled {
		return
	}

	c.Lock()
	defer c.Unlock()

	if item, found := c.items[key]; found {
		delete(c.items, key)
		c.totalSize -= item.Size
	}
}

// DeletePrefix drops every key starting with prefix. Used when an asset's
// variants are rewritten (focal recrop, optimization).
func (c *MemoryCache) DeletePrefix(prefix string) int {
	if !c.enabled {
		return 0
	}

	c.Lock()
	defer c.Unlock()

	removed := 0
	for k, item := range c.items {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.items, k)
			c.totalSize -= item.Size
			removed++
		}
	}
	return removed
}

// Stats returns item count and bytes in use.
func (c *MemoryCache) Stats() (int, int64) {
	c.RLock()
	defer c.RUnlock()
	return len(c.items), c.totalSize
}

// prune evicts soonest-to-expire items until usage drops below 80%.
// Caller holds the write lock.
func (c *MemoryCache) prune() {
	if len(c.items) == 0 {
		return
	}

	targetSize := int64(float64(c.maxSize) * 0.80)

	type candidate struct {
		Key       string
		ExpiresAt time.Time
		Size      int64
	}

	candidates := make([]candidate, 0, len(c.items))
	for k, v := range c.items {
		candidates = append(candidates, candidate{k, v.ExpiresAt, v.Size})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ExpiresAt.Before(candidates[j].ExpiresAt)
	})

	for _, cand := range candidates {
		if c.totalSize <= targetSize {
			break
		}
		delete(c.items, cand.Key)
		c.totalSize -= cand.Size
	}
}

func (c *MemoryCache) sweep() (int, int64) {
	c.Lock()
	defer c.Unlock()

	now := c.now()
	removedCount := 0
	removedBytes := int64(0)
	for k, v := range c.items {
		if now.After(v.ExpiresAt) {
			delete(c.items, k)
			c.totalSize -= v.Size
			removedBytes += v.Size
			removedCount++
		}
	}
	return removedCount, removedBytes
}

func (c *MemoryCache) startGC(ctx context.Context) {
	ticker := time.NewTicker(GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, freed := c.sweep(); n > 0 {
				logger.LogDebug("Cache GC: cleaned %d items (%s freed)", n, utils.FormatBytes(freed))
			}
		}
	}
}
