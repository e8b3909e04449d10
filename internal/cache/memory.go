package cache

import (
	"context"
	"sync"
	"time"

	"PagedAPI/internal/logger"
)

const sweepEvery = time.Minute

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process PageCache with a TTL and an optional byte budget.
type Memory struct {
	mu         sync.Mutex
	items      map[string]*memoryEntry
	ttl        time.Duration
	maxBytes   int64
	totalBytes int64
	lastSweep  time.Time
	now        func() time.Time
}

// NewMemory keeps entries for ttl. maxBytes <= 0 means unbounded.
func NewMemory(ttl time.Duration, maxBytes int64) *Memory {
	return &Memory{
		items:    make(map[string]*memoryEntry),
		ttl:      ttl,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.maybeSweepLocked(now)
	entry, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if !now.Before(entry.expiresAt) {
		c.removeLocked(key, entry)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *Memory) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.maybeSweepLocked(now)

	size := int64(len(key) + len(value))
	if c.maxBytes > 0 && size > c.maxBytes {
		logger.Warn("page_cache_item_too_large", map[string]any{
			"item_bytes": size,
			"max_bytes":  c.maxBytes,
		})
		return nil
	}
	if existing, ok := c.items[key]; ok {
		c.removeLocked(key, existing)
	}
	if c.maxBytes > 0 && c.totalBytes+size > c.maxBytes {
		logger.Warn("page_cache_memory_limit_exceeded", map[string]any{
			"item_bytes":  size,
			"total_bytes": c.totalBytes,
			"max_bytes":   c.maxBytes,
		})
		return nil
	}
	c.items[key] = &memoryEntry{value: value, expiresAt: now.Add(c.ttl)}
	c.totalBytes += size
	return nil
}

func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Memory) removeLocked(key string, entry *memoryEntry) {
	delete(c.items, key)
	c.totalBytes -= int64(len(key) + len(entry.value))
}

func (c *Memory) maybeSweepLocked(now time.Time) {
	if !c.lastSweep.IsZero() && now.Sub(c.lastSweep) < sweepEvery {
		return
	}
	for key, entry := range c.items {
		if !now.Before(entry.expiresAt) {
			c.removeLocked(key, entry)
		}
	}
	c.lastSweep = now
}
