package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryEntry struct {
	data   []byte
	stored time.Time
}

// MemoryCache is the L1 level: an LRU bounded both by entry count and by
// total bytes.
type MemoryCache struct {
	mu       sync.Mutex
	lru      *lru.Cache[string, memoryEntry]
	capacity int64
	size     int64
	now      func() time.Time
	stats    Stats
}

// NewMemoryCache creates an L1 cache. entries bounds the clip count and
// capacity bounds the summed clip size.
func NewMemoryCache(entries int, capacity int64) (*MemoryCache, error) {
	if entries <= 0 {
		entries = DefaultConfig().MemoryEntries
	}
	mc := &MemoryCache{
		capacity: capacity,
		now:      time.Now,
		stats:    Stats{Capacity: capacity},
	}
	// the eviction callback runs synchronously inside calls made with mc.mu held
	l, err := lru.NewWithEvict(entries, func(_ string, e memoryEntry) {
		mc.size -= int64(len(e.data))
	})
	if err != nil {
		return nil, err
	}
	mc.lru = l
	return mc, nil
}

// Get returns a clip and marks it recently used.
func (mc *MemoryCache) Get(key string) ([]byte, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	e, ok := mc.lru.Get(key)
	if !ok {
		mc.stats.Misses++
		return nil, false
	}
	mc.stats.Hits++
	return e.data, true
}

// Put stores a clip, evicting least recently used clips until it fits.
func (mc *MemoryCache) Put(key string, data []byte) error {
	n := int64(len(data))
	if mc.capacity > 0 && n > mc.capacity {
		return ErrItemTooLarge
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.lru.Remove(key)
	for mc.capacity > 0 && mc.size+n > mc.capacity && mc.lru.Len() > 0 {
		mc.lru.RemoveOldest()
		mc.stats.Evictions++
	}

	if evicted := mc.lru.Add(key, memoryEntry{data: data, stored: mc.now()}); evicted {
		mc.stats.Evictions++
	}
	mc.size += n
	return nil
}

// Delete removes a clip.
func (mc *MemoryCache) Delete(key string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.lru.Remove(key)
}

// Prune drops clips stored more than maxAge ago and returns how many.
func (mc *MemoryCache) Prune(maxAge time.Duration) int {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	cutoff := mc.now().Add(-maxAge)
	removed := 0
	for _, key := range mc.lru.Keys() {
		e, ok := mc.lru.Peek(key)
		if ok && e.stored.Before(cutoff) {
			mc.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// Size returns the summed clip size in bytes.
func (mc *MemoryCache) Size() int64 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.size
}

// Stats returns L1 counters.
func (mc *MemoryCache) Stats() Stats {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	s := mc.stats
	s.Size = mc.size
	s.Items = mc.lru.Len()
	return s
}
