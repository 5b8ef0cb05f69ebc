package storage

import (
	"container/list"
	"sync"
	"time"

	"trends-go/pkg/batch"
)

// cacheEntry is one cached response with its insertion time.
type cacheEntry struct {
	key      string
	response *batch.Response
	storedAt time.Time
	element  *list.Element
}

// ResponseCache is an LRU cache with TTL for serve-mode responses, keyed by
// request fingerprint. Expired entries are dropped lazily on lookup.
type ResponseCache struct {
	maxSize int
	ttl     time.Duration
	items   map[string]*cacheEntry
	lru     *list.List
	mu      sync.RWMutex
}

// NewResponseCache creates a cache holding at most maxSize responses. A zero
// ttl disables expiry.
func NewResponseCache(maxSize int, ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*cacheEntry),
		lru:     list.New(),
	}
}

// Get retrieves a cached response, reporting false for misses and expired
// entries.
func (c *ResponseCache) Get(key string) (*batch.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[key]
	if !exists {
		return nil, false
	}

	if c.ttl > 0 && time.Since(entry.storedAt) > c.ttl {
		c.remove(entry)
		return nil, false
	}

	c.lru.MoveToFront(entry.element)
	return entry.response, true
}

// Set stores a response, evicting the least recently used entry when full.
func (c *ResponseCache) Set(key string, response *batch.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if entry, exists := c.items[key]; exists {
		entry.response = response
		entry.storedAt = now
		c.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{
		key:      key,
		response: response,
		storedAt: now,
	}
	entry.element = c.lru.PushFront(entry)
	c.items[key] = entry

	if len(c.items) > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.remove(oldest.Value.(*cacheEntry))
		}
	}
}

// Size returns the current number of cached responses.
func (c *ResponseCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *ResponseCache) remove(entry *cacheEntry) {
	delete(c.items, entry.key)
	c.lru.Remove(entry.element)
}
