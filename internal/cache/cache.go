package cache

import (
	"sync"
	"sync/atomic"
)

// Cache is a generic LRU cache bounded by a byte budget.
// Each entry carries a caller-supplied cost in bytes; when the total
// exceeds the budget, least recently used entries are evicted.
//
// Cache is safe for concurrent use.
// Cache must not be copied after creation (has mutex).
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*cacheEntry[K, V]
	lru     *List[K]
	size    int64
	maxSize int64
	onEvict func(K, V)

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type cacheEntry[K comparable, V any] struct {
	value V
	cost  int64
	node  *Node[K]
}

// New creates a cache holding at most maxBytes of entries.
// A maxBytes of 0 or less means unlimited.
func New[K comparable, V any](maxBytes int64) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]*cacheEntry[K, V]),
		lru:     NewList[K](),
		maxSize: maxBytes,
	}
}

// OnEvict registers fn to be called for every entry removed by eviction,
// Delete or Clear. fn runs with the cache lock held and must not call
// back into the cache.
func (c *Cache[K, V]) OnEvict(fn func(K, V)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get retrieves a value and marks it as recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.lru.MoveToFront(e.node)
	c.hits.Add(1)
	return e.value, true
}

// Contains reports whether key is cached without touching recency.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Set stores a value with the given cost in bytes, replacing any
// previous value for key. Entries larger than the whole budget are not
// stored.
func (c *Cache[K, V]) Set(key K, value V, cost int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.removeLocked(key, old)
	}
	if c.maxSize > 0 && cost > c.maxSize {
		return
	}
	if c.maxSize > 0 {
		c.evictUntilSize(c.maxSize - cost)
	}
	c.entries[key] = &cacheEntry[K, V]{
		value: value,
		cost:  cost,
		node:  c.lru.PushFront(key),
	}
	c.size += cost
}

// Delete removes an entry. Returns true if the entry was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(key, e)
	return true
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if c.onEvict != nil {
			c.onEvict(key, e.value)
		}
	}
	c.entries = make(map[K]*cacheEntry[K, V])
	c.lru.Clear()
	c.size = 0
}

// Trim evicts least recently used entries until at most target bytes remain.
func (c *Cache[K, V]) Trim(target int64) {
	if target < 0 {
		target = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictUntilSize(target)
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Size returns the total cost of cached entries in bytes.
func (c *Cache[K, V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	size, maxSize, n := c.size, c.maxSize, len(c.entries)
	c.mu.Unlock()

	return Stats{
		Len:       n,
		Size:      size,
		MaxSize:   maxSize,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// evictUntilSize evicts LRU entries until size is at or below target.
// Caller must hold c.mu.
func (c *Cache[K, V]) evictUntilSize(target int64) {
	for c.size > target {
		key, ok := c.lru.Oldest()
		if !ok {
			return
		}
		c.removeLocked(key, c.entries[key])
		c.evictions.Add(1)
	}
}

// removeLocked drops one entry. Caller must hold c.mu.
func (c *Cache[K, V]) removeLocked(key K, e *cacheEntry[K, V]) {
	c.lru.Remove(e.node)
	c.size -= e.cost
	delete(c.entries, key)
	if c.onEvict != nil {
		c.onEvict(key, e.value)
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Size is the total cost of all entries in bytes.
	Size int64
	// MaxSize is the byte budget (0 means unlimited).
	MaxSize int64
	// Hits is the number of successful lookups.
	Hits uint64
	// Misses is the number of failed lookups.
	Misses uint64
	// Evictions is the number of entries evicted to stay within budget.
	Evictions uint64
}
