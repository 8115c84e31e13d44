// Package cache provides result caching for extensions.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Cache stores extension results
type Cache interface {
	// Get retrieves a result from the cache
	Get(key string) (string, bool)
	// Set stores a result with optional TTL, zero meaning the default TTL
	Set(key string, value string, ttl time.Duration)
	// Invalidate removes a specific key from the cache
	Invalidate(key string)
	// InvalidatePattern removes all keys matching a pattern (e.g., "db:mydb:*")
	InvalidatePattern(pattern string)
	// Clear removes all entries from the cache
	Clear()
	// Stats returns cache statistics
	Stats() Stats
}

// Stats represents cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int
	MaxSize   int
	Evictions int64
	HitRate   float64
}

// LRUCache implements an LRU cache with TTL support
type LRUCache struct {
	mu         sync.Mutex
	data       map[string]*cacheNode
	maxSize    int
	defaultTTL time.Duration
	head       *cacheNode
	tail       *cacheNode
	stats      Stats
	now        func() time.Time
}

// cacheNode represents a node in the doubly-linked list for LRU
type cacheNode struct {
	key       string
	value     string
	expiresAt time.Time
	prev      *cacheNode
	next      *cacheNode
}

// NewLRUCache creates a new LRU cache holding at most maxSize entries
func NewLRUCache(maxSize int, defaultTTL time.Duration) *LRUCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRUCache{
		data:       make(map[string]*cacheNode),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		stats:      Stats{MaxSize: maxSize},
		now:        time.Now,
	}
}

// Get retrieves a result from the cache
func (c *LRUCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.data[key]
	if !ok {
		c.stats.Misses++
		return "", false
	}

	if !node.expiresAt.IsZero() && c.now().After(node.expiresAt) {
		c.removeNode(node)
		c.stats.Misses++
		return "", false
	}

	c.moveToFront(node)
	c.stats.Hits++
	return node.value, true
}

// Set stores a result in the cache
func (c *LRUCache) Set(key string, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl == 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if node, exists := c.data[key]; exists {
		node.value = value
		node.expiresAt = expiresAt
		c.moveToFront(node)
		return
	}

	if len(c.data) >= c.maxSize {
		c.evictLRU()
	}

	node := &cacheNode{key: key, value: value, expiresAt: expiresAt}
	c.addToFront(node)
	c.data[key] = node
}

// Invalidate removes a specific key from the cache
func (c *LRUCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.data[key]; ok {
		c.removeNode(node)
	}
}

// InvalidatePattern removes all keys matching a pattern
// Pattern format: "prefix:*" or "*:suffix" or "*:middle:*"
func (c *LRUCache) InvalidatePattern(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, node := range c.data {
		if matchesPattern(key, pattern) {
			c.removeNode(node)
		}
	}
}

// Clear removes all entries from the cache
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]*cacheNode)
	c.head = nil
	c.tail = nil
	c.stats = Stats{MaxSize: c.maxSize}
}

// Stats returns cache statistics
func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = len(c.data)
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

// addToFront adds a node to the front of the list
func (c *LRUCache) addToFront(node *cacheNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

// moveToFront moves a node to the front of the list
func (c *LRUCache) moveToFront(node *cacheNode) {
	if node == c.head {
		return
	}
	c.unlink(node)
	c.addToFront(node)
}

// unlink detaches a node from the list without touching the map
func (c *LRUCache) unlink(node *cacheNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
	node.prev, node.next = nil, nil
}

// removeNode removes a node from the list and the map
func (c *LRUCache) removeNode(node *cacheNode) {
	c.unlink(node)
	delete(c.data, node.key)
}

// evictLRU evicts the least recently used node
func (c *LRUCache) evictLRU() {
	if c.tail == nil {
		return
	}
	c.removeNode(c.tail)
	c.stats.Evictions++
}

// matchesPattern checks if a key matches a pattern
func matchesPattern(key, pattern string) bool {
	if pattern == "*" {
		return true
	}

	parts := strings.Split(pattern, ":")
	keyParts := strings.SplitN(key, ":", len(parts))
	if len(parts) != len(keyParts) {
		return false
	}

	for i, part := range parts {
		if part != "*" && part != keyParts[i] {
			return false
		}
	}
	return true
}

// Key builds a cache key of the form "extension:source:hash" from the
// block's addressing and the text that determines its result
func Key(extension, source string, parts ...string) string {
	hasher := sha256.New()
	for _, p := range parts {
		hasher.Write([]byte(p))
		hasher.Write([]byte{0})
	}
	hash := hex.EncodeToString(hasher.Sum(nil))
	return extension + ":" + source + ":" + hash[:16]
}
