package service

import (
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// lruEntry is a doubly-linked list node for the LRU cache.
type lruEntry struct {
	key     uint64
	allowed bool
	prev    *lruEntry
	next    *lruEntry
}

// decisionCache provides bounded LRU caching for access-check results.
// Thread-safe with Mutex (both Get and Put mutate LRU order).
type decisionCache struct {
	mu      sync.Mutex
	entries map[uint64]*lruEntry
	head    *lruEntry // most recently used
	tail    *lruEntry // least recently used
	maxSize int
}

// newDecisionCache creates a new LRU cache with the given max size.
func newDecisionCache(maxSize int) *decisionCache {
	return &decisionCache{
		entries: make(map[uint64]*lruEntry, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves a cached decision. Returns (allowed, true) on hit.
// On hit, the entry is promoted to the head (most recently used).
func (c *decisionCache) Get(key uint64) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.moveToHeadLocked(e)
		return e.allowed, true
	}
	return false, false
}

// Put stores a decision. If at capacity, the least recently used entry
// is evicted.
func (c *decisionCache) Put(key uint64, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.allowed = allowed
		c.moveToHeadLocked(e)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictTailLocked()
	}

	e := &lruEntry{key: key, allowed: allowed}
	c.entries[key] = e
	c.pushHeadLocked(e)
}

// Clear empties the cache. Called when grants or role data change.
func (c *decisionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*lruEntry, c.maxSize)
	c.head = nil
	c.tail = nil
}

// Size returns current cache size.
func (c *decisionCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// moveToHeadLocked moves an existing entry to the head. Must be called with lock held.
func (c *decisionCache) moveToHeadLocked(e *lruEntry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushHeadLocked(e)
}

// pushHeadLocked inserts an entry at the head. Must be called with lock held.
func (c *decisionCache) pushHeadLocked(e *lruEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

// unlinkLocked removes an entry from the linked list. Must be called with lock held.
func (c *decisionCache) unlinkLocked(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

// evictTailLocked removes the least recently used entry. Must be called with lock held.
func (c *decisionCache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlinkLocked(c.tail)
}

// decisionKey generates a unique hash for an access check: sorted
// active roles, the session user (direct user grants condition on it),
// and the permission coordinates.
func decisionKey(userID string, roles []string, objName, opName, objID string) uint64 {
	h := xxhash.New()

	sorted := make([]string, len(roles))
	copy(sorted, roles)
	sort.Strings(sorted)
	_, _ = h.WriteString(strings.Join(sorted, ","))
	_, _ = h.Write([]byte{0}) // separator

	_, _ = h.WriteString(userID)
	_, _ = h.Write([]byte{0})

	_, _ = h.WriteString(objName)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(opName)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(objID)

	return h.Sum64()
}
