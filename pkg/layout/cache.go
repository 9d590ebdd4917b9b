package layout

// CacheKey identifies one layout computation: the element, the exact
// constraints it received, and a structural signature of its children.
//
// The signature is the child count at compute time. It exists so that adding
// or removing a child invalidates lookups even when the constraints are
// unchanged — without it a parent could be served a stale size after its
// child list changed. A signature of -1 means the caller opted out (leaf and
// single-child parents whose geometry cannot depend on a count change the
// tree didn't also dirty).
type CacheKey[C comparable] struct {
	Element        uint32
	Constraints    C
	ChildSignature int
}

// NewCacheKey builds a key with no structural signature.
func NewCacheKey[C comparable](element uint32, constraints C) CacheKey[C] {
	return CacheKey[C]{Element: element, Constraints: constraints, ChildSignature: -1}
}

// WithChildCount folds the child count into the key.
func (k CacheKey[C]) WithChildCount(n int) CacheKey[C] {
	k.ChildSignature = n
	return k
}

type cacheEntry[G comparable] struct {
	geometry G
	valid    bool
}

// CacheStats reports cache effectiveness for frame diagnostics.
type CacheStats struct {
	Hits          uint64
	Misses        uint64
	Invalidations uint64
	Entries       int
}

// Cache memoizes layout results per (element, constraints, signature) key.
//
// It captures the hit/miss/store sequence once for every call site via
// Compute; callers never hand-roll the lookup dance. The cache is confined to
// the frame goroutine (the tree's frame lock covers it), so it carries no
// internal locking.
type Cache[C, G comparable] struct {
	entries   map[CacheKey[C]]cacheEntry[G]
	byElement map[uint32][]CacheKey[C]
	capacity  int
	stats     CacheStats
}

// NewCache creates a cache bounded to roughly capacity entries.
// A capacity of zero or less selects a default.
func NewCache[C, G comparable](capacity int) *Cache[C, G] {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Cache[C, G]{
		entries:   make(map[CacheKey[C]]cacheEntry[G]),
		byElement: make(map[uint32][]CacheKey[C]),
		capacity:  capacity,
	}
}

// Get returns the cached geometry for the key if present and still valid.
func (c *Cache[C, G]) Get(key CacheKey[C]) (G, bool) {
	entry, ok := c.entries[key]
	if !ok || !entry.valid {
		var zero G
		return zero, false
	}
	return entry.geometry, true
}

// Insert stores a computed geometry for the key.
func (c *Cache[C, G]) Insert(key CacheKey[C], geometry G) {
	if len(c.entries) >= c.capacity {
		// Wholesale reset beats tracking an eviction order: layout keys
		// cluster per frame and a full rebuild repopulates hot entries
		// within one pass.
		c.Clear()
	}
	if _, known := c.entries[key]; !known {
		c.byElement[key.Element] = append(c.byElement[key.Element], key)
	}
	c.entries[key] = cacheEntry[G]{geometry: geometry, valid: true}
}

// Compute is the memoizing layout wrapper: it returns a valid cached
// geometry when one exists, otherwise runs compute and stores the result.
// Errors from compute are returned without touching the cache.
func (c *Cache[C, G]) Compute(key CacheKey[C], compute func() (G, error)) (G, error) {
	if geometry, ok := c.Get(key); ok {
		c.stats.Hits++
		return geometry, nil
	}
	c.stats.Misses++
	geometry, err := compute()
	if err != nil {
		var zero G
		return zero, err
	}
	c.Insert(key, geometry)
	return geometry, nil
}

// Invalidate marks every entry for the element as invalid.
// Entries stay resident until overwritten; a marked entry never satisfies Get.
func (c *Cache[C, G]) Invalidate(element uint32) {
	keys := c.byElement[element]
	if len(keys) == 0 {
		return
	}
	c.stats.Invalidations++
	for _, key := range keys {
		if entry, ok := c.entries[key]; ok {
			entry.valid = false
			c.entries[key] = entry
		}
	}
}

// Remove drops every entry for the element, used when it leaves the arena.
func (c *Cache[C, G]) Remove(element uint32) {
	for _, key := range c.byElement[element] {
		delete(c.entries, key)
	}
	delete(c.byElement, element)
}

// Clear drops every entry.
func (c *Cache[C, G]) Clear() {
	c.entries = make(map[CacheKey[C]]cacheEntry[G])
	c.byElement = make(map[uint32][]CacheKey[C])
}

// Stats returns a snapshot of cache counters.
func (c *Cache[C, G]) Stats() CacheStats {
	stats := c.stats
	stats.Entries = len(c.entries)
	return stats
}
