package cache

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"

	"arbordb/internal/base"
)

const (
	MinCacheSize = 16 // Minimum: hold a root-to-leaf path plus siblings
)

// EvictFunc is called with every page the LRU pushes out to make room.
type EvictFunc func(id base.PageID, page base.Page)

// Cache is a fixed-capacity LRU of page buffers. It knows nothing about
// disk I/O; the owner decides what to do with evicted pages.
type Cache struct {
	lru      *freelru.LRU[base.PageID, base.Page]
	onEvict  EvictFunc
	removing bool

	// Stats
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func hashPageID(id base.PageID) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(id))
	return uint32(xxhash.Sum64(buf[:]))
}

// New creates a page cache holding at most size pages.
func New(size int, onEvict EvictFunc) (*Cache, error) {
	size = max(size, MinCacheSize)

	lru, err := freelru.New[base.PageID, base.Page](uint32(size), hashPageID)
	if err != nil {
		return nil, err
	}

	c := &Cache{lru: lru, onEvict: onEvict}
	lru.SetOnEvict(c.evicted)
	return c, nil
}

func (c *Cache) evicted(id base.PageID, page base.Page) {
	// Explicit removals are not evictions.
	if c.removing {
		return
	}
	c.evictions.Add(1)
	if c.onEvict != nil {
		c.onEvict(id, page)
	}
}

// Put adds a page, replacing any existing entry for the id. Adding to a full
// cache evicts the least recently used page first.
func (c *Cache) Put(id base.PageID, page base.Page) {
	c.lru.Add(id, page)
}

// Get retrieves a page and marks it most recently used.
// Returns (page, true) on cache hit, (nil, false) on miss.
func (c *Cache) Get(id base.PageID) (base.Page, bool) {
	page, ok := c.lru.Get(id)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return page, true
}

// Peek retrieves a page without touching recency or stats.
func (c *Cache) Peek(id base.PageID) (base.Page, bool) {
	return c.lru.Peek(id)
}

// Remove drops a page without invoking the eviction callback.
func (c *Cache) Remove(id base.PageID) {
	c.removing = true
	c.lru.Remove(id)
	c.removing = false
}

// Purge drops every page without invoking the eviction callback.
func (c *Cache) Purge() {
	c.removing = true
	c.lru.Purge()
	c.removing = false
}

// Size returns current number of cached pages
func (c *Cache) Size() int {
	return c.lru.Len()
}

type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats returns cache statistics
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// ClearStats resets the cache's positive incrementing statistics
func (c *Cache) ClearStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}
