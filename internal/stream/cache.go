package stream

import (
	"sort"
	"sync"

	"github.com/Faultbox/geoscape/internal/lod"
)

type entry struct {
	data       []byte
	generation uint64
}

// Cache holds resident tile payloads stamped with the generation that
// requested them.
type Cache struct {
	data map[lod.TileID]entry
	mu   sync.Mutex

	hits   int
	misses int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[lod.TileID]entry),
	}
}

// Get retrieves a tile payload.
func (c *Cache) Get(id lod.TileID) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[id]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return e.data, ok
}

// Put stores a payload unless the tile is already stamped by a newer
// generation. It reports whether the payload was stored.
func (c *Cache) Put(id lod.TileID, data []byte, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.data[id]; ok && cur.generation > generation {
		return false
	}
	c.data[id] = entry{data: data, generation: generation}
	return true
}

// Touch restamps a resident tile with a newer generation.
func (c *Cache) Touch(id lod.TileID, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[id]
	if !ok {
		return false
	}
	if generation > e.generation {
		e.generation = generation
		c.data[id] = e
	}
	return true
}

// Generation returns the stamp of a resident tile.
func (c *Cache) Generation(id lod.TileID) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[id]
	return e.generation, ok
}

// EvictOlderThan removes tiles stamped before generation and returns how
// many were removed.
func (c *Cache) EvictOlderThan(generation uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, e := range c.data {
		if e.generation < generation {
			delete(c.data, id)
			n++
		}
	}
	return n
}

// Keys returns the resident tiles ordered by level, then row, then column.
func (c *Cache) Keys() []lod.TileID {
	c.mu.Lock()
	ids := make([]lod.TileID, 0, len(c.data))
	for id := range c.data {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return ids
}

// Len returns the number of resident tiles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[lod.TileID]entry)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
