package batch

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agentic-research/astcore/api"
)

const defaultCacheEntries = 1024

// Cache is the in-memory LRU over completed file results. Content
// hash is authoritative: the key is (filePath, fileHash), so an in-place
// edit that preserves mtime can never produce a false hit. With dedupe
// enabled a second, hash-only key lets identical bytes at distinct paths
// share one parse.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *api.FileResult]
	dedupe  bool

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache builds a cache; size <= 0 falls back to the default capacity.
func NewCache(size int, dedupe bool) *Cache {
	if size <= 0 {
		size = defaultCacheEntries
	}
	entries, _ := lru.New[string, *api.FileResult](size)
	return &Cache{entries: entries, dedupe: dedupe}
}

func pathKey(filePath, fileHash string) string { return filePath + "\x1f" + fileHash }
func hashKey(fileHash string) string           { return "\x1f" + fileHash }

func (c *Cache) get(filePath, fileHash string) (*api.FileResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.entries.Get(pathKey(filePath, fileHash)); ok {
		c.hits.Add(1)
		return r, true
	}
	if c.dedupe {
		if r, ok := c.entries.Get(hashKey(fileHash)); ok {
			c.hits.Add(1)
			// Same bytes, different path: rebind the path-dependent fields.
			return rebind(r, filePath), true
		}
	}
	c.misses.Add(1)
	return nil, false
}

func (c *Cache) put(filePath, fileHash string, r *api.FileResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(pathKey(filePath, fileHash), r)
	if c.dedupe {
		c.entries.Add(hashKey(fileHash), r)
	}
}

// Stats returns the cache counters.
func (c *Cache) Stats() api.CacheStats {
	c.mu.Lock()
	entries := c.entries.Len()
	c.mu.Unlock()
	return api.CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: entries,
	}
}

// Clear empties the cache and resets counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

// rebind shallow-copies a deduped result under a new path. Node contents
// keep their original ids — callers opting into dedupe accept that ids
// are addressed by the first-seen path.
func rebind(r *api.FileResult, filePath string) *api.FileResult {
	clone := *r
	clone.FilePath = filePath
	return &clone
}
