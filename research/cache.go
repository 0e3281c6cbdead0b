package research

import (
	"strings"
	"sync"
	"time"

	"github.com/rxcheck/coverage-api/metrics"
)

// cacheTTL is how long a research result stays fresh.
const cacheTTL = time.Hour

// maxCacheEntries bounds the cache; when full, the oldest entry by insert
// time is evicted.
const maxCacheEntries = 256

type cacheKey struct {
	op   Operation
	drug string
}

type cacheEntry struct {
	result   Result
	storedAt time.Time
}

// cache is a TTL cache keyed by (operation, drug name). Expired entries are
// evicted lazily on the read that finds them. Races between concurrent
// writes for the same key are benign: last write wins, at worst a duplicate
// backend call.
type cache struct {
	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
	now     func() time.Time
}

func newCache(now func() time.Time) *cache {
	if now == nil {
		now = time.Now
	}
	return &cache{
		entries: make(map[cacheKey]cacheEntry),
		now:     now,
	}
}

func (c *cache) key(op Operation, drugName string) cacheKey {
	return cacheKey{op: op, drug: strings.ToLower(strings.TrimSpace(drugName))}
}

func (c *cache) get(op Operation, drugName string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.key(op, drugName)
	entry, ok := c.entries[key]
	if !ok {
		metrics.ResearchCacheEvents.WithLabelValues("miss").Inc()
		return Result{}, false
	}

	if c.now().Sub(entry.storedAt) > cacheTTL {
		delete(c.entries, key)
		metrics.ResearchCacheEvents.WithLabelValues("miss").Inc()
		return Result{}, false
	}

	metrics.ResearchCacheEvents.WithLabelValues("hit").Inc()
	return entry.result, true
}

func (c *cache) put(op Operation, drugName string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= maxCacheEntries {
		c.evictOldest()
	}

	c.entries[c.key(op, drugName)] = cacheEntry{result: result, storedAt: c.now()}
}

// evictOldest removes the entry with the earliest storedAt. Caller holds the
// lock.
func (c *cache) evictOldest() {
	var oldestKey cacheKey
	var oldestAt time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.storedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
