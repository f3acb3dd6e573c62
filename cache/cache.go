package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/use-agent/propscout/models"
)

// maxRetention bounds how long any entry survives, whatever max_age asks for.
const maxRetention = time.Hour

// entry holds a cached result list with its creation timestamp.
type entry struct {
	records   []models.PropertyRecord
	createdAt time.Time
}

// Cache is an in-memory cache of scrape results keyed by search URL and
// property count. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a Cache holding at most maxEntries result lists. A background
// goroutine prunes entries older than one hour every five minutes until
// Close is called.
func New(maxEntries int) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go c.cleanupLoop(5 * time.Minute)
	return c
}

// Key generates a cache key from the search URL and the property count.
func Key(searchURL string, maxProperties int) string {
	h := sha256.New()
	h.Write([]byte(searchURL))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.Itoa(maxProperties)))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached records if present and younger than maxAgeMs
// milliseconds. If maxAgeMs <= 0, no lookup is performed.
func (c *Cache) Get(key string, maxAgeMs int) ([]models.PropertyRecord, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().Sub(e.createdAt) > time.Duration(maxAgeMs)*time.Millisecond {
		return nil, false
	}
	return clone(e.records), true
}

// Set stores records. At capacity, a random entry is evicted first
// (map iteration order is random).
func (c *Cache) Set(key string, records []models.PropertyRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{records: clone(records), createdAt: c.now()}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the background pruning goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.prune()
		}
	}
}

// prune evicts entries older than maxRetention.
func (c *Cache) prune() {
	cutoff := c.now().Add(-maxRetention)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}

// clone copies records so callers cannot mutate cached state.
func clone(records []models.PropertyRecord) []models.PropertyRecord {
	out := make([]models.PropertyRecord, len(records))
	copy(out, records)
	return out
}
