package querycache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/harun/ticketdesk/internal/clock"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long an entry stays fresh when Config.TTL is unset
const DefaultTTL = 30 * time.Second

// FetchFunc loads the value for a key
type FetchFunc func(ctx context.Context) (interface{}, error)

// Config holds cache configuration
type Config struct {
	TTL   time.Duration
	Clock clock.Clock
}

type entry struct {
	value     interface{}
	fetchedAt time.Time
}

// Cache is a TTL cache with in-flight request de-duplication
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	generation uint64
	ttl        time.Duration
	clock      clock.Clock
	group      singleflight.Group
}

// New creates a new cache
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     cfg.TTL,
		clock:   cfg.Clock,
	}
}

// Get returns a fresh cached value
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(e.fetchedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Fetch returns the cached value for key or loads it with fn.
// Errors are returned to every waiter and are not cached.
func (c *Cache) Fetch(ctx context.Context, key string, fn FetchFunc) (interface{}, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	flightKey := strconv.FormatUint(gen, 10) + ":" + key
	v, err, _ := c.group.Do(flightKey, func() (interface{}, error) {
		value, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generation == gen {
			c.entries[key] = entry{value: value, fetchedAt: c.clock.Now()}
		}
		c.mu.Unlock()
		return value, nil
	})
	return v, err
}

// Invalidate drops every entry whose key starts with prefix
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear drops all cached server data
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	clear(c.entries)
}

// Len returns the number of cached entries, fresh or not
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
