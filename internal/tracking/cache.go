package tracking

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// Cache memoises rendered snippets per hook and id set. A changed id is a
// different key, so stale output is never served.
type Cache struct {
	cache *gocache.Cache
}

// NewCache creates a cache with the given expiration and cleanup interval.
func NewCache(expiration, cleanupInterval time.Duration) *Cache {
	return &Cache{cache: gocache.New(expiration, cleanupInterval)}
}

// Render returns the snippet markup for hook, rendering on a miss.
func (c *Cache) Render(hook string, cfg Config) (string, error) {
	key := cfg.key(hook)
	if v, found := c.cache.Get(key); found {
		if s, ok := v.(string); ok {
			return s, nil
		}
	}

	var b strings.Builder
	if err := Render(&b, hook, cfg); err != nil {
		return "", err
	}
	out := b.String()
	c.cache.SetDefault(key, out)
	return out, nil
}

// Len reports the number of cached fragments.
func (c *Cache) Len() int {
	return c.cache.ItemCount()
}

// Flush drops every cached fragment.
func (c *Cache) Flush() {
	c.cache.Flush()
}
