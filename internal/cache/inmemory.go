package cache

import (
	"context"
	"strings"
	"time"

	goCache "github.com/patrickmn/go-cache"
)

const (
	// DefaultExpiration bounds how long run summaries stay visible
	DefaultExpiration = 7 * 24 * time.Hour
	cleanupInterval   = time.Hour
)

// InMemoryCache is a process-local Cache backed by go-cache
type InMemoryCache struct {
	cache *goCache.Cache
}

func NewInMemoryCache() Cache {
	return &InMemoryCache{
		cache: goCache.New(DefaultExpiration, cleanupInterval),
	}
}

func (c *InMemoryCache) Get(_ context.Context, key string) (interface{}, bool) {
	return c.cache.Get(key)
}

func (c *InMemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) {
	if expiration == 0 {
		expiration = goCache.DefaultExpiration
	}
	c.cache.Set(key, value, expiration)
}

func (c *InMemoryCache) Delete(_ context.Context, key string) {
	c.cache.Delete(key)
}

// List returns matching values in no particular order
func (c *InMemoryCache) List(_ context.Context, prefix string) []interface{} {
	var out []interface{}
	for k, item := range c.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, item.Object)
		}
	}
	return out
}
