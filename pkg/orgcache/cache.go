// Package orgcache caches organization ids resolved from slugs.
package orgcache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultSize bounds the cache when no size is given.
const DefaultSize = 128

// Resolver looks up the id for a slug. found is false when no organization has
// that slug; that is not an error.
type Resolver func(ctx context.Context, slug string) (id string, found bool, err error)

// Cache is a read-through slug -> id cache. Only successful resolutions are
// stored, so an organization created after a miss is picked up on the next
// lookup. Entries never expire; slugs are immutable once assigned.
type Cache struct {
	entries *lru.Cache[string, string]
	group   singleflight.Group
	resolve Resolver
}

type result struct {
	id    string
	found bool
}

// New creates a cache holding at most size entries.
func New(size int, resolve Resolver) (*Cache, error) {
	if resolve == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &Cache{entries: entries, resolve: resolve}, nil
}

// GetOrResolve returns the id for slug, resolving and caching it on a miss.
// Concurrent misses for the same slug share one resolution.
func (c *Cache) GetOrResolve(ctx context.Context, slug string) (string, bool, error) {
	if id, ok := c.entries.Get(slug); ok {
		return id, true, nil
	}

	v, err, _ := c.group.Do(slug, func() (interface{}, error) {
		if id, ok := c.entries.Get(slug); ok {
			return result{id: id, found: true}, nil
		}
		id, found, err := c.resolve(ctx, slug)
		if err != nil {
			return nil, err
		}
		if found {
			c.entries.Add(slug, id)
		}
		return result{id: id, found: found}, nil
	})
	if err != nil {
		return "", false, err
	}
	r := v.(result)
	return r.id, r.found, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.entries.Purge()
}
