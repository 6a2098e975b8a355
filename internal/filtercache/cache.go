// Package filtercache materializes filters into doc-id sets and memoizes
// them.
//
// The compiler marks filters it wants materialized once per search with
// BitsetFilter; the executor calls Load for them. Entries are keyed by the
// filter's canonical key and tagged with the store generation they were
// computed from, so any write to the store invalidates them.
//
// Safe for concurrent use by multiple goroutines.
package filtercache

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/roach88/nestq/internal/docset"
	"github.com/roach88/nestq/internal/metrics"
	"github.com/roach88/nestq/internal/queryir"
)

// DefaultMaxEntries is used when New is given a non-positive capacity.
const DefaultMaxEntries = 256

type entry struct {
	key string
	gen uint64
	set docset.Set
}

// Cache is an LRU of materialized filters.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

// New creates a cache holding at most maxEntries filters.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		capacity: maxEntries,
		ll:       list.New(),
		items:    make(map[string]*list.Element, maxEntries),
	}
}

// BitsetFilter marks f as cached. Wrapping an already cached filter is a
// no-op.
func (c *Cache) BitsetFilter(f queryir.Filter) queryir.Filter {
	if cf, ok := f.(queryir.CachedFilter); ok {
		return cf
	}
	return queryir.CachedFilter{Filter: f}
}

// RootNonNestedFilter returns the cached filter of root documents.
func (c *Cache) RootNonNestedFilter() queryir.Filter {
	return queryir.CachedFilter{Filter: queryir.NonNestedFilter{}}
}

// Load returns the doc-id set of f at store generation gen, calling fill on
// a miss. The key is computed here rather than at compile time: a parent
// filter is only bound once its nested level has been compiled.
// Errors are not cached.
func (c *Cache) Load(ctx context.Context, f queryir.Filter, gen uint64, fill func(context.Context) (docset.Set, error)) (docset.Set, error) {
	key, err := queryir.FilterKey(f)
	if err != nil {
		return docset.Set{}, fmt.Errorf("filter cache key: %w", err)
	}

	if set, ok := c.get(key, gen); ok {
		metrics.FilterCacheTotal.WithLabelValues("hit").Inc()
		return set, nil
	}
	metrics.FilterCacheTotal.WithLabelValues("miss").Inc()

	set, err := fill(ctx)
	if err != nil {
		return docset.Set{}, err
	}
	c.set(key, gen, set)
	return set, nil
}

func (c *Cache) get(key string, gen uint64) (docset.Set, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return docset.Set{}, false
	}
	e := el.Value.(*entry)
	if e.gen != gen {
		c.removeLocked(el)
		return docset.Set{}, false
	}
	c.ll.MoveToFront(el)
	return e.set, true
}

func (c *Cache) set(key string, gen uint64, set docset.Set) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.gen, e.set = gen, set
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.capacity {
		if back := c.ll.Back(); back != nil {
			c.removeLocked(back)
		}
	}
	c.items[key] = c.ll.PushFront(&entry{key: key, gen: gen, set: set})
	metrics.FilterCacheEntries.Inc()
}

func (c *Cache) removeLocked(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).key)
	metrics.FilterCacheEntries.Dec()
}

// Len returns the number of cached filters.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	metrics.FilterCacheEntries.Sub(float64(c.ll.Len()))
	c.ll.Init()
	clear(c.items)
}
