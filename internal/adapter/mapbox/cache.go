package mapbox

import (
	"container/list"
	"context"
	"strings"
	"sync"

	"github.com/couchcryptid/climate-data-pipeline/internal/domain"
	"github.com/couchcryptid/climate-data-pipeline/internal/observability"
)

// CachedLocator wraps a CountryLocator with an in-memory LRU keyed by the
// normalized country name.
type CachedLocator struct {
	inner   domain.CountryLocator
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedLocator creates a cache decorator around a locator.
func NewCachedLocator(inner domain.CountryLocator, maxEntries int, metrics *observability.Metrics) *CachedLocator {
	return &CachedLocator{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedLocator) LocateCountry(ctx context.Context, name string) (domain.CountryLocation, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if loc, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return loc, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	loc, err := c.inner.LocateCountry(ctx, name)
	if err != nil {
		return loc, err
	}
	// Empty results stay uncached so a later run can retry them.
	if loc.Lat != 0 || loc.Lon != 0 {
		c.cache.put(key, loc)
	}
	return loc, nil
}

// lruCache is a thread-safe LRU of country locations. The front of order
// holds the most recently used key.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List
	items      map[string]*list.Element
}

type cacheItem struct {
	key string
	loc domain.CountryLocation
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (domain.CountryLocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return domain.CountryLocation{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheItem).loc, true
}

func (c *lruCache) put(key string, loc domain.CountryLocation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*cacheItem).loc = loc
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cacheItem{key: key, loc: loc})

	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheItem).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
