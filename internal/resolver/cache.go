package resolver

import (
	"time"

	"github.com/Yundera/mesh-router-gateway/internal/route"
	"github.com/maypok86/otter"
)

// DefaultCacheMaxEntries bounds the route cache; otter evicts LRU beyond it.
const DefaultCacheMaxEntries = 10_000

// cacheEntry pairs a route list with its absolute expiry. Expiry is checked
// on read so an entry past its TTL is never served, even before eviction.
type cacheEntry struct {
	routes    []route.Route
	expiresAt time.Time
}

// RouteCache is a bounded, thread-safe tenant → routes cache backed by an
// otter cache, with per-entry TTL observed at read time.
type RouteCache struct {
	cache otter.Cache[string, cacheEntry]

	// now is swappable for tests.
	now func() time.Time
}

// NewRouteCache creates a RouteCache bounded to maxEntries tenants.
func NewRouteCache(maxEntries int) *RouteCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	cache, err := otter.MustBuilder[string, cacheEntry](maxEntries).
		Cost(func(_ string, _ cacheEntry) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("resolver: failed to create route cache: " + err.Error())
	}
	return &RouteCache{cache: cache, now: time.Now}
}

// Get returns the cached routes for tenant. Expired or empty entries are
// dropped and read as misses.
func (c *RouteCache) Get(tenant string) ([]route.Route, bool) {
	e, ok := c.cache.Get(tenant)
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.cache.Delete(tenant)
		return nil, false
	}
	if len(e.routes) == 0 {
		return nil, false
	}
	return e.routes, true
}

// Set stores routes for tenant with the given TTL.
func (c *RouteCache) Set(tenant string, routes []route.Route, ttl time.Duration) {
	if ttl <= 0 || len(routes) == 0 {
		return
	}
	c.cache.Set(tenant, cacheEntry{
		routes:    routes,
		expiresAt: c.now().Add(ttl),
	})
}

// Len returns the number of cached tenants, expired entries included.
func (c *RouteCache) Len() int {
	return c.cache.Size()
}

// Close releases resources held by the underlying cache.
func (c *RouteCache) Close() {
	c.cache.Close()
}
