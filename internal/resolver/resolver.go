// Package resolver maps tenant keys to ordered route lists via an
// in-process TTL cache, an optional static override table, and the
// two-version Resolution API.
package resolver

import (
	"context"
	"time"

	"github.com/Yundera/mesh-router-gateway/internal/route"
)

// DefaultCacheTTL is applied to cached resolutions that do not carry their
// own routesTtl.
const DefaultCacheTTL = 60 * time.Second

// OverrideLookup lets an operator pin tenants to fixed routes without the
// Resolution API. overrides.Table satisfies this interface.
type OverrideLookup interface {
	Lookup(tenant string) ([]route.Route, bool)
}

// Resolver is the request-time tenant → routes resolution engine.
type Resolver struct {
	Client *Client
	Cache  *RouteCache
	// Overrides is consulted before the cache and the backend. Optional.
	Overrides OverrideLookup
	// CacheTTL is the default TTL for cached resolutions.
	CacheTTL time.Duration
}

// New creates a Resolver with the default cache TTL.
func New(client *Client, cache *RouteCache) *Resolver {
	return &Resolver{
		Client:   client,
		Cache:    cache,
		CacheTTL: DefaultCacheTTL,
	}
}

// Resolve returns the ordered candidate routes for tenant.
//
// Lookup order: static overrides, route cache, then the backend (v2 with
// v1 fallback). Successful backend resolutions are inserted into the
// cache with the resolution's routesTtl when present, the default TTL
// otherwise. Simultaneous misses for the same tenant may each query the
// backend; resolution is idempotent so no single-flight is needed.
func (r *Resolver) Resolve(ctx context.Context, tenant string) (*route.Resolution, error) {
	if r.Overrides != nil {
		if routes, ok := r.Overrides.Lookup(tenant); ok {
			return &route.Resolution{Routes: routes}, nil
		}
	}

	if r.Cache != nil {
		if routes, ok := r.Cache.Get(tenant); ok {
			return &route.Resolution{Routes: routes}, nil
		}
	}

	res, err := r.Client.Resolve(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if len(res.Routes) == 0 {
		return nil, ErrNoRoutes
	}

	if r.Cache != nil {
		ttl := r.CacheTTL
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		if res.RoutesTTL > 0 {
			ttl = time.Duration(res.RoutesTTL) * time.Second
		}
		r.Cache.Set(tenant, res.Routes, ttl)
	}
	return res, nil
}
