// Package selector turns a resolution's route list into the failover
// sequence the gateway will attempt, honoring forced-routing overrides
// and passive-health demotion.
package selector

import (
	"log"
	"sort"

	"github.com/Yundera/mesh-router-gateway/internal/route"
)

// Force modes taken from the X-Mesh-Force request header.
const (
	ForceNone   = ""
	ForceDirect = "direct"
	ForceTunnel = "tunnel"
)

// ForceHeader selects a single route source, bypassing failover.
const ForceHeader = "X-Mesh-Force"

// HealthView is the read side of the passive-health store.
// health.Tracker satisfies this interface.
type HealthView interface {
	IsUnhealthy(key string) bool
}

// Selector emits failover sequences.
type Selector struct {
	Health HealthView
	// Logf is used for force-mode fall-through warnings. Defaults to
	// log.Printf when nil.
	Logf func(format string, args ...any)
}

func (s *Selector) logf(format string, args ...any) {
	if s.Logf != nil {
		s.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Select returns the ordered route sequence to attempt.
//
// A force mode returns the first route of the matching source as a
// singleton; when no route matches, the override is ignored with a
// warning and the normal path applies. Otherwise routes are partitioned
// into healthy and unhealthy pools, each pool is sorted ascending by
// priority (stable, so input order breaks ties), and the pools are
// concatenated healthy-first. Unhealthy routes stay in the sequence as
// last-resort fallbacks.
func (s *Selector) Select(routes []route.Route, force string) []route.Route {
	switch force {
	case ForceDirect:
		if r, ok := firstBySource(routes, route.SourceAgent); ok {
			return []route.Route{r}
		}
		s.logf("selector: force=direct but no agent route available, falling back")
	case ForceTunnel:
		if r, ok := firstBySource(routes, route.SourceTunnel); ok {
			return []route.Route{r}
		}
		s.logf("selector: force=tunnel but no tunnel route available, falling back")
	}

	healthy := make([]route.Route, 0, len(routes))
	var unhealthy []route.Route
	for _, r := range routes {
		if s.Health != nil && s.Health.IsUnhealthy(r.Key()) {
			unhealthy = append(unhealthy, r)
		} else {
			healthy = append(healthy, r)
		}
	}

	sortByPriority(healthy)
	sortByPriority(unhealthy)
	return append(healthy, unhealthy...)
}

func firstBySource(routes []route.Route, source string) (route.Route, bool) {
	for _, r := range routes {
		if r.Source == source {
			return r, true
		}
	}
	return route.Route{}, false
}

func sortByPriority(routes []route.Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Priority < routes[j].Priority
	})
}
