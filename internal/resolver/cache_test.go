package resolver

import (
	"testing"
	"time"

	"github.com/Yundera/mesh-router-gateway/internal/route"
)

func TestRouteCacheHit(t *testing.T) {
	c := NewRouteCache(16)
	defer c.Close()

	routes := []route.Route{{IP: "203.0.113.5", Port: 443, Priority: 1}}
	c.Set("alice", routes, time.Minute)

	got, ok := c.Get("alice")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 1 || got[0].IP != "203.0.113.5" {
		t.Fatalf("got %+v", got)
	}
}

// An entry inserted at t0 with TTL T is never served at t >= t0+T.
func TestRouteCacheTTLExpiry(t *testing.T) {
	c := NewRouteCache(16)
	defer c.Close()

	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Set("alice", []route.Route{{IP: "203.0.113.5", Port: 443}}, time.Minute)

	now = now.Add(time.Minute - time.Nanosecond)
	if _, ok := c.Get("alice"); !ok {
		t.Fatal("expected hit just before expiry")
	}

	now = now.Add(time.Nanosecond)
	if _, ok := c.Get("alice"); ok {
		t.Fatal("expected miss exactly at expiry")
	}
}

func TestRouteCacheMiss(t *testing.T) {
	c := NewRouteCache(16)
	defer c.Close()
	if _, ok := c.Get("nobody"); ok {
		t.Fatal("expected miss")
	}
}

func TestRouteCacheIgnoresEmptyAndNonPositiveTTL(t *testing.T) {
	c := NewRouteCache(16)
	defer c.Close()

	c.Set("a", nil, time.Minute)
	c.Set("b", []route.Route{{IP: "203.0.113.5"}}, 0)

	if _, ok := c.Get("a"); ok {
		t.Fatal("empty route list must not be cached")
	}
	if _, ok := c.Get("b"); ok {
		t.Fatal("non-positive TTL must not be cached")
	}
}
