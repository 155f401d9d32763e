package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Yundera/mesh-router-gateway/internal/route"
)

type overrideFunc func(tenant string) ([]route.Route, bool)

func (f overrideFunc) Lookup(tenant string) ([]route.Route, bool) { return f(tenant) }

func TestResolverCachesBackendAnswer(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"routes":[{"ip":"203.0.113.5","port":443,"priority":1,"source":"agent"}]}`))
	}))
	defer ts.Close()

	cache := NewRouteCache(16)
	defer cache.Close()
	r := New(newTestClient(ts.URL), cache)

	for i := 0; i < 3; i++ {
		res, err := r.Resolve(context.Background(), "alice")
		if err != nil {
			t.Fatalf("Resolve #%d: %v", i, err)
		}
		if len(res.Routes) != 1 {
			t.Fatalf("routes = %+v", res.Routes)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("backend calls = %d, want 1 (cache serves the rest)", calls.Load())
	}
}

func TestResolverHonorsRoutesTTL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"routes":[{"ip":"203.0.113.5"}],"routesTtl":120}`))
	}))
	defer ts.Close()

	cache := NewRouteCache(16)
	defer cache.Close()
	now := time.Unix(1000, 0)
	cache.now = func() time.Time { return now }

	r := New(newTestClient(ts.URL), cache)
	if _, err := r.Resolve(context.Background(), "alice"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// Past the default TTL but inside routesTtl.
	now = now.Add(90 * time.Second)
	if _, ok := cache.Get("alice"); !ok {
		t.Fatal("expected entry alive inside routesTtl")
	}
	now = now.Add(31 * time.Second)
	if _, ok := cache.Get("alice"); ok {
		t.Fatal("expected entry expired past routesTtl")
	}
}

func TestResolverEmptyRoutes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"routes":[]}`))
	}))
	defer ts.Close()

	r := New(newTestClient(ts.URL), NewRouteCache(16))
	_, err := r.Resolve(context.Background(), "alice")
	if !errors.Is(err, ErrNoRoutes) {
		t.Fatalf("err = %v, want ErrNoRoutes", err)
	}
}

func TestResolverOverridesWinOverBackend(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"routes":[{"ip":"203.0.113.5"}]}`))
	}))
	defer ts.Close()

	r := New(newTestClient(ts.URL), NewRouteCache(16))
	pinned := []route.Route{{IP: "192.0.2.1", Port: 8443, Priority: 1}}
	r.Overrides = overrideFunc(func(tenant string) ([]route.Route, bool) {
		if tenant == "alice" {
			return pinned, true
		}
		return nil, false
	})

	res, err := r.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Routes[0].IP != "192.0.2.1" {
		t.Fatalf("routes = %+v, want pinned", res.Routes)
	}
	if calls.Load() != 0 {
		t.Fatal("backend must not be queried for an overridden tenant")
	}

	// Other tenants still hit the backend.
	if _, err := r.Resolve(context.Background(), "bob"); err != nil {
		t.Fatalf("Resolve bob: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("backend calls = %d, want 1", calls.Load())
	}
}
