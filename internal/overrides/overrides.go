// Package overrides implements the static route-override table: a YAML
// file pinning tenants to fixed routes, hot-reloaded on change so an
// operator can steer traffic without touching the Resolution API.
package overrides

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/Yundera/mesh-router-gateway/internal/route"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// entrySpec is one YAML route entry.
type entrySpec struct {
	IP       string `yaml:"ip"`
	Port     int    `yaml:"port"`
	Priority int    `yaml:"priority"`
	Scheme   string `yaml:"scheme"`
	Source   string `yaml:"source"`
}

// fileSpec is the override file shape: tenant key → route list.
type fileSpec map[string][]entrySpec

// Table holds the current override snapshot. Lookups are lock-free; the
// watcher swaps the whole map on reload.
type Table struct {
	path    string
	entries atomic.Pointer[map[string][]route.Route]
	// Logf defaults to log.Printf when nil.
	Logf func(format string, args ...any)
}

// NewTable loads path and returns the table. A missing or invalid file at
// startup is an error; later reload failures keep the previous snapshot.
func NewTable(path string) (*Table, error) {
	t := &Table{path: path}
	if err := t.reload(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) logf(format string, args ...any) {
	if t.Logf != nil {
		t.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Lookup returns the pinned routes for tenant, if any.
func (t *Table) Lookup(tenant string) ([]route.Route, bool) {
	m := t.entries.Load()
	if m == nil {
		return nil, false
	}
	routes, ok := (*m)[tenant]
	if !ok || len(routes) == 0 {
		return nil, false
	}
	return routes, true
}

// Len returns the number of tenants with overrides.
func (t *Table) Len() int {
	m := t.entries.Load()
	if m == nil {
		return 0
	}
	return len(*m)
}

func (t *Table) reload() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return fmt.Errorf("overrides: read %s: %w", t.path, err)
	}
	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("overrides: parse %s: %w", t.path, err)
	}

	m := make(map[string][]route.Route, len(spec))
	for tenant, specs := range spec {
		routes := make([]route.Route, 0, len(specs))
		for _, s := range specs {
			if s.IP == "" {
				return fmt.Errorf("overrides: tenant %q has a route with no ip", tenant)
			}
			r := route.Route{
				IP:       s.IP,
				Port:     s.Port,
				Priority: s.Priority,
				Scheme:   s.Scheme,
				Source:   s.Source,
			}
			if r.Port == 0 {
				r.Port = route.DefaultPort
			}
			if r.Priority == 0 {
				r.Priority = route.DefaultPriority
			}
			if r.Scheme == "" {
				r.Scheme = route.SchemeHTTPS
			}
			routes = append(routes, r)
		}
		m[tenant] = routes
	}
	t.entries.Store(&m)
	return nil
}

// Watch reloads the table whenever the file changes, until ctx is done.
// Reload failures are logged and the previous snapshot stays live.
func (t *Table) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("overrides: watcher: %w", err)
	}
	if err := watcher.Add(t.path); err != nil {
		watcher.Close()
		return fmt.Errorf("overrides: watch %s: %w", t.path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := t.reload(); err != nil {
					t.logf("overrides: reload failed, keeping previous table: %v", err)
					continue
				}
				t.logf("overrides: reloaded %s (%d tenants)", t.path, t.Len())
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				t.logf("overrides: watcher error: %v", err)
			}
		}
	}()
	return nil
}
