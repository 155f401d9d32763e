// Package health implements the passive-health store: a concurrent
// per-route consecutive-failure counter with TTL-bounded entries.
//
// Routes are never probed actively; the gateway feeds proxy attempt
// outcomes back into the tracker and the selector demotes (but never
// drops) routes whose counter reached the threshold.
package health

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

const (
	// DefaultFailureThreshold is the consecutive-failure count at which a
	// route is considered passively unhealthy.
	DefaultFailureThreshold = 3
	// DefaultEntryTTL bounds how long a failure streak is remembered.
	DefaultEntryTTL = 60 * time.Second
)

// entry holds the failure streak for one ip:port key. Fields are atomic so
// reads on the request hot path never lock.
type entry struct {
	failures  atomic.Int32
	expiresAt atomic.Int64 // unix-nano
}

// Tracker is a concurrent passive-health store keyed by "ip:port".
type Tracker struct {
	entries   *xsync.Map[string, *entry]
	threshold int32
	ttl       time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewTracker creates a Tracker. Non-positive arguments fall back to the
// package defaults.
func NewTracker(threshold int, ttl time.Duration) *Tracker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}
	return &Tracker{
		entries:   xsync.NewMap[string, *entry](),
		threshold: int32(threshold),
		ttl:       ttl,
		now:       time.Now,
	}
}

// MarkFailed records one transport failure for key and returns the new
// consecutive-failure count. The entry's expiry is refreshed on every
// failure; an expired entry restarts its streak from zero. The increment
// runs under the map's per-key lock, so it is race-free.
func (t *Tracker) MarkFailed(key string) int32 {
	nowNano := t.now().UnixNano()
	expires := nowNano + t.ttl.Nanoseconds()
	var count int32
	t.entries.Compute(key, func(old *entry, loaded bool) (*entry, xsync.ComputeOp) {
		if !loaded || nowNano >= old.expiresAt.Load() {
			old = &entry{}
		}
		count = old.failures.Add(1)
		old.expiresAt.Store(expires)
		return old, xsync.UpdateOp
	})
	return count
}

// MarkHealthy clears the failure streak for key. Called after any
// successful proxy attempt through the route.
func (t *Tracker) MarkHealthy(key string) {
	t.entries.Delete(key)
}

// IsUnhealthy reports whether key has accumulated at least the threshold
// of consecutive failures within the entry TTL. Expired entries read as
// healthy and are removed lazily.
func (t *Tracker) IsUnhealthy(key string) bool {
	e, ok := t.entries.Load(key)
	if !ok {
		return false
	}
	if t.expired(e) {
		t.entries.Delete(key)
		return false
	}
	return e.failures.Load() >= t.threshold
}

// Failures returns the current counter for key, 0 when absent or expired.
func (t *Tracker) Failures(key string) int32 {
	e, ok := t.entries.Load(key)
	if !ok || t.expired(e) {
		return 0
	}
	return e.failures.Load()
}

// Sweep removes expired entries and returns how many were dropped.
// Run on a schedule so abandoned keys do not accumulate; correctness does
// not depend on it because expiry is also observed on read.
func (t *Tracker) Sweep() int {
	removed := 0
	t.entries.Range(func(key string, e *entry) bool {
		if t.expired(e) {
			t.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Len returns the number of tracked keys, expired entries included.
func (t *Tracker) Len() int {
	return t.entries.Size()
}

func (t *Tracker) expired(e *entry) bool {
	return t.now().UnixNano() >= e.expiresAt.Load()
}
