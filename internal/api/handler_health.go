package api

import (
	"net/http"
	"time"

	"github.com/Yundera/mesh-router-gateway/internal/buildinfo"
)

// HealthStats are live counters surfaced by the health endpoint.
type HealthStats struct {
	CachedTenants func() int
	TrackedRoutes func() int
}

// HandleHealth returns the handler for GET /_health.
// No authentication is required; the endpoint reports process liveness
// plus a couple of cheap cache gauges.
func HandleHealth(startedAt time.Time, stats HealthStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status":  "ok",
			"version": buildinfo.Version,
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
		}
		if stats.CachedTenants != nil {
			body["cachedTenants"] = stats.CachedTenants()
		}
		if stats.TrackedRoutes != nil {
			body["trackedRoutes"] = stats.TrackedRoutes()
		}
		WriteJSON(w, http.StatusOK, body)
	}
}
