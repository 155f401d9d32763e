package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// opsPrefix guards the operational namespace; tenant prefixes cannot
// collide with it because request paths, not hosts, select it.
const opsPrefix = "/_"

// NewMux mounts the operational endpoints in front of the gateway
// handler: every path under /_ is answered locally (/_health and /_metrics,
// any other /_ path gets the ops mux's 404), everything else is proxied.
func NewMux(gw http.Handler, startedAt time.Time, stats HealthStats) http.Handler {
	ops := http.NewServeMux()
	ops.Handle("GET /_health", HandleHealth(startedAt, stats))
	ops.Handle("GET /_metrics", promhttp.Handler())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, opsPrefix) {
			ops.ServeHTTP(w, r)
			return
		}
		gw.ServeHTTP(w, r)
	})
}
