package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshgw_requests_total",
		Help: "Total gateway requests by outcome and status code",
	}, []string{"outcome", "status_code"})

	gatewayAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshgw_route_attempts_total",
		Help: "Total proxy attempts by route source and result",
	}, []string{"source", "result"})

	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meshgw_request_duration_seconds",
		Help:    "Gateway request duration in seconds by outcome",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	gatewayUpgradeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meshgw_upgrade_streams_active",
		Help: "Currently open upgrade (WebSocket/MQTT) streams",
	})

	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshgw_resolutions_total",
		Help: "Tenant resolutions by result (ok, error)",
	}, []string{"result"})

	passiveUnhealthyRoutes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meshgw_passive_health_entries",
		Help: "Routes currently tracked by the passive-health store",
	})
)

// Request outcome labels.
const (
	outcomeProxied   = "proxied"
	outcomeUpgrade   = "upgrade"
	outcomeDefault   = "default_backend"
	outcomeExhausted = "routes_exhausted"
	outcomeRejected  = "rejected"
)

// SetPassiveHealthEntries updates the passive-health gauge; called from
// the sweep schedule.
func SetPassiveHealthEntries(n int) {
	passiveUnhealthyRoutes.Set(float64(n))
}
