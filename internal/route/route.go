// Package route defines the backend route and resolution value types shared
// by the resolver, selector, and gateway packages.
package route

import (
	"encoding/json"
	"net"
	"strconv"
)

const (
	// DefaultPort is used when a resolution omits the route port.
	DefaultPort = 443
	// DefaultPriority is used when a resolution omits the route priority.
	// Lower is more preferred.
	DefaultPriority = 999

	// SourceAgent marks a direct route to the tenant's agent.
	SourceAgent = "agent"
	// SourceTunnel marks a route through an indirection; tunnel routes
	// always speak plain HTTP regardless of the advertised scheme.
	SourceTunnel = "tunnel"

	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// HealthCheck is advertised by some backends. The gateway records it but the
// runtime only does passive health tracking.
type HealthCheck struct {
	Path string `json:"path"`
	Host string `json:"host,omitempty"`
}

// Route is a single candidate backend. Routes are immutable value objects;
// they are never mutated after decoding.
type Route struct {
	IP          string       `json:"ip"`
	Port        int          `json:"port"`
	Priority    int          `json:"priority"`
	Scheme      string       `json:"scheme"`
	Source      string       `json:"source,omitempty"`
	HealthCheck *HealthCheck `json:"healthCheck,omitempty"`
}

// routeWire mirrors Route with pointer fields so that absent values can be
// distinguished from explicit zeros when applying defaults.
type routeWire struct {
	IP          string       `json:"ip"`
	Port        *int         `json:"port"`
	Priority    *int         `json:"priority"`
	Scheme      string       `json:"scheme"`
	Source      string       `json:"source"`
	HealthCheck *HealthCheck `json:"healthCheck"`
}

// UnmarshalJSON decodes a route and applies the wire defaults:
// port 443, priority 999, scheme https.
func (r *Route) UnmarshalJSON(data []byte) error {
	var w routeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.IP = w.IP
	r.Port = DefaultPort
	if w.Port != nil {
		r.Port = *w.Port
	}
	r.Priority = DefaultPriority
	if w.Priority != nil {
		r.Priority = *w.Priority
	}
	r.Scheme = w.Scheme
	if r.Scheme == "" {
		r.Scheme = SchemeHTTPS
	}
	r.Source = w.Source
	r.HealthCheck = w.HealthCheck
	return nil
}

// Protocol returns the wire protocol used to reach this route: "http" for
// tunnel routes (the indirection terminates TLS itself), otherwise the
// advertised scheme.
func (r Route) Protocol() string {
	if r.Source == SourceTunnel {
		return SchemeHTTP
	}
	if r.Scheme == "" {
		return SchemeHTTPS
	}
	return r.Scheme
}

// HostPort returns "ip:port" with IPv6 literals bracketed, suitable for
// embedding in a URL authority.
func (r Route) HostPort() string {
	return net.JoinHostPort(r.IP, strconv.Itoa(r.Port))
}

// Key returns the passive-health store key for this route.
func (r Route) Key() string {
	return r.HostPort()
}

// Resolution is the v2 Resolution API response for one tenant.
type Resolution struct {
	UserID         string  `json:"userId"`
	DomainName     string  `json:"domainName"`
	ServerDomain   string  `json:"serverDomain"`
	Routes         []Route `json:"routes"`
	RoutesTTL      int     `json:"routesTtl,omitempty"`
	LastSeenOnline string  `json:"lastSeenOnline,omitempty"`
}

// V1Resolution is the legacy single-backend response shape.
type V1Resolution struct {
	HostIP       string `json:"hostIp"`
	TargetPort   int    `json:"targetPort,omitempty"`
	UserID       string `json:"userId,omitempty"`
	DomainName   string `json:"domainName,omitempty"`
	ServerDomain string `json:"serverDomain,omitempty"`
}

// Upgrade reshapes a v1 response into a v2 Resolution with a single route
// at priority 1. A missing target port defaults to 443.
func (v V1Resolution) Upgrade() *Resolution {
	port := v.TargetPort
	if port == 0 {
		port = DefaultPort
	}
	return &Resolution{
		UserID:       v.UserID,
		DomainName:   v.DomainName,
		ServerDomain: v.ServerDomain,
		Routes: []Route{{
			IP:       v.HostIP,
			Port:     port,
			Priority: 1,
			Scheme:   SchemeHTTPS,
		}},
	}
}
