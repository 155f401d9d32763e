package gateway

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Yundera/mesh-router-gateway/internal/resolver"
	"github.com/Yundera/mesh-router-gateway/internal/selector"
	"github.com/Yundera/mesh-router-gateway/internal/tenant"
	"github.com/google/uuid"
)

// Handler is the top-level request handler: parse → resolve → select →
// proxy, with the default-backend branch for unknown tenants.
type Handler struct {
	ServerDomain string
	// DefaultBackend receives requests with no usable tenant or routes.
	// nil disables the branch.
	DefaultBackend *url.URL

	Resolver *resolver.Resolver
	Selector *selector.Selector
	Engine   *Engine

	MaxBodyBytes     int64
	SpoolMemoryBytes int64
	// Logf defaults to log.Printf when nil.
	Logf func(format string, args ...any)
}

func (h *Handler) logf(format string, args ...any) {
	if h.Logf != nil {
		h.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// newReqID generates the 24-bit hex request identifier attached to logs
// and the X-Request-ID header.
func newReqID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := newReqID()
	originalHost := r.Host
	proxyHost := tenant.FromRequest(r)

	rc := &requestContext{
		reqID:        reqID,
		originalHost: originalHost,
		proxyHost:    proxyHost,
		trace:        r.Header.Get(traceHeader) != "",
	}

	tn, err := tenant.Parse(proxyHost, h.ServerDomain)
	if err != nil {
		h.logf("gateway: req_id=%s host=%s no tenant: %v", reqID, proxyHost, err)
		h.serveFallback(w, r, rc, ErrInvalidSubdomain, start)
		return
	}

	res, err := h.Resolver.Resolve(r.Context(), tn)
	if err != nil {
		h.serveResolveError(w, r, rc, tn, err, start)
		return
	}
	resolutionsTotal.WithLabelValues("ok").Inc()

	seq := h.Selector.Select(res.Routes, r.Header.Get(selector.ForceHeader))
	if len(seq) == 0 {
		h.logf("gateway: req_id=%s tenant=%s resolution has no usable routes", reqID, tn)
		h.serveFallback(w, r, rc, ErrNoRoutes, start)
		return
	}
	rc.sequence = seq

	h.logf("gateway: req_id=%s tenant=%s routes=%d first=%s", reqID, tn, len(seq), seq[0].Key())

	if isUpgradeRequest(r) {
		h.Engine.ServeUpgrade(w, r, rc)
		return
	}

	spool, err := spoolBody(r.Body, h.SpoolMemoryBytes, h.MaxBodyBytes)
	if err != nil {
		h.logf("gateway: req_id=%s body spool failed: %v", reqID, err)
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	defer spool.Close()

	h.Engine.ServeFailover(w, r, rc, spool)
	gatewayRequestDuration.WithLabelValues(outcomeProxied).Observe(time.Since(start).Seconds())
}

// serveResolveError maps resolver failures onto the default-backend branch
// or a terminal status.
func (h *Handler) serveResolveError(w http.ResponseWriter, r *http.Request, rc *requestContext, tn string, err error, start time.Time) {
	resolutionsTotal.WithLabelValues("error").Inc()
	h.logf("gateway: req_id=%s tenant=%s resolve failed: %v", rc.reqID, tn, err)

	switch {
	case errors.Is(err, resolver.ErrNotFound):
		h.serveFallback(w, r, rc, ErrTenantNotFound, start)
	case errors.Is(err, resolver.ErrNoRoutes):
		h.serveFallback(w, r, rc, ErrNoRoutes, start)
	case errors.Is(err, resolver.ErrInvalidResponse):
		gatewayRequestsTotal.WithLabelValues(outcomeRejected, "502").Inc()
		writeGatewayError(w, ErrInvalidResponse)
	default:
		gatewayRequestsTotal.WithLabelValues(outcomeRejected, "502").Inc()
		writeGatewayError(w, ErrBackendUnavailable)
	}
}

// serveFallback routes tenant-less or route-less requests to the default
// backend when one is configured, otherwise rejects with ge.
func (h *Handler) serveFallback(w http.ResponseWriter, r *http.Request, rc *requestContext, ge *GatewayError, start time.Time) {
	if h.DefaultBackend == nil {
		gatewayRequestsTotal.WithLabelValues(outcomeRejected, statusLabel(ge.HTTPCode)).Inc()
		writeGatewayError(w, ge)
		return
	}

	spool, err := spoolBody(r.Body, h.SpoolMemoryBytes, h.MaxBodyBytes)
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	defer spool.Close()

	h.Engine.ServeDefaultBackend(w, r, rc, spool, h.DefaultBackend)
	gatewayRequestDuration.WithLabelValues(outcomeDefault).Observe(time.Since(start).Seconds())
}
