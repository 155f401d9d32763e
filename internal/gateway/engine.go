package gateway

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Yundera/mesh-router-gateway/internal/health"
	"github.com/Yundera/mesh-router-gateway/internal/route"
)

const (
	// DefaultMaxFailoverAttempts bounds the failover loop per request.
	DefaultMaxFailoverAttempts = 5
	// DefaultConnectTimeout caps each backend connect (and TLS handshake).
	DefaultConnectTimeout = 5 * time.Second
)

// requestContext carries the per-request routing state through the engine.
type requestContext struct {
	reqID        string
	originalHost string
	// proxyHost is the tenant-extraction host, forwarded as Host because
	// it is the name the backend expects.
	proxyHost string
	sequence  []route.Route
	trace     bool
}

// Engine executes proxy attempts along a failover sequence and feeds
// outcomes back into the passive-health tracker.
type Engine struct {
	Health *health.Tracker
	// CAPool verifies backend TLS certificates. SNI is always the original
	// host, never the route IP.
	CAPool         *x509.CertPool
	ConnectTimeout time.Duration
	MaxAttempts    int
	// Logf defaults to log.Printf when nil.
	Logf func(format string, args ...any)
}

func (e *Engine) logf(format string, args ...any) {
	if e.Logf != nil {
		e.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (e *Engine) connectTimeout() time.Duration {
	if e.ConnectTimeout > 0 {
		return e.ConnectTimeout
	}
	return DefaultConnectTimeout
}

func (e *Engine) maxAttempts() int {
	if e.MaxAttempts > 0 {
		return e.MaxAttempts
	}
	return DefaultMaxFailoverAttempts
}

// attemptTransport builds the one-shot transport for a single proxy
// attempt. Keep-alives are disabled: the dial function is route-specific
// and the SNI is per-request, so pooled connections could not be reused
// safely anyway.
func (e *Engine) attemptTransport(sni string, insecureSkipVerify bool) *http.Transport {
	dialer := &net.Dialer{Timeout: e.connectTimeout()}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   e.connectTimeout(),
		DisableKeepAlives:     true,
		ResponseHeaderTimeout: 0, // streaming backends may hold headers open
		TLSClientConfig: &tls.Config{
			RootCAs:            e.CAPool,
			ServerName:         sni,
			InsecureSkipVerify: insecureSkipVerify,
		},
	}
}

// buildAttemptRequest constructs the outbound request for one route
// attempt. The body comes fresh from the spool so a later attempt replays
// it from the start.
func buildAttemptRequest(r *http.Request, rt route.Route, rc *requestContext, spool *bodySpool) *http.Request {
	// Rebuild from the escaped request-URI so encoded path segments survive
	// byte-for-byte.
	target, err := url.ParseRequestURI(rt.Protocol() + "://" + rt.HostPort() + r.URL.RequestURI())
	if err != nil {
		target = &url.URL{
			Scheme:   rt.Protocol(),
			Host:     rt.HostPort(),
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
		}
	}

	out := r.Clone(r.Context())
	out.URL = target
	out.RequestURI = "" // client requests must not set RequestURI
	stripHopByHopHeaders(out.Header)
	setForwardHeaders(out, r, rc.proxyHost, rc.originalHost, rc.reqID)
	out.Body = spool.NewReader()
	out.ContentLength = spool.Size()
	return out
}

// ServeFailover runs the failover loop: try each route in sequence order,
// forward the first response, and record passive-health outcomes. A
// non-retriable transport error stops the loop early; exhaustion yields
// 502 ROUTES_EXHAUSTED.
func (e *Engine) ServeFailover(w http.ResponseWriter, r *http.Request, rc *requestContext, spool *bodySpool) {
	attempts := len(rc.sequence)
	if max := e.maxAttempts(); attempts > max {
		attempts = max
	}

	var tried []string
	for i := 0; i < attempts; i++ {
		rt := rc.sequence[i]
		tried = append(tried, sourceTag(rt))

		out := buildAttemptRequest(r, rt, rc, spool)
		transport := e.attemptTransport(rc.originalHost, false)
		resp, err := transport.RoundTrip(out)
		if err != nil {
			if isClientCancel(err) {
				// Client went away; not a route health signal.
				return
			}
			count := e.Health.MarkFailed(rt.Key())
			gatewayAttemptsTotal.WithLabelValues(sourceTag(rt), "transport_error").Inc()
			retriable := isRetriable(err)
			e.logf("gateway: req_id=%s attempt=%d route=%s source=%s failures=%d retriable=%t error=%v",
				rc.reqID, i+1, rt.Key(), sourceTag(rt), count, retriable, err)
			if !retriable {
				break
			}
			continue
		}

		// Any HTTP response is a success regardless of status; the backend
		// answered and its response is forwarded verbatim.
		e.Health.MarkHealthy(rt.Key())
		gatewayAttemptsTotal.WithLabelValues(sourceTag(rt), "ok").Inc()
		if rc.trace {
			w.Header().Set(routeRespHeader, strings.Join(tried, ",")+",pcs")
		}
		copyEndToEndHeaders(w.Header(), resp.Header)
		w.WriteHeader(resp.StatusCode)
		flushableCopy(w, resp.Body)
		resp.Body.Close()
		gatewayRequestsTotal.WithLabelValues(outcomeProxied, statusLabel(resp.StatusCode)).Inc()
		return
	}

	e.logf("gateway: req_id=%s all routes exhausted after %d attempts", rc.reqID, len(tried))
	if rc.trace {
		w.Header().Set(routeRespHeader, strings.Join(tried, ",")+",failed")
	}
	gatewayRequestsTotal.WithLabelValues(outcomeExhausted, "502").Inc()
	writeGatewayError(w, ErrRoutesExhausted)
}

// ServeDefaultBackend proxies a single attempt to the configured default
// backend: same header semantics, no failover, no certificate
// verification (the default backend is expected to be on-box).
func (e *Engine) ServeDefaultBackend(w http.ResponseWriter, r *http.Request, rc *requestContext, spool *bodySpool, backend *url.URL) {
	target := *backend
	target.Path = singleJoiningSlash(backend.Path, r.URL.Path)
	target.RawQuery = r.URL.RawQuery

	out := r.Clone(r.Context())
	out.URL = &target
	out.RequestURI = ""
	stripHopByHopHeaders(out.Header)
	setForwardHeaders(out, r, rc.proxyHost, rc.originalHost, rc.reqID)
	out.Body = spool.NewReader()
	out.ContentLength = spool.Size()

	transport := e.attemptTransport(backend.Hostname(), true)
	resp, err := transport.RoundTrip(out)
	if err != nil {
		if isClientCancel(err) {
			return
		}
		e.logf("gateway: req_id=%s default backend %s failed: %v", rc.reqID, backend.Host, err)
		gatewayRequestsTotal.WithLabelValues(outcomeDefault, "502").Inc()
		writeGatewayError(w, ErrDefaultBackendFailed)
		return
	}
	defer resp.Body.Close()

	copyEndToEndHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	flushableCopy(w, resp.Body)
	gatewayRequestsTotal.WithLabelValues(outcomeDefault, statusLabel(resp.StatusCode)).Inc()
}

// flushableCopy streams body to w, flushing as data arrives so
// server-sent events and chunked responses are not held back.
func flushableCopy(w http.ResponseWriter, body io.Reader) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

func sourceTag(rt route.Route) string {
	if rt.Source == "" {
		return "unknown"
	}
	return rt.Source
}

func statusLabel(code int) string {
	return strconv.Itoa(code)
}

// singleJoiningSlash joins URL paths without doubling or dropping the
// separator (net/http/httputil's rule).
func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash && b != "":
		return a + "/" + b
	}
	return a + b
}
