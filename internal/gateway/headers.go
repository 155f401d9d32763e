package gateway

import (
	"net"
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Recognized request headers.
const (
	traceHeader     = "X-Mesh-Trace"
	routeRespHeader = "X-Mesh-Route"
	requestIDHeader = "X-Request-ID"
)

// hop-by-hop headers that must not be forwarded to the next hop.
var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// upgradeProtocols are the Upgrade tokens dispatched to the streaming
// tunnel instead of the failover loop.
var upgradeProtocols = map[string]bool{
	"websocket": true,
	"mqtt":      true,
	"wss":       true,
}

// stripHopByHopHeaders removes hop-by-hop headers from a header map,
// including any headers listed in the Connection header.
func stripHopByHopHeaders(header http.Header) {
	if header == nil {
		return
	}
	for _, connHeaders := range header.Values("Connection") {
		for _, h := range strings.Split(connHeaders, ",") {
			if h = strings.TrimSpace(h); h != "" {
				header.Del(h)
			}
		}
	}
	for _, h := range hopByHopHeaders {
		header.Del(h)
	}
}

// copyEndToEndHeaders copies only end-to-end headers from src to dst.
func copyEndToEndHeaders(dst, src http.Header) {
	if dst == nil || src == nil {
		return
	}
	headers := src.Clone()
	stripHopByHopHeaders(headers)
	for k, vv := range headers {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// isUpgradeRequest reports whether the request asks for a streaming
// protocol upgrade the gateway tunnels instead of proxying.
func isUpgradeRequest(r *http.Request) bool {
	if !httpguts.HeaderValuesContainsToken(r.Header.Values("Connection"), "Upgrade") {
		return false
	}
	return upgradeProtocols[strings.ToLower(r.Header.Get("Upgrade"))]
}

// setForwardHeaders applies the gateway's forwarding header contract to an
// outbound request: the backend sees the tenant-extraction host as Host
// plus the standard client-identity headers.
func setForwardHeaders(out *http.Request, in *http.Request, proxyHost, originalHost, reqID string) {
	clientIP := in.RemoteAddr
	if ip, _, err := net.SplitHostPort(in.RemoteAddr); err == nil {
		clientIP = ip
	}
	clientScheme := "http"
	if in.TLS != nil {
		clientScheme = "https"
	}

	out.Host = proxyHost
	out.Header.Set("X-Real-IP", clientIP)
	if prior := in.Header.Get("X-Forwarded-For"); prior != "" {
		out.Header.Set("X-Forwarded-For", prior+", "+clientIP)
	} else {
		out.Header.Set("X-Forwarded-For", clientIP)
	}
	out.Header.Set("X-Forwarded-Proto", clientScheme)
	out.Header.Set("X-Forwarded-Host", originalHost)
	out.Header.Set(requestIDHeader, reqID)
}
