package gateway

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/Yundera/mesh-router-gateway/internal/route"
)

// ServeUpgrade handles streaming protocol upgrades (WebSocket, MQTT, WSS).
//
// Upgrades bypass the failover loop: once upgrade bytes have crossed, a
// retry against another route is meaningless. The first route of the
// sequence is dialed, the original request (upgrade headers intact) is
// written to it, and the connection becomes a transparent bidirectional
// byte stream.
func (e *Engine) ServeUpgrade(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	rt := rc.sequence[0]

	upstreamConn, err := e.dialUpgrade(rt, rc.originalHost)
	if err != nil {
		if isClientCancel(err) {
			return
		}
		count := e.Health.MarkFailed(rt.Key())
		gatewayAttemptsTotal.WithLabelValues(sourceTag(rt), "transport_error").Inc()
		e.logf("gateway: req_id=%s upgrade dial route=%s failures=%d error=%v",
			rc.reqID, rt.Key(), count, err)
		gatewayRequestsTotal.WithLabelValues(outcomeUpgrade, "502").Inc()
		writeGatewayError(w, ErrUpstreamUpgradeFailed)
		return
	}
	e.Health.MarkHealthy(rt.Key())
	gatewayAttemptsTotal.WithLabelValues(sourceTag(rt), "ok").Inc()

	// Rewrite the request line for the backend but keep every header,
	// including the hop-by-hop upgrade set.
	out := r.Clone(r.Context())
	out.URL = &url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery}
	out.RequestURI = ""
	setForwardHeaders(out, r, rc.proxyHost, rc.originalHost, rc.reqID)

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		upstreamConn.Close()
		e.logf("gateway: req_id=%s upgrade: response writer does not support hijacking", rc.reqID)
		writeGatewayError(w, ErrUpstreamUpgradeFailed)
		return
	}
	clientConn, clientBuf, err := hijacker.Hijack()
	if err != nil {
		upstreamConn.Close()
		return
	}

	if err := out.Write(upstreamConn); err != nil {
		upstreamConn.Close()
		clientConn.Close()
		return
	}

	// net/http may have pre-read bytes beyond the request headers. Drain
	// those first so the tunnel stays byte-transparent.
	clientToUpstream, err := makeTunnelClientReader(clientConn, clientBuf.Reader)
	if err != nil {
		upstreamConn.Close()
		clientConn.Close()
		return
	}

	gatewayUpgradeStreams.Inc()
	defer gatewayUpgradeStreams.Dec()
	gatewayRequestsTotal.WithLabelValues(outcomeUpgrade, "101").Inc()

	// Bidirectional tunnel; no HTTP error responses after this point.
	go func() {
		defer upstreamConn.Close()
		defer clientConn.Close()
		io.Copy(upstreamConn, clientToUpstream)
	}()
	io.Copy(clientConn, upstreamConn)
	clientConn.Close()
	upstreamConn.Close()
}

// dialUpgrade opens the raw (optionally TLS) connection for an upgrade
// stream. SNI and certificate verification use the original host.
func (e *Engine) dialUpgrade(rt route.Route, sni string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", rt.HostPort(), e.connectTimeout())
	if err != nil {
		return nil, err
	}
	if rt.Protocol() != route.SchemeHTTPS {
		return conn, nil
	}
	tlsConn := tls.Client(conn, &tls.Config{
		RootCAs:    e.CAPool,
		ServerName: sni,
	})
	tlsConn.SetDeadline(time.Now().Add(e.connectTimeout()))
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	tlsConn.SetDeadline(time.Time{})
	return tlsConn, nil
}

// makeTunnelClientReader returns a reader for the client→upstream copy
// that preserves any bytes already buffered by net/http before Hijack().
func makeTunnelClientReader(clientConn net.Conn, buffered *bufio.Reader) (io.Reader, error) {
	if buffered == nil {
		return clientConn, nil
	}
	n := buffered.Buffered()
	if n == 0 {
		return clientConn, nil
	}
	prefetched := make([]byte, n)
	if _, err := io.ReadFull(buffered, prefetched); err != nil {
		return nil, err
	}
	return io.MultiReader(bytes.NewReader(prefetched), clientConn), nil
}
