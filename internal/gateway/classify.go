package gateway

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
)

// retriableSubstrings is the last-resort catch-all for opaque transport
// errors; matching is case-insensitive. Typed classification at the
// connect/handshake boundary runs first.
var retriableSubstrings = []string{
	"connection refused",
	"connection reset by peer",
	"no route to host",
	"network is unreachable",
	"timeout",
	"connection timed out",
	"handshake failed",
	"certificate verify failed",
	"ssl handshake failed",
	"bad ssl client hello",
}

// isClientCancel reports whether the attempt failed because the client
// went away. Such failures are not a route health signal and terminate
// the request silently.
func isClientCancel(err error) bool {
	return errors.Is(err, context.Canceled)
}

// isRetriable reports whether a proxy attempt failure should trigger the
// next route in the failover sequence. Only transport-level failures
// before response headers qualify; a backend HTTP response of any status
// is a success and never reaches this classifier.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	if isClientCancel(err) {
		return false
	}

	// Typed taxonomy at the connect/handshake boundary.
	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) {
		return true
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	// Substring catch-all for errors the TLS/TCP/DNS stacks surface opaquely.
	msg := strings.ToLower(err.Error())
	for _, s := range retriableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
