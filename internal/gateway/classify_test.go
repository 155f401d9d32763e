package gateway

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestIsRetriableSubstrings(t *testing.T) {
	retriable := []string{
		"dial tcp 10.0.0.1:443: connection refused",
		"read tcp: Connection Reset By Peer",
		"dial tcp: no route to host",
		"dial tcp: network is unreachable",
		"context deadline exceeded (Client.Timeout)",
		"i/o timeout",
		"connection timed out",
		"TLS handshake failed",
		"x509: certificate verify failed",
		"ssl handshake failed",
		"bad ssl client hello",
	}
	for _, msg := range retriable {
		if !isRetriable(errors.New(msg)) {
			t.Errorf("isRetriable(%q) = false, want true", msg)
		}
	}

	nonRetriable := []string{
		"unexpected EOF",
		"http: server closed idle connection",
		"malformed HTTP response",
	}
	for _, msg := range nonRetriable {
		if isRetriable(errors.New(msg)) {
			t.Errorf("isRetriable(%q) = true, want false", msg)
		}
	}
}

func TestIsRetriableTypedErrors(t *testing.T) {
	if !isRetriable(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)) {
		t.Fatal("wrapped ECONNREFUSED must be retriable")
	}
	if !isRetriable(context.DeadlineExceeded) {
		t.Fatal("deadline exceeded must be retriable")
	}
}

func TestClientCancelIsNeitherRetriableNorFailure(t *testing.T) {
	err := fmt.Errorf("round trip: %w", context.Canceled)
	if !isClientCancel(err) {
		t.Fatal("expected client cancel")
	}
	if isRetriable(err) {
		t.Fatal("client cancel must not be retriable")
	}
}

func TestIsRetriableNil(t *testing.T) {
	if isRetriable(nil) {
		t.Fatal("nil error is not retriable")
	}
}
