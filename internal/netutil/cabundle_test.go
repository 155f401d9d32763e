package netutil

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func selfSignedPEM(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "meshgw-test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestFetchCABundleWritesAndLoads(t *testing.T) {
	pemBytes := selfSignedPEM(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ca-cert" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write(pemBytes)
	}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "bundle", "ca.pem")
	d := &DirectDownloader{Timeout: 2 * time.Second}
	if err := FetchCABundle(context.Background(), d, ts.URL, path); err != nil {
		t.Fatalf("FetchCABundle: %v", err)
	}

	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read bundle: %v", err)
	}
	if string(written) != string(pemBytes) {
		t.Fatal("written bundle differs from served bundle")
	}

	if _, err := LoadCertPool(path); err != nil {
		t.Fatalf("LoadCertPool: %v", err)
	}
}

func TestFetchCABundleRetriesUntilSuccess(t *testing.T) {
	pemBytes := selfSignedPEM(t)
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.Write(pemBytes)
	}))
	defer ts.Close()

	// Two failed attempts mean two 2s retry delays (about 4s); the context
	// timeout only bounds the test if the fetch never succeeds.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	path := filepath.Join(t.TempDir(), "ca.pem")
	d := &DirectDownloader{Timeout: 2 * time.Second}
	if err := FetchCABundle(ctx, d, ts.URL, path); err != nil {
		t.Fatalf("FetchCABundle: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestLoadCertPoolRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, []byte("not pem"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadCertPool(path); err == nil {
		t.Fatal("expected error for garbage bundle")
	}
}
