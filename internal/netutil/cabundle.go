package netutil

import (
	"context"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// CABundleFetchRetries bounds the startup fetch of the trust bundle.
	CABundleFetchRetries = 30
	// CABundleRetryDelay separates fetch attempts.
	CABundleRetryDelay = 2 * time.Second
)

// FetchCABundle downloads the resolution backend's CA certificate from
// {backendURL}/ca-cert with bounded retries and writes it to path. The
// written file is the only state the gateway persists.
func FetchCABundle(ctx context.Context, d Downloader, backendURL, path string) error {
	url := backendURL + "/ca-cert"

	var lastErr error
	for attempt := 0; attempt < CABundleFetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(CABundleRetryDelay):
			}
		}

		body, err := d.Download(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		if err := writeCABundle(path, body); err != nil {
			return err
		}
		return nil
	}
	return fmt.Errorf("netutil: ca bundle fetch failed after %d attempts: %w", CABundleFetchRetries, lastErr)
}

func writeCABundle(path string, pem []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("netutil: create ca bundle dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, pem, 0o644); err != nil {
		return fmt.Errorf("netutil: write ca bundle: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("netutil: install ca bundle: %w", err)
	}
	return nil
}

// LoadCertPool builds an x509 pool from the PEM bundle at path.
func LoadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("netutil: read ca bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("netutil: no certificates parsed from %s", path)
	}
	return pool, nil
}
