package netutil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDirectDownloaderSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != defaultUserAgent {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Write([]byte("payload"))
	}))
	defer ts.Close()

	d := &DirectDownloader{Timeout: 2 * time.Second}
	body, err := d.Download(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(body) != "payload" {
		t.Fatalf("body = %q", body)
	}
}

func TestDirectDownloaderStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	d := &DirectDownloader{}
	_, err := d.Download(context.Background(), ts.URL)

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %T %v, want *HTTPStatusError", err, err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("StatusCode = %d", statusErr.StatusCode)
	}
}

func TestDirectDownloaderBadURL(t *testing.T) {
	d := &DirectDownloader{}
	_, err := d.Download(context.Background(), "::::")

	var nonRetryable *NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("err = %T %v, want *NonRetryableError", err, err)
	}
}

func TestDirectDownloaderTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer ts.Close()

	d := &DirectDownloader{Timeout: 20 * time.Millisecond}
	_, err := d.Download(context.Background(), ts.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		t.Fatal("timeout must be a transport error, not a status error")
	}
}
