package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Yundera/mesh-router-gateway/internal/netutil"
	"github.com/Yundera/mesh-router-gateway/internal/route"
)

const (
	// DefaultMaxRetries is the per-version attempt budget against the
	// resolution backend.
	DefaultMaxRetries = 3
	// DefaultRetryDelay separates attempts.
	DefaultRetryDelay = 150 * time.Millisecond
	// DefaultAttemptTimeout caps each attempt.
	DefaultAttemptTimeout = 5 * time.Second
)

// Client queries the Resolution API, preferring v2 and falling back to the
// legacy v1 endpoint when v2 cannot produce an answer.
type Client struct {
	// BaseURL is the resolution backend base URL, no trailing slash.
	BaseURL string
	// Downloader performs the HTTP fetches. Required.
	Downloader netutil.Downloader

	MaxRetries int
	RetryDelay time.Duration
}

// NewClient creates a Client with the default retry schedule. The
// downloader's HTTP client must already trust the backend's CA bundle.
func NewClient(baseURL string, d netutil.Downloader) *Client {
	return &Client{
		BaseURL:    baseURL,
		Downloader: d,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

// Resolve maps a tenant to its Resolution.
//
// The v2 endpoint is queried first with bounded retries. A non-200 status
// or transport exhaustion falls back to the v1 endpoint under the same
// retry schedule; a successful v1 answer is upgraded to the v2 shape.
// The returned error is one of the package taxonomy values (wrapped).
func (c *Client) Resolve(ctx context.Context, tenant string) (*route.Resolution, error) {
	body, v2Err := c.fetch(ctx, c.BaseURL+"/resolve/v2/"+tenant)
	if v2Err == nil {
		var res route.Resolution
		if err := json.Unmarshal(body, &res); err != nil {
			return nil, fmt.Errorf("%w: v2: %v", ErrInvalidResponse, err)
		}
		return &res, nil
	}

	var nonRetryable *netutil.NonRetryableError
	if errors.As(v2Err, &nonRetryable) {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, v2Err)
	}

	var v2Status *netutil.HTTPStatusError
	v2Answered := errors.As(v2Err, &v2Status)

	body, v1Err := c.fetch(ctx, c.BaseURL+"/resolve/"+tenant)
	if v1Err == nil {
		var v1 route.V1Resolution
		if err := json.Unmarshal(body, &v1); err != nil {
			return nil, fmt.Errorf("%w: v1: %v", ErrInvalidResponse, err)
		}
		return v1.Upgrade(), nil
	}

	var v1Status *netutil.HTTPStatusError
	if errors.As(v1Err, &v1Status) {
		return nil, fmt.Errorf("%w: v2=%v v1=%v", ErrNotFound, v2Err, v1Err)
	}
	if v2Answered {
		// The backend is reachable (it answered v2 with a status); treat
		// the tenant as unknown rather than the backend as down.
		return nil, fmt.Errorf("%w: v2=%v v1=%v", ErrNotFound, v2Err, v1Err)
	}
	return nil, fmt.Errorf("%w: v2=%v v1=%v", ErrBackendUnavailable, v2Err, v1Err)
}

// fetch performs one bounded-retry fetch of url. Transport errors are
// retried up to MaxRetries attempts; a status or setup error is definitive
// and returned immediately.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := c.Downloader.Download(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var statusErr *netutil.HTTPStatusError
		var nonRetryable *netutil.NonRetryableError
		if errors.As(err, &statusErr) || errors.As(err, &nonRetryable) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}
