package resolver

import "errors"

// Resolution error taxonomy. The gateway maps these onto client-facing
// status codes; see gateway.Handler.serveResolveError.
var (
	// ErrNotFound means the resolution backend answered but does not know
	// the tenant: non-200 on both API versions, or non-200 on v2 followed
	// by a v1 transport failure.
	ErrNotFound = errors.New("resolver: tenant not found")

	// ErrBackendUnavailable means every attempt against both API versions
	// failed at the transport layer.
	ErrBackendUnavailable = errors.New("resolver: resolution backend unavailable")

	// ErrInvalidResponse means the backend returned 200 with a body that
	// does not decode.
	ErrInvalidResponse = errors.New("resolver: undecodable resolution response")

	// ErrNoRoutes means the resolution succeeded but carries no routes.
	ErrNoRoutes = errors.New("resolver: resolution has no routes")
)
