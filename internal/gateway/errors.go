// Package gateway implements the request data plane: host parsing
// dispatch, resolution, route selection, the failover proxy loop, the
// single-shot upgrade tunnel, and the default-backend branch.
package gateway

import (
	"encoding/json"
	"net/http"
)

// GatewayError is a structured client-facing error response.
type GatewayError struct {
	HTTPCode int
	Code     string // X-Mesh-Error header value and JSON "code"
	Message  string // JSON "error"
}

// Predefined gateway errors. Per-attempt transport failures never surface
// directly; only the terminal conditions below reach the client.
var (
	ErrInvalidSubdomain = &GatewayError{
		HTTPCode: http.StatusBadRequest,
		Code:     "INVALID_SUBDOMAIN",
		Message:  "Host is not a subdomain of the server domain",
	}
	ErrTenantNotFound = &GatewayError{
		HTTPCode: http.StatusNotFound,
		Code:     "NOT_FOUND",
		Message:  "Unknown tenant",
	}
	ErrNoRoutes = &GatewayError{
		HTTPCode: http.StatusNotFound,
		Code:     "NO_ROUTES",
		Message:  "Tenant has no routes",
	}
	ErrBackendUnavailable = &GatewayError{
		HTTPCode: http.StatusBadGateway,
		Code:     "BACKEND_UNAVAILABLE",
		Message:  "Resolution backend unavailable",
	}
	ErrInvalidResponse = &GatewayError{
		HTTPCode: http.StatusBadGateway,
		Code:     "INVALID_RESPONSE",
		Message:  "Resolution backend returned an undecodable response",
	}
	ErrRoutesExhausted = &GatewayError{
		HTTPCode: http.StatusBadGateway,
		Code:     "ROUTES_EXHAUSTED",
		Message:  "All backend routes failed",
	}
	ErrDefaultBackendFailed = &GatewayError{
		HTTPCode: http.StatusBadGateway,
		Code:     "DEFAULT_BACKEND_FAILED",
		Message:  "Default backend failed",
	}
	ErrUpstreamUpgradeFailed = &GatewayError{
		HTTPCode: http.StatusBadGateway,
		Code:     "UPGRADE_FAILED",
		Message:  "Failed to establish upgrade stream to backend",
	}
)

// writeGatewayError writes a standardized JSON error response.
func writeGatewayError(w http.ResponseWriter, ge *GatewayError) {
	w.Header().Set("X-Mesh-Error", ge.Code)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(ge.HTTPCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": ge.Message,
		"code":  ge.Code,
	})
}
