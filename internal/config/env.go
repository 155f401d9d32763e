// Package config handles environment-based configuration loading.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings. Everything is
// immutable after startup.
type EnvConfig struct {
	// Core
	ServerDomain   string
	BackendURL     string
	DefaultBackend string // empty disables the default-backend branch
	CacheTTL       time.Duration

	// Ports
	HTTPPort  int
	HTTPSPort int

	// TLS
	TLSCertFile  string
	TLSKeyFile   string
	CABundleFile string

	// Resolution backend
	BackendMaxRetries int
	BackendRetryDelay time.Duration
	BackendTimeout    time.Duration

	// Proxy engine
	FailoverMaxRetries  int
	FailureThreshold    int
	PassiveUnhealthyTTL time.Duration
	ProxyConnectTimeout time.Duration
	MaxBodyBytes        int64
	SpoolMemoryBytes    int64

	// Caches / sweeps
	RouteCacheMaxEntries int
	HealthSweepSchedule  string

	// Optional static route overrides
	RouteOverridesFile string
}

// LoadEnvConfig reads environment variables and returns a validated
// EnvConfig. Returns an error if any required variable is missing or any
// value is invalid.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Core ---
	cfg.ServerDomain = strings.TrimSpace(envStr("SERVER_DOMAIN", ""))
	cfg.BackendURL = strings.TrimRight(envStr("BACKEND_URL", "http://localhost:8192"), "/")
	cfg.DefaultBackend = strings.TrimSpace(envStr("DEFAULT_BACKEND", ""))
	cfg.CacheTTL = time.Duration(envInt("CACHE_TTL", 60, &errs)) * time.Second

	// --- Ports ---
	cfg.HTTPPort = envInt("HTTP_PORT", 80, &errs)
	cfg.HTTPSPort = envInt("HTTPS_PORT", 443, &errs)

	// --- TLS ---
	cfg.TLSCertFile = envStr("TLS_CERT_FILE", "")
	cfg.TLSKeyFile = envStr("TLS_KEY_FILE", "")
	cfg.CABundleFile = envStr("CA_BUNDLE_FILE", "/var/lib/meshgw/ca-bundle.pem")

	// --- Resolution backend ---
	cfg.BackendMaxRetries = envInt("BACKEND_MAX_RETRIES", 3, &errs)
	cfg.BackendRetryDelay = envDuration("BACKEND_RETRY_DELAY", 150*time.Millisecond, &errs)
	cfg.BackendTimeout = envDuration("BACKEND_TIMEOUT", 5*time.Second, &errs)

	// --- Proxy engine ---
	cfg.FailoverMaxRetries = envInt("FAILOVER_MAX_RETRIES", 5, &errs)
	cfg.FailureThreshold = envInt("FAILURE_THRESHOLD", 3, &errs)
	cfg.PassiveUnhealthyTTL = envDuration("PASSIVE_UNHEALTHY_TTL", 60*time.Second, &errs)
	cfg.ProxyConnectTimeout = envDuration("PROXY_CONNECT_TIMEOUT", 5*time.Second, &errs)
	cfg.MaxBodyBytes = envInt64("MAX_BODY_BYTES", 20<<30, &errs)
	cfg.SpoolMemoryBytes = envInt64("SPOOL_MEMORY_BYTES", 1<<20, &errs)

	// --- Caches / sweeps ---
	cfg.RouteCacheMaxEntries = envInt("ROUTE_CACHE_MAX_ENTRIES", 10000, &errs)
	cfg.HealthSweepSchedule = envStr("HEALTH_SWEEP_SCHEDULE", "* * * * *")

	// --- Optional features ---
	cfg.RouteOverridesFile = strings.TrimSpace(envStr("ROUTE_OVERRIDES_FILE", ""))

	// --- Validation ---
	if cfg.ServerDomain == "" {
		errs = append(errs, "SERVER_DOMAIN is required")
	} else if strings.Contains(cfg.ServerDomain, "/") || strings.Contains(cfg.ServerDomain, ":") {
		errs = append(errs, fmt.Sprintf("SERVER_DOMAIN: %q must be a bare domain name", cfg.ServerDomain))
	}
	if _, err := url.Parse(cfg.BackendURL); err != nil || !strings.HasPrefix(cfg.BackendURL, "http") {
		errs = append(errs, fmt.Sprintf("BACKEND_URL: invalid URL %q", cfg.BackendURL))
	}
	if cfg.DefaultBackend != "" {
		if u, err := url.Parse(cfg.DefaultBackend); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Sprintf("DEFAULT_BACKEND: invalid URL %q", cfg.DefaultBackend))
		}
	}

	validatePort("HTTP_PORT", cfg.HTTPPort, &errs)
	validatePort("HTTPS_PORT", cfg.HTTPSPort, &errs)

	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		errs = append(errs, "TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if cfg.CABundleFile == "" {
		errs = append(errs, "CA_BUNDLE_FILE must not be empty")
	}

	validatePositive("BACKEND_MAX_RETRIES", cfg.BackendMaxRetries, &errs)
	validatePositive("FAILOVER_MAX_RETRIES", cfg.FailoverMaxRetries, &errs)
	validatePositive("FAILURE_THRESHOLD", cfg.FailureThreshold, &errs)
	validatePositive("ROUTE_CACHE_MAX_ENTRIES", cfg.RouteCacheMaxEntries, &errs)

	if cfg.CacheTTL <= 0 {
		errs = append(errs, "CACHE_TTL must be positive")
	}
	if cfg.BackendRetryDelay <= 0 {
		errs = append(errs, "BACKEND_RETRY_DELAY must be positive")
	}
	if cfg.BackendTimeout <= 0 {
		errs = append(errs, "BACKEND_TIMEOUT must be positive")
	}
	if cfg.PassiveUnhealthyTTL <= 0 {
		errs = append(errs, "PASSIVE_UNHEALTHY_TTL must be positive")
	}
	if cfg.ProxyConnectTimeout <= 0 {
		errs = append(errs, "PROXY_CONNECT_TIMEOUT must be positive")
	}
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, "MAX_BODY_BYTES must be positive")
	}
	if cfg.SpoolMemoryBytes <= 0 {
		errs = append(errs, "SPOOL_MEMORY_BYTES must be positive")
	}
	if _, err := cron.ParseStandard(cfg.HealthSweepSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("HEALTH_SWEEP_SCHEDULE: invalid cron expression %q: %v", cfg.HealthSweepSchedule, err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envInt64(key string, defaultVal int64, errs *[]string) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
