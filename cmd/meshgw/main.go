package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Yundera/mesh-router-gateway/internal/api"
	"github.com/Yundera/mesh-router-gateway/internal/buildinfo"
	"github.com/Yundera/mesh-router-gateway/internal/config"
	"github.com/Yundera/mesh-router-gateway/internal/gateway"
	"github.com/Yundera/mesh-router-gateway/internal/health"
	"github.com/Yundera/mesh-router-gateway/internal/netutil"
	"github.com/Yundera/mesh-router-gateway/internal/overrides"
	"github.com/Yundera/mesh-router-gateway/internal/resolver"
	"github.com/Yundera/mesh-router-gateway/internal/selector"
	"github.com/robfig/cron/v3"
)

func main() {
	// 1. Load and validate environment config.
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	startedAt := time.Now().UTC()
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// 2. Bootstrap the CA trust bundle from the resolution backend.
	bootstrapDL := &netutil.DirectDownloader{Timeout: 10 * time.Second}
	log.Printf("meshgw %s fetching CA bundle from %s", buildinfo.Version, envCfg.BackendURL)
	if err := netutil.FetchCABundle(rootCtx, bootstrapDL, envCfg.BackendURL, envCfg.CABundleFile); err != nil {
		if _, statErr := os.Stat(envCfg.CABundleFile); statErr != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		log.Printf("CA bundle fetch failed, using existing %s: %v", envCfg.CABundleFile, err)
	}
	caPool, err := netutil.LoadCertPool(envCfg.CABundleFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	// 3. Wire the resolution + failover core.
	backendClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: caPool},
		},
	}
	client := resolver.NewClient(envCfg.BackendURL, &netutil.DirectDownloader{
		Client:  backendClient,
		Timeout: envCfg.BackendTimeout,
	})
	client.MaxRetries = envCfg.BackendMaxRetries
	client.RetryDelay = envCfg.BackendRetryDelay

	routeCache := resolver.NewRouteCache(envCfg.RouteCacheMaxEntries)
	defer routeCache.Close()

	res := resolver.New(client, routeCache)
	res.CacheTTL = envCfg.CacheTTL

	if envCfg.RouteOverridesFile != "" {
		table, err := overrides.NewTable(envCfg.RouteOverridesFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		if err := table.Watch(rootCtx); err != nil {
			log.Printf("overrides: hot reload disabled: %v", err)
		}
		res.Overrides = table
		log.Printf("route overrides loaded from %s (%d tenants)", envCfg.RouteOverridesFile, table.Len())
	}

	tracker := health.NewTracker(envCfg.FailureThreshold, envCfg.PassiveUnhealthyTTL)

	engine := &gateway.Engine{
		Health:         tracker,
		CAPool:         caPool,
		ConnectTimeout: envCfg.ProxyConnectTimeout,
		MaxAttempts:    envCfg.FailoverMaxRetries,
	}

	var defaultBackend *url.URL
	if envCfg.DefaultBackend != "" {
		defaultBackend, _ = url.Parse(envCfg.DefaultBackend)
	}

	handler := &gateway.Handler{
		ServerDomain:     envCfg.ServerDomain,
		DefaultBackend:   defaultBackend,
		Resolver:         res,
		Selector:         &selector.Selector{Health: tracker},
		Engine:           engine,
		MaxBodyBytes:     envCfg.MaxBodyBytes,
		SpoolMemoryBytes: envCfg.SpoolMemoryBytes,
	}

	// 4. Passive-health sweep schedule.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(envCfg.HealthSweepSchedule, func() {
		removed := tracker.Sweep()
		gateway.SetPassiveHealthEntries(tracker.Len())
		if removed > 0 {
			log.Printf("health: swept %d expired entries", removed)
		}
	}); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: health sweep schedule: %v\n", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	// 5. Listeners: plain HTTP plus HTTPS when a wildcard cert is supplied.
	root := api.NewMux(handler, startedAt, api.HealthStats{
		CachedTenants: routeCache.Len,
		TrackedRoutes: tracker.Len,
	})

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", envCfg.HTTPPort),
		Handler: root,
	}
	go func() {
		log.Printf("meshgw %s serving HTTP on %s (domain *.%s)", buildinfo.Version, httpSrv.Addr, envCfg.ServerDomain)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	var httpsSrv *http.Server
	if envCfg.TLSCertFile != "" {
		httpsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", envCfg.HTTPSPort),
			Handler: root,
		}
		go func() {
			log.Printf("meshgw serving HTTPS on %s", httpsSrv.Addr)
			if err := httpsSrv.ListenAndServeTLS(envCfg.TLSCertFile, envCfg.TLSKeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("HTTPS server error: %v", err)
			}
		}()
	}

	// 6. Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("received signal %s, shutting down", sig)
	rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if httpsSrv != nil {
		if err := httpsSrv.Shutdown(ctx); err != nil {
			log.Printf("HTTPS server shutdown error: %v", err)
		}
	}
	log.Println("server stopped")
}
