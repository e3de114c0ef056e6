// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

// Package main is the entry point for the Shelfgate server.
//
// Shelfgate sits between media clients and a Jellyfin/Emby-compatible
// server and blends the server's real libraries with virtual libraries
// synthesized from rule-defined collections. Clients keep speaking the
// protocol they already know; requests for native entities pass through
// verbatim, requests for virtual entities are answered from the local
// catalog plus concurrently hydrated upstream metadata.
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered sources (defaults, YAML file, env)
//  2. Catalog store: BadgerDB holding collections and membership snapshots
//  3. Upstream client: rate-limited Jellyfin API client, optionally
//     wrapped in a circuit breaker
//  4. Proxy core: compositor, hydrator, view cache
//  5. HTTP server: protocol endpoints, admin API, health and metrics
//  6. Supervisor tree: suture-managed janitor and HTTP listener
//
// Graceful shutdown on SIGINT/SIGTERM stops accepting connections, waits
// for in-flight requests, and closes the catalog store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shelfgate/shelfgate/internal/api"
	"github.com/shelfgate/shelfgate/internal/cache"
	"github.com/shelfgate/shelfgate/internal/catalog"
	"github.com/shelfgate/shelfgate/internal/config"
	"github.com/shelfgate/shelfgate/internal/logging"
	"github.com/shelfgate/shelfgate/internal/proxy"
	"github.com/shelfgate/shelfgate/internal/supervisor"
	"github.com/shelfgate/shelfgate/internal/supervisor/services"
	"github.com/shelfgate/shelfgate/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Bool("proxy_enabled", cfg.Proxy.Enabled).
		Str("upstream_url", cfg.Upstream.URL).
		Str("catalog_path", cfg.Catalog.Path).
		Msg("Starting Shelfgate")

	store, err := catalog.Open(&cfg.Catalog)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open catalog store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing catalog store")
		}
	}()

	var client upstream.Client = upstream.NewJellyfinClient(&cfg.Upstream)
	if cfg.Upstream.CircuitBreaker {
		client = upstream.NewCircuitBreakerClient(client)
		logging.Info().Msg("Upstream circuit breaker enabled")
	}
	if err := client.Ping(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Upstream media server unreachable (will keep retrying)")
	} else {
		logging.Info().Msg("Connected to upstream media server")
	}

	viewCache := cache.New(cfg.Proxy.CacheTTL)
	compositor := proxy.NewCompositor(client, store, cfg.Proxy)
	hydrator := proxy.NewHydrator(client, &cfg.Proxy)

	handler := api.NewHandler(cfg, client, store, compositor, hydrator, viewCache)
	admin := api.NewAdminHandler(store, viewCache)
	health := api.NewHealthHandler(client)
	router := api.NewRouter(handler, admin, health, api.NewChiMiddleware(cfg.Security))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddMaintenanceService(services.NewCacheJanitorService(viewCache, cfg.Proxy.CacheTTL))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	drain, drainCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+5*time.Second)
	defer drainCancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	case <-drain.Done():
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Shelfgate stopped gracefully")
}
