// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

// Package config provides centralized configuration for Shelfgate.
//
// Configuration is loaded via Koanf v2 with layered sources, highest
// priority last:
//
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables (PROXY_ENABLED, UPSTREAM_URL, ...)
//
// The resulting Config is immutable after Load() and safe for concurrent
// reads; components receive the sections they need by value so there are no
// scattered global flag reads.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Proxy    ProxyConfig    `koanf:"proxy"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ProxyConfig controls the view-virtualization behavior. This is the
// configuration surface the compositor and router branch on; it is passed
// into them as a value, never read from globals.
type ProxyConfig struct {
	// Enabled is the master switch. When false every request is passed
	// through to the upstream server untouched.
	Enabled bool `koanf:"enabled"`

	// MergeNativeLibraries controls whether native libraries are blended
	// into the merged view list. When false the view list contains only
	// virtual views (plus nothing from upstream).
	MergeNativeLibraries bool `koanf:"merge_native_libraries"`

	// NativeViewSelection restricts which native libraries appear when
	// merging. Empty means all native libraries.
	NativeViewSelection []string `koanf:"native_view_selection"`

	// NativeViewOrder places native libraries "before" or "after" the
	// virtual ones in the merged list.
	NativeViewOrder string `koanf:"native_view_order"`

	// ShowMissingPlaceholders includes collection members with no upstream
	// presence as non-playable placeholders. When false such members are
	// dropped from the candidate set entirely: not counted, not returned,
	// not paginated.
	ShowMissingPlaceholders bool `koanf:"show_missing_placeholders"`

	// CacheTTL bounds how long a materialized, sorted view survives before
	// a rebuild.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// HydrationWidth is the worker pool size for concurrent upstream item
	// fetches. It caps total upstream load across all in-flight client
	// requests.
	HydrationWidth int `koanf:"hydration_width"`

	// ChunkSize is the maximum number of ids per upstream batch request.
	ChunkSize int `koanf:"chunk_size"`

	// ChunkTimeout bounds each upstream chunk fetch. A chunk that misses
	// the deadline is dropped from the result, not retried.
	ChunkTimeout time.Duration `koanf:"chunk_timeout"`

	// RequestTimeout is the overall deadline the router enforces per
	// inbound request.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// NativeViewOrder values.
const (
	OrderBefore = "before"
	OrderAfter  = "after"
)

// UpstreamConfig holds the connection settings for the real media server
// behind the proxy.
//
// Environment variables: UPSTREAM_URL, UPSTREAM_API_KEY, UPSTREAM_USER_ID,
// UPSTREAM_TIMEOUT, UPSTREAM_RATE_LIMIT.
type UpstreamConfig struct {
	// URL is the upstream media server base URL, e.g. http://jellyfin:8096.
	URL string `koanf:"url"`

	// APIKey authenticates proxy requests to the upstream API.
	APIKey string `koanf:"api_key"`

	// UserID scopes view and item requests to a library user.
	UserID string `koanf:"user_id"`

	// Timeout is the HTTP client timeout for individual upstream calls.
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit caps upstream requests per second. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`

	// RateBurst is the token bucket burst size when RateLimit is set.
	RateBurst int `koanf:"rate_burst"`

	// CircuitBreaker toggles the gobreaker wrapper around the client.
	CircuitBreaker bool `koanf:"circuit_breaker"`
}

// CatalogConfig holds the local collection/membership store settings.
type CatalogConfig struct {
	// Path is the Badger database directory.
	Path string `koanf:"path"`

	// InMemory runs the store without disk persistence. Used in tests and
	// throwaway deployments.
	InMemory bool `koanf:"in_memory"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SecurityConfig holds API middleware settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
