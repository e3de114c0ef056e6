// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateProxy(); err != nil {
		return err
	}
	if err := c.validateUpstream(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateProxy() error {
	if !c.Proxy.Enabled {
		return nil // pure passthrough mode, nothing else to check
	}

	switch c.Proxy.NativeViewOrder {
	case OrderBefore, OrderAfter:
	default:
		return fmt.Errorf("PROXY_NATIVE_VIEW_ORDER must be %q or %q, got %q",
			OrderBefore, OrderAfter, c.Proxy.NativeViewOrder)
	}

	if c.Proxy.CacheTTL <= 0 {
		return fmt.Errorf("PROXY_CACHE_TTL must be positive, got %s", c.Proxy.CacheTTL)
	}
	if c.Proxy.HydrationWidth < 1 {
		return fmt.Errorf("PROXY_HYDRATION_WIDTH must be at least 1, got %d", c.Proxy.HydrationWidth)
	}
	if c.Proxy.ChunkSize < 1 {
		return fmt.Errorf("PROXY_CHUNK_SIZE must be at least 1, got %d", c.Proxy.ChunkSize)
	}
	if c.Proxy.ChunkTimeout <= 0 {
		return fmt.Errorf("PROXY_CHUNK_TIMEOUT must be positive, got %s", c.Proxy.ChunkTimeout)
	}
	if c.Proxy.RequestTimeout <= 0 {
		return fmt.Errorf("PROXY_REQUEST_TIMEOUT must be positive, got %s", c.Proxy.RequestTimeout)
	}
	return nil
}

func (c *Config) validateUpstream() error {
	if c.Upstream.URL == "" {
		return fmt.Errorf("UPSTREAM_URL is required")
	}
	if err := validateHTTPURL(c.Upstream.URL, "UPSTREAM_URL"); err != nil {
		return err
	}
	if c.Upstream.APIKey == "" {
		return fmt.Errorf("UPSTREAM_API_KEY is required")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.Upstream.Timeout)
	}
	if c.Upstream.RateLimit < 0 {
		return fmt.Errorf("UPSTREAM_RATE_LIMIT must not be negative, got %f", c.Upstream.RateLimit)
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if !c.Catalog.InMemory && c.Catalog.Path == "" {
		return fmt.Errorf("CATALOG_PATH is required unless CATALOG_IN_MEMORY=true")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled", "":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks that a value parses as an absolute http(s) URL.
func validateHTTPURL(raw, name string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", name)
	}
	return nil
}
