// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Upstream.URL = "http://jellyfin:8096"
	cfg.Upstream.APIKey = "test-key"
	return cfg
}

func TestDefaultsAreValidWithUpstream(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with upstream should validate: %v", err)
	}
	if cfg.Proxy.HydrationWidth != 8 {
		t.Errorf("default hydration width = %d, want 8", cfg.Proxy.HydrationWidth)
	}
	if cfg.Proxy.ChunkTimeout != 5*time.Second {
		t.Errorf("default chunk timeout = %s, want 5s", cfg.Proxy.ChunkTimeout)
	}
	if cfg.Proxy.NativeViewOrder != OrderBefore {
		t.Errorf("default native view order = %q, want %q", cfg.Proxy.NativeViewOrder, OrderBefore)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing upstream url", func(c *Config) { c.Upstream.URL = "" }},
		{"non-http upstream url", func(c *Config) { c.Upstream.URL = "ftp://x" }},
		{"missing api key", func(c *Config) { c.Upstream.APIKey = "" }},
		{"bad view order", func(c *Config) { c.Proxy.NativeViewOrder = "sideways" }},
		{"zero cache ttl", func(c *Config) { c.Proxy.CacheTTL = 0 }},
		{"zero hydration width", func(c *Config) { c.Proxy.HydrationWidth = 0 }},
		{"zero chunk size", func(c *Config) { c.Proxy.ChunkSize = 0 }},
		{"negative rate limit", func(c *Config) { c.Upstream.RateLimit = -1 }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"no catalog path", func(c *Config) { c.Catalog.Path = ""; c.Catalog.InMemory = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestProxyDisabledSkipsProxyValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Proxy.Enabled = false
	cfg.Proxy.CacheTTL = 0 // would fail if proxy validation ran
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled proxy should skip proxy checks: %v", err)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"PROXY_ENABLED", "proxy.enabled"},
		{"PROXY_SHOW_MISSING_PLACEHOLDERS", "proxy.show_missing_placeholders"},
		{"PROXY_NATIVE_VIEW_ORDER", "proxy.native_view_order"},
		{"UPSTREAM_API_KEY", "upstream.api_key"},
		{"CATALOG_PATH", "catalog.path"},
		{"SERVER_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestLoadLayersEnvOverFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlBody := `
upstream:
  url: http://jellyfin:8096
  api_key: from-file
proxy:
  cache_ttl: 2m
  native_view_order: after
catalog:
  in_memory: true
`
	if err := os.WriteFile(configPath, []byte(yamlBody), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, configPath)
	t.Setenv("UPSTREAM_API_KEY", "from-env")
	t.Setenv("PROXY_HYDRATION_WIDTH", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Upstream.APIKey != "from-env" {
		t.Errorf("env should override file: api key = %q", cfg.Upstream.APIKey)
	}
	if cfg.Proxy.CacheTTL != 2*time.Minute {
		t.Errorf("file should override default: cache ttl = %s", cfg.Proxy.CacheTTL)
	}
	if cfg.Proxy.NativeViewOrder != OrderAfter {
		t.Errorf("file should set view order, got %q", cfg.Proxy.NativeViewOrder)
	}
	if cfg.Proxy.HydrationWidth != 4 {
		t.Errorf("env should set hydration width, got %d", cfg.Proxy.HydrationWidth)
	}
	if cfg.Proxy.ChunkSize != 50 {
		t.Errorf("untouched default changed: chunk size = %d", cfg.Proxy.ChunkSize)
	}
}

func TestNativeViewSelectionFromEnvCSV(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlBody := `
upstream:
  url: http://jellyfin:8096
  api_key: k
catalog:
  in_memory: true
`
	if err := os.WriteFile(configPath, []byte(yamlBody), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, configPath)
	t.Setenv("PROXY_NATIVE_VIEW_SELECTION", "lib1, lib2 ,lib3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	want := []string{"lib1", "lib2", "lib3"}
	if len(cfg.Proxy.NativeViewSelection) != len(want) {
		t.Fatalf("selection = %v, want %v", cfg.Proxy.NativeViewSelection, want)
	}
	for i, v := range want {
		if cfg.Proxy.NativeViewSelection[i] != v {
			t.Errorf("selection[%d] = %q, want %q", i, cfg.Proxy.NativeViewSelection[i], v)
		}
	}
}
