// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

/*
client.go - Upstream media server client interface

The proxy core only ever talks to the upstream media server through the
Client interface defined here. JellyfinClient is the concrete adapter for
Jellyfin/Emby-compatible servers; CircuitBreakerClient wraps any Client with
failure isolation. Tests substitute counting stubs.
*/

// Package upstream provides the client for the real media server sitting
// behind the proxy.
package upstream

import (
	"context"
	"errors"
	"net/http"

	"github.com/shelfgate/shelfgate/internal/models"
)

// ErrUnavailable indicates the upstream media server could not produce a
// usable response (transport failure, timeout, or a 5xx status). Hydration
// treats it as a per-chunk degradation; the router surfaces it only when a
// request would otherwise return nothing at all.
var ErrUnavailable = errors.New("upstream: server unavailable")

// Client is the upstream media server API consumed by the proxy core.
type Client interface {
	// Ping verifies connectivity. Used by the readiness probe.
	Ping(ctx context.Context) error

	// GetViews returns the native top-level libraries.
	GetViews(ctx context.Context) ([]models.View, error)

	// GetItemsByIDs fetches full item records for a batch of native ids.
	// Callers are responsible for keeping batches within MaxBatchSize.
	GetItemsByIDs(ctx context.Context, ids []string) ([]models.Item, error)

	// GetViewItems lists a native view's members with upstream-side
	// sorting and paging. Used when a native view request cannot be
	// forwarded verbatim.
	GetViewItems(ctx context.Context, viewID string, query models.ItemQuery) (*models.ItemsResult, error)

	// Forward streams the inbound request to the given upstream endpoint
	// and relays the response byte-for-byte, preserving protocol headers.
	// This is the passthrough path for native-only targets.
	Forward(w http.ResponseWriter, r *http.Request, endpoint string)
}

// MaxBatchSize is the largest id batch a single GetItemsByIDs call should
// carry. Jellyfin and Emby accept comma-separated Ids lists but respond
// poorly past a few dozen entries, so the hydrator chunks against this.
const MaxBatchSize = 50
