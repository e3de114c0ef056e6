// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/shelfgate/shelfgate/internal/logging"
	"github.com/shelfgate/shelfgate/internal/upstream"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	upstream upstream.Client
}

// NewHealthHandler wires the health probes to the upstream client.
func NewHealthHandler(up upstream.Client) *HealthHandler {
	return &HealthHandler{upstream: up}
}

// Live serves GET /health/live. The process is alive if it can answer.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// Ready serves GET /health/ready. Readiness requires a reachable
// upstream; virtual-only operation is possible but clients would see a
// library with every native item missing, so we report degraded.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.upstream.Ping(ctx); err != nil {
		logging.CtxErr(r.Context(), err).Msg("Readiness probe: upstream unreachable")
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"upstream media server unreachable", nil)
		return
	}

	writeSuccess(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
