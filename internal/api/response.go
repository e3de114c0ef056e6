// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

// Package api provides the HTTP surface of Shelfgate: the
// protocol-compatible media endpoints, the admin API, and health/metrics.
//
// Media endpoints emit the upstream protocol's own wire shapes so that
// stock clients cannot tell proxied responses from native ones. The admin
// and health endpoints use the standardized APIResponse wrapper instead.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/shelfgate/shelfgate/internal/logging"
	"github.com/shelfgate/shelfgate/internal/middleware"
)

// APIResponse is the response wrapper for admin and health endpoints.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError carries error details for admin and health endpoints.
type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Error codes for admin/health responses.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.CtxErr(r.Context(), err).Msg("Failed to encode response")
	}
}

// writeSuccess writes a wrapped admin/health success response.
func writeSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSON(w, r, status, APIResponse{Success: true, Data: data})
}

// writeError writes a wrapped admin/health error response.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	writeJSON(w, r, status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: middleware.GetRequestID(r.Context()),
		},
	})
}

// writeProtocol writes an upstream-protocol payload without any wrapper.
func writeProtocol(w http.ResponseWriter, r *http.Request, payload interface{}) {
	writeJSON(w, r, http.StatusOK, payload)
}

// writeProtocolError answers a media endpoint with a bare status code,
// matching how the upstream server reports failures to its clients.
func writeProtocolError(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}
