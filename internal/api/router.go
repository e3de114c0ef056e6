// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shelfgate/shelfgate/internal/middleware"
)

// Router assembles the full HTTP surface.
type Router struct {
	handler *Handler
	admin   *AdminHandler
	health  *HealthHandler
	mw      *ChiMiddleware
}

// NewRouter creates a Router from the wired handlers.
func NewRouter(handler *Handler, admin *AdminHandler, health *HealthHandler, mw *ChiMiddleware) *Router {
	return &Router{handler: handler, admin: admin, health: health, mw: mw}
}

// Setup configures all routes on a Chi router.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.mw.CORS())

	// Media endpoints, the protocol surface clients hit. Rate limited
	// generously: paging UIs burst dozens of requests per screen.
	r.Group(func(r chi.Router) {
		r.Use(router.mw.RateLimit())
		r.Use(middleware.PrometheusMetrics)

		r.Get("/views", router.handler.Views)
		r.Get("/views/{viewID}/items", router.handler.ViewItems)
		r.Get("/items/{itemID}", router.handler.Item)
	})

	// Admin ingestion API for the external rule engine.
	r.Route("/admin/collections", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		r.Get("/", router.admin.ListCollections)
		r.Put("/{collectionID}", router.admin.UpsertCollection)
		r.Delete("/{collectionID}", router.admin.DeleteCollection)
		r.Put("/{collectionID}/members", router.admin.ReplaceMembers)
		r.Post("/{collectionID}/invalidate", router.admin.Invalidate)
	})

	// Health and observability.
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", router.health.Live)
		r.Get("/ready", router.health.Ready)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
