// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/shelfgate/shelfgate/internal/cache"
	"github.com/shelfgate/shelfgate/internal/catalog"
	"github.com/shelfgate/shelfgate/internal/logging"
	"github.com/shelfgate/shelfgate/internal/models"
	"github.com/shelfgate/shelfgate/internal/virtualid"
)

// AdminHandler serves the ingestion API the external rule engine talks
// to: collection definitions and membership snapshots. Authentication
// for this surface is expected to be terminated in front of the proxy.
type AdminHandler struct {
	store     CatalogStore
	viewCache *cache.ViewCache
	validate  *validator.Validate
}

// NewAdminHandler wires the admin surface to the catalog store and the
// view cache it must invalidate on membership changes.
func NewAdminHandler(store CatalogStore, viewCache *cache.ViewCache) *AdminHandler {
	return &AdminHandler{
		store:     store,
		viewCache: viewCache,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ListCollections serves GET /admin/collections.
func (h *AdminHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := h.store.ListCollections(r.Context())
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("Collection listing failed")
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to list collections", nil)
		return
	}

	statuses := make([]models.CollectionStatus, 0, len(collections))
	for _, col := range collections {
		count, err := h.store.MemberCount(r.Context(), col.ID)
		if err != nil {
			logging.CtxErr(r.Context(), err).Str("collection_id", col.ID).Msg("Member count failed")
		}
		statuses = append(statuses, models.CollectionStatus{
			ID:          col.ID,
			Name:        col.Name,
			Enabled:     col.Enabled,
			MemberCount: count,
			ViewID:      virtualid.Encode(virtualid.TagView, col.ID),
		})
	}

	writeSuccess(w, r, http.StatusOK, statuses)
}

// UpsertCollection serves PUT /admin/collections/{collectionID}.
func (h *AdminHandler) UpsertCollection(w http.ResponseWriter, r *http.Request) {
	var req models.CollectionUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", nil)
		return
	}
	req.ID = chi.URLParam(r, "collectionID")

	if err := h.validate.Struct(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "validation failed", validationDetails(err))
		return
	}

	col := catalog.Collection{ID: req.ID, Name: req.Name, Enabled: req.Enabled}
	if err := h.store.UpsertCollection(r.Context(), col); err != nil {
		logging.CtxErr(r.Context(), err).Str("collection_id", req.ID).Msg("Collection upsert failed")
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to store collection", nil)
		return
	}

	// Enablement changes alter the composed view list and any cached
	// signature of this collection.
	h.viewCache.Invalidate(req.ID)

	writeSuccess(w, r, http.StatusOK, models.CollectionStatus{
		ID:      req.ID,
		Name:    req.Name,
		Enabled: req.Enabled,
		ViewID:  virtualid.Encode(virtualid.TagView, req.ID),
	})
}

// DeleteCollection serves DELETE /admin/collections/{collectionID}.
func (h *AdminHandler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionID")

	if err := h.store.DeleteCollection(r.Context(), collectionID); err != nil {
		logging.CtxErr(r.Context(), err).Str("collection_id", collectionID).Msg("Collection delete failed")
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to delete collection", nil)
		return
	}

	h.viewCache.Invalidate(collectionID)
	writeSuccess(w, r, http.StatusOK, nil)
}

// ReplaceMembers serves PUT /admin/collections/{collectionID}/members:
// the membership refresh job posts the full snapshot here on every run.
func (h *AdminHandler) ReplaceMembers(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionID")

	var req models.MembershipReplaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "validation failed", validationDetails(err))
		return
	}

	members := make([]catalog.Member, 0, len(req.Members))
	for _, m := range req.Members {
		members = append(members, catalog.Member{
			SourceID:        m.SourceID,
			CollectionID:    collectionID,
			UpstreamID:      m.UpstreamID,
			Name:            m.Name,
			SortName:        m.SortName,
			MediaType:       m.MediaType,
			Overview:        m.Overview,
			ProductionYear:  m.ProductionYear,
			CommunityRating: m.CommunityRating,
		})
	}

	if err := h.store.ReplaceMembers(r.Context(), collectionID, members); err != nil {
		if errors.Is(err, catalog.ErrCollectionNotFound) {
			writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "collection not found", nil)
			return
		}
		logging.CtxErr(r.Context(), err).Str("collection_id", collectionID).Msg("Membership replace failed")
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to replace members", nil)
		return
	}

	h.viewCache.Invalidate(collectionID)
	logging.Ctx(r.Context()).Info().
		Str("collection_id", collectionID).
		Int("members", len(members)).
		Msg("Membership snapshot replaced")

	writeSuccess(w, r, http.StatusOK, map[string]int{"members": len(members)})
}

// Invalidate serves POST /admin/collections/{collectionID}/invalidate,
// for refresh jobs that change membership out of band.
func (h *AdminHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionID")
	h.viewCache.Invalidate(collectionID)
	writeSuccess(w, r, http.StatusOK, nil)
}

func validationDetails(err error) interface{} {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	details := make([]string, 0, len(verrs))
	for _, ve := range verrs {
		details = append(details, ve.Namespace()+": failed "+ve.Tag())
	}
	return details
}
