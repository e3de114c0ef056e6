// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shelfgate/shelfgate/internal/cache"
	"github.com/shelfgate/shelfgate/internal/catalog"
	"github.com/shelfgate/shelfgate/internal/config"
	"github.com/shelfgate/shelfgate/internal/logging"
	"github.com/shelfgate/shelfgate/internal/metrics"
	"github.com/shelfgate/shelfgate/internal/models"
	"github.com/shelfgate/shelfgate/internal/proxy"
	"github.com/shelfgate/shelfgate/internal/upstream"
	"github.com/shelfgate/shelfgate/internal/virtualid"
)

// CatalogStore is the catalog surface the handlers need: the read side
// for composition plus the write side for the admin API.
type CatalogStore interface {
	catalog.Reader
	UpsertCollection(ctx context.Context, col catalog.Collection) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	ReplaceMembers(ctx context.Context, collectionID string, members []catalog.Member) error
	DeleteCollection(ctx context.Context, id string) error
	MemberCount(ctx context.Context, collectionID string) (int, error)
}

// Handler carries the wired proxy core behind the HTTP surface.
type Handler struct {
	cfg        *config.Config
	upstream   upstream.Client
	store      CatalogStore
	compositor *proxy.Compositor
	hydrator   *proxy.Hydrator
	viewCache  *cache.ViewCache
}

// NewHandler wires the handler to the proxy core.
func NewHandler(cfg *config.Config, up upstream.Client, store CatalogStore,
	compositor *proxy.Compositor, hydrator *proxy.Hydrator, viewCache *cache.ViewCache,
) *Handler {
	return &Handler{
		cfg:        cfg,
		upstream:   up,
		store:      store,
		compositor: compositor,
		hydrator:   hydrator,
		viewCache:  viewCache,
	}
}

// Views serves GET /views: the merged top-level view list. With the
// proxy disabled the upstream response passes through untouched.
func (h *Handler) Views(w http.ResponseWriter, r *http.Request) {
	defer metrics.ObserveProxyRequest("views", time.Now())

	if !h.cfg.Proxy.Enabled {
		h.upstream.Forward(w, r, h.userPath("/Views"))
		metrics.ProxyRequests.WithLabelValues("views", "passthrough").Inc()
		return
	}

	result, err := h.compositor.ComposeTopLevelViews(r.Context())
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("View composition failed")
		metrics.ProxyRequests.WithLabelValues("views", "error").Inc()
		writeProtocolError(w, http.StatusBadGateway)
		return
	}

	metrics.ProxyRequests.WithLabelValues("views", "composed").Inc()
	writeProtocol(w, r, result)
}

// ViewItems serves GET /views/{viewID}/items. Native view ids pass
// through verbatim; virtual ids are served from the materialized cache.
func (h *Handler) ViewItems(w http.ResponseWriter, r *http.Request) {
	defer metrics.ObserveProxyRequest("view_items", time.Now())

	viewID := chi.URLParam(r, "viewID")

	token, virtual, err := virtualid.Decode(viewID)
	if err != nil {
		// A marked but corrupt token must never fall back to passthrough.
		metrics.ProxyRequests.WithLabelValues("view_items", "malformed").Inc()
		writeProtocolError(w, http.StatusNotFound)
		return
	}

	if !virtual || !h.cfg.Proxy.Enabled {
		if virtual {
			// Proxy disabled: virtual tokens have nothing to resolve to.
			writeProtocolError(w, http.StatusNotFound)
			return
		}
		h.forwardViewItems(w, r, viewID)
		metrics.ProxyRequests.WithLabelValues("view_items", "passthrough").Inc()
		return
	}

	if token.Tag != virtualid.TagView {
		metrics.ProxyRequests.WithLabelValues("view_items", "malformed").Inc()
		writeProtocolError(w, http.StatusNotFound)
		return
	}

	query := parseItemQuery(r.URL.Query())
	h.serveVirtualViewItems(w, r, token.SourceID, query)
}

func (h *Handler) serveVirtualViewItems(w http.ResponseWriter, r *http.Request, collectionID string, query models.ItemQuery) {
	ctx := r.Context()
	if h.cfg.Proxy.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Proxy.RequestTimeout)
		defer cancel()
	}

	key := cache.Key{
		CollectionID: collectionID,
		SortBy:       query.SortBy,
		SortOrder:    query.SortOrder,
		Filter:       query.Filter,
	}

	entry, err := h.viewCache.GetOrBuild(ctx, key, func(ctx context.Context) (cache.Build, error) {
		refs, err := h.compositor.ComposeViewMembers(ctx, collectionID)
		if err != nil {
			return cache.Build{}, err
		}
		res, err := h.hydrator.Hydrate(ctx, refs)
		if err != nil {
			return cache.Build{}, err
		}
		// A set truncated by chunk failures or by the request deadline
		// is still served to this request but must not outlive it.
		return cache.Build{
			Items:    proxy.Sort(res.Items, query.SortBy, query.SortOrder),
			Degraded: res.Degraded() || ctx.Err() != nil,
		}, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrCollectionNotFound):
			metrics.ProxyRequests.WithLabelValues("view_items", "not_found").Inc()
			writeProtocolError(w, http.StatusNotFound)
		default:
			// Membership read failures and exhausted upstreams end up here;
			// both mean nothing could be assembled for this view.
			logging.CtxErr(r.Context(), err).Str("collection_id", collectionID).
				Msg("Virtual view build failed")
			metrics.ProxyRequests.WithLabelValues("view_items", "error").Inc()
			writeProtocolError(w, http.StatusBadGateway)
		}
		return
	}

	page, total := proxy.Page(entry.Items, query.StartIndex, query.Limit)
	metrics.ProxyRequests.WithLabelValues("view_items", "composed").Inc()
	writeProtocol(w, r, models.ItemsResult{
		Items:            page,
		TotalRecordCount: total,
		StartIndex:       query.StartIndex,
	})
}

// forwardViewItems rewrites the inbound path onto the upstream item
// listing endpoint, carrying the view id as ParentId and leaving the
// rest of the query untouched.
func (h *Handler) forwardViewItems(w http.ResponseWriter, r *http.Request, viewID string) {
	q := r.URL.Query()
	q.Set("ParentId", viewID)
	r.URL.RawQuery = q.Encode()

	h.upstream.Forward(w, r, h.userPath("/Items"))
}

// Item serves GET /items/{itemID}. Native ids pass through; virtual
// item tokens synthesize a placeholder record from catalog metadata.
func (h *Handler) Item(w http.ResponseWriter, r *http.Request) {
	defer metrics.ObserveProxyRequest("item", time.Now())

	itemID := chi.URLParam(r, "itemID")

	token, virtual, err := virtualid.Decode(itemID)
	if err != nil {
		metrics.ProxyRequests.WithLabelValues("item", "malformed").Inc()
		writeProtocolError(w, http.StatusNotFound)
		return
	}

	if !virtual {
		h.upstream.Forward(w, r, h.userPath("/Items/"+itemID))
		metrics.ProxyRequests.WithLabelValues("item", "passthrough").Inc()
		return
	}

	if !h.cfg.Proxy.Enabled || token.Tag != virtualid.TagItem {
		metrics.ProxyRequests.WithLabelValues("item", "not_found").Inc()
		writeProtocolError(w, http.StatusNotFound)
		return
	}

	member, err := h.store.GetMember(r.Context(), token.SourceID)
	if err != nil {
		if errors.Is(err, catalog.ErrMemberNotFound) {
			metrics.ProxyRequests.WithLabelValues("item", "not_found").Inc()
			writeProtocolError(w, http.StatusNotFound)
			return
		}
		logging.CtxErr(r.Context(), err).Str("source_id", token.SourceID).
			Msg("Member lookup failed")
		metrics.ProxyRequests.WithLabelValues("item", "error").Inc()
		writeProtocolError(w, http.StatusBadGateway)
		return
	}

	metrics.ProxyRequests.WithLabelValues("item", "composed").Inc()
	writeProtocol(w, r, proxy.PlaceholderItem(*member))
}

func (h *Handler) userPath(suffix string) string {
	return "/Users/" + h.cfg.Upstream.UserID + suffix
}

func parseItemQuery(values url.Values) models.ItemQuery {
	startIndex, _ := strconv.Atoi(values.Get("StartIndex"))
	limit, _ := strconv.Atoi(values.Get("Limit"))

	return models.ItemQuery{
		StartIndex: startIndex,
		Limit:      limit,
		SortBy:     values.Get("SortBy"),
		SortOrder:  values.Get("SortOrder"),
		Filter:     values.Get("Filter"),
	}.Normalize()
}
