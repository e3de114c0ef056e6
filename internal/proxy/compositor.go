// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package proxy

import (
	"context"
	"fmt"

	"github.com/shelfgate/shelfgate/internal/catalog"
	"github.com/shelfgate/shelfgate/internal/config"
	"github.com/shelfgate/shelfgate/internal/logging"
	"github.com/shelfgate/shelfgate/internal/models"
	"github.com/shelfgate/shelfgate/internal/upstream"
	"github.com/shelfgate/shelfgate/internal/virtualid"
)

// Compositor builds merged top-level view lists and per-view candidate
// sets. Configuration is held by value: the flags are immutable for the
// process lifetime, so every call sees the same behavior.
type Compositor struct {
	upstream upstream.Client
	catalog  catalog.Reader
	cfg      config.ProxyConfig
}

// NewCompositor wires a Compositor to its upstream and catalog sources.
func NewCompositor(up upstream.Client, cat catalog.Reader, cfg config.ProxyConfig) *Compositor {
	return &Compositor{upstream: up, catalog: cat, cfg: cfg}
}

// ComposeTopLevelViews builds the merged view list. When virtualization
// is disabled the native list is returned untouched. Otherwise native
// views (filtered to the configured selection) and virtual views (one
// per enabled collection) are concatenated in the configured order.
//
// Either source may fail without failing the whole list; an error is
// returned only when nothing could be assembled.
func (c *Compositor) ComposeTopLevelViews(ctx context.Context) (*models.ViewsResult, error) {
	if !c.cfg.Enabled {
		views, err := c.upstream.GetViews(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch native views: %w", err)
		}
		return &models.ViewsResult{Items: views, TotalRecordCount: len(views)}, nil
	}

	var (
		native    []models.View
		nativeErr error
	)
	if c.cfg.MergeNativeLibraries {
		native, nativeErr = c.upstream.GetViews(ctx)
		if nativeErr != nil {
			logging.Ctx(ctx).Warn().Err(nativeErr).
				Msg("Native view fetch failed, serving virtual views only")
		}
		native = c.selectNative(native)
	}

	virtual, virtualErr := c.virtualViews(ctx)
	if virtualErr != nil {
		logging.Ctx(ctx).Warn().Err(virtualErr).
			Msg("Collection listing failed, serving native views only")
	}

	if virtualErr != nil && (nativeErr != nil || !c.cfg.MergeNativeLibraries) {
		if nativeErr != nil {
			return nil, fmt.Errorf("compose views: %w", nativeErr)
		}
		return nil, fmt.Errorf("compose views: %w", virtualErr)
	}

	var merged []models.View
	if c.cfg.NativeViewOrder == config.OrderBefore {
		merged = append(merged, virtual...)
		merged = append(merged, native...)
	} else {
		merged = append(merged, native...)
		merged = append(merged, virtual...)
	}
	merged = dedupeViews(merged)

	return &models.ViewsResult{Items: merged, TotalRecordCount: len(merged)}, nil
}

// ComposeViewMembers builds the candidate refs of one virtual view. The
// collection must exist and be enabled; otherwise the view does not
// exist from the client's perspective and ErrCollectionNotFound is
// returned. Members with no upstream presence are dropped entirely when
// placeholders are disabled.
func (c *Compositor) ComposeViewMembers(ctx context.Context, collectionID string) ([]ItemRef, error) {
	col, err := c.catalog.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if !col.Enabled {
		return nil, catalog.ErrCollectionNotFound
	}

	members, err := c.catalog.ListMembers(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("read membership of %s: %w", collectionID, err)
	}

	refs := make([]ItemRef, 0, len(members))
	for _, m := range members {
		if m.UpstreamID == "" && !c.cfg.ShowMissingPlaceholders {
			continue
		}
		refs = append(refs, ItemRef{UpstreamID: m.UpstreamID, Member: m})
	}

	return refs, nil
}

func (c *Compositor) virtualViews(ctx context.Context) ([]models.View, error) {
	collections, err := c.catalog.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	views := make([]models.View, 0, len(collections))
	for _, col := range collections {
		if !col.Enabled {
			continue
		}
		views = append(views, models.View{
			ID:             virtualid.Encode(virtualid.TagView, col.ID),
			Name:           col.Name,
			Type:           "CollectionFolder",
			CollectionType: models.CollectionTypeBoxset,
		})
	}

	return views, nil
}

// selectNative filters native views to the configured selection. An
// empty selection means all native views are included. Entries match by
// view ID or by display name.
func (c *Compositor) selectNative(views []models.View) []models.View {
	if len(c.cfg.NativeViewSelection) == 0 {
		return views
	}

	wanted := make(map[string]struct{}, len(c.cfg.NativeViewSelection))
	for _, s := range c.cfg.NativeViewSelection {
		wanted[s] = struct{}{}
	}

	selected := make([]models.View, 0, len(views))
	for _, v := range views {
		if _, ok := wanted[v.ID]; ok {
			selected = append(selected, v)
			continue
		}
		if _, ok := wanted[v.Name]; ok {
			selected = append(selected, v)
		}
	}

	return selected
}

func dedupeViews(views []models.View) []models.View {
	seen := make(map[string]struct{}, len(views))
	out := views[:0]
	for _, v := range views {
		if _, ok := seen[v.ID]; ok {
			continue
		}
		seen[v.ID] = struct{}{}
		out = append(out, v)
	}
	return out
}
