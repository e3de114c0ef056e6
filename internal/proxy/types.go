// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

// Package proxy implements the view-virtualization core: composing merged
// view lists, hydrating collection members from the upstream server, and
// sorting/paginating the materialized candidate sets.
package proxy

import (
	"github.com/shelfgate/shelfgate/internal/catalog"
	"github.com/shelfgate/shelfgate/internal/models"
	"github.com/shelfgate/shelfgate/internal/virtualid"
)

// ItemRef is one candidate of a virtual view before hydration. Refs with
// an upstream ID are fetched from the media server; the rest are
// placeholders synthesized from catalog metadata.
type ItemRef struct {
	UpstreamID string
	Member     catalog.Member
}

// IsPlaceholder reports whether the ref has no upstream presence.
func (r ItemRef) IsPlaceholder() bool {
	return r.UpstreamID == ""
}

// PlaceholderItem synthesizes a displayable record for a member with no
// upstream presence. The item carries a virtual token as its ID and no
// playback-capable fields.
func PlaceholderItem(m catalog.Member) models.Item {
	sortName := m.SortName
	if sortName == "" {
		sortName = m.Name
	}
	mediaType := m.MediaType
	if mediaType == "" {
		mediaType = "Movie"
	}

	return models.Item{
		ID:              virtualid.Encode(virtualid.TagItem, m.SourceID),
		Name:            m.Name,
		SortName:        sortName,
		Type:            mediaType,
		ParentID:        virtualid.Encode(virtualid.TagView, m.CollectionID),
		Overview:        m.Overview,
		ProductionYear:  m.ProductionYear,
		CommunityRating: m.CommunityRating,
		LocationType:    models.LocationTypeVirtual,
	}
}
