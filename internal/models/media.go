// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

// Package models provides the wire-level data models shared by the proxy
// core, the upstream client, and the HTTP handlers.
//
// Field names and JSON casing follow the Jellyfin/Emby item schema
// (PascalCase keys, "Id" spelling) so that synthesized responses are
// indistinguishable from native ones to a protocol-compatible client.
package models

import "time"

// View is a library as presented to clients: either a native library
// relayed from the upstream server or a virtual library synthesized from a
// collection.
type View struct {
	ID             string `json:"Id"`
	Name           string `json:"Name"`
	Type           string `json:"Type"`
	CollectionType string `json:"CollectionType,omitempty"`
}

// CollectionTypeBoxset is the collection type virtual views advertise.
// Clients render boxsets as browsable folders without assuming any
// library-management capabilities the proxy cannot provide.
const CollectionTypeBoxset = "boxsets"

// LocationTypeVirtual marks items with no playable upstream presence.
// It mirrors the upstream protocol's own value for non-physical entries, so
// stock clients already know to suppress playback affordances.
const LocationTypeVirtual = "Virtual"

// Item is a displayable media record. For native items every field comes
// from the upstream server; for placeholders the record is synthesized from
// locally cached catalog metadata and LocationType is "Virtual".
type Item struct {
	ID              string    `json:"Id"`
	Name            string    `json:"Name"`
	SortName        string    `json:"SortName,omitempty"`
	Type            string    `json:"Type,omitempty"`
	ParentID        string    `json:"ParentId,omitempty"`
	Overview        string    `json:"Overview,omitempty"`
	DateCreated     time.Time `json:"DateCreated"`
	ProductionYear  int       `json:"ProductionYear,omitempty"`
	CommunityRating float64   `json:"CommunityRating,omitempty"`
	RuntimeTicks    int64     `json:"RunTimeTicks,omitempty"`
	LocationType    string    `json:"LocationType,omitempty"`

	// ProviderIDs carries external catalog identifiers (Imdb, Tmdb, ...).
	ProviderIDs map[string]string `json:"ProviderIds,omitempty"`
}

// IsPlaceholder reports whether the item is a synthesized, non-playable
// placeholder rather than a hydrated upstream record.
func (i *Item) IsPlaceholder() bool {
	return i.LocationType == LocationTypeVirtual
}

// ViewsResult is the top-level view list response.
type ViewsResult struct {
	Items            []View `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

// ItemsResult is a paginated item list response.
type ItemsResult struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
	StartIndex       int    `json:"StartIndex"`
}

// Sort field names recognized by the proxy. These mirror the small set of
// SortBy values media clients commonly send.
const (
	SortByDateCreated     = "DateCreated"
	SortBySortName        = "SortName"
	SortByCommunityRating = "CommunityRating"
	SortByProductionYear  = "ProductionYear"
)

// Sort orders.
const (
	SortOrderAscending  = "Ascending"
	SortOrderDescending = "Descending"
)

// ItemQuery captures the query parameters of an item list request in
// normalized form. It is the basis of cache key derivation, so everything
// that affects the materialized candidate set or its order must live here.
type ItemQuery struct {
	StartIndex int
	Limit      int
	SortBy     string
	SortOrder  string
	Filter     string
}

// Normalize fills defaults and canonicalizes free-form values so that
// equivalent client requests produce identical queries (and cache keys).
func (q ItemQuery) Normalize() ItemQuery {
	if q.SortBy == "" {
		q.SortBy = SortBySortName
	}
	if q.SortOrder != SortOrderDescending {
		q.SortOrder = SortOrderAscending
	}
	if q.StartIndex < 0 {
		q.StartIndex = 0
	}
	if q.Limit < 0 {
		q.Limit = 0
	}
	// Every Filter value clients send today names per-user playback
	// state (favorites, played flags) that only the upstream server
	// holds, so none can narrow a virtual set locally. Dropping them
	// before cache keying keeps distinct unsupported filters sharing
	// one materialization instead of each hydrating its own copy.
	q.Filter = ""
	return q
}
