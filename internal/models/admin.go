// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package models

// CollectionUpsertRequest creates or replaces a collection definition.
// The external rule engine calls this when a collection is configured.
type CollectionUpsertRequest struct {
	ID      string `json:"id" validate:"required,max=128"`
	Name    string `json:"name" validate:"required,max=256"`
	Enabled bool   `json:"enabled"`
}

// MemberUpsert is one member row in a membership snapshot.
type MemberUpsert struct {
	SourceID   string `json:"source_id" validate:"required,max=256"`
	UpstreamID string `json:"upstream_id,omitempty" validate:"max=256"`

	// Display metadata cached locally so placeholders can be rendered
	// without any upstream presence.
	Name            string  `json:"name" validate:"required,max=512"`
	SortName        string  `json:"sort_name,omitempty" validate:"max=512"`
	MediaType       string  `json:"media_type,omitempty" validate:"max=64"`
	Overview        string  `json:"overview,omitempty"`
	ProductionYear  int     `json:"production_year,omitempty" validate:"gte=0,lte=3000"`
	CommunityRating float64 `json:"community_rating,omitempty" validate:"gte=0,lte=10"`
}

// MembershipReplaceRequest replaces a collection's entire membership
// snapshot. The refresh job sends the full ordered list on every run; the
// proxy never computes membership itself.
type MembershipReplaceRequest struct {
	Members []MemberUpsert `json:"members" validate:"dive"`
}

// CollectionStatus is the admin-facing view of a stored collection.
type CollectionStatus struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	MemberCount int    `json:"member_count"`
	ViewID      string `json:"view_id"`
}
