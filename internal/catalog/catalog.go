// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

// Package catalog stores collection definitions and their resolved
// memberships. Collections are the source material for virtual views:
// each enabled collection surfaces as one synthetic library.
package catalog

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCollectionNotFound is returned when a collection ID does not exist.
	ErrCollectionNotFound = errors.New("catalog: collection not found")

	// ErrMemberNotFound is returned when a member source ID does not exist.
	ErrMemberNotFound = errors.New("catalog: member not found")
)

// Collection is a rule-defined grouping of media items. Only enabled
// collections are surfaced as virtual views.
type Collection struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member is one resolved entry of a collection. UpstreamID links the
// member to a real item on the media server; when empty the member has
// no upstream match and can only be shown as a placeholder.
type Member struct {
	SourceID        string  `json:"source_id"`
	CollectionID    string  `json:"collection_id"`
	UpstreamID      string  `json:"upstream_id,omitempty"`
	Name            string  `json:"name"`
	SortName        string  `json:"sort_name,omitempty"`
	MediaType       string  `json:"media_type,omitempty"`
	Overview        string  `json:"overview,omitempty"`
	ProductionYear  int     `json:"production_year,omitempty"`
	CommunityRating float64 `json:"community_rating,omitempty"`
}

// Reader is the read surface the proxy layer depends on. The badger
// store implements it; tests substitute fixtures.
type Reader interface {
	// ListCollections returns all collections, enabled or not.
	ListCollections(ctx context.Context) ([]Collection, error)

	// GetCollection returns one collection by ID.
	GetCollection(ctx context.Context, id string) (*Collection, error)

	// ListMembers returns the membership of a collection in stored order.
	ListMembers(ctx context.Context, collectionID string) ([]Member, error)

	// GetMember looks up a member by its source ID across all collections.
	GetMember(ctx context.Context, sourceID string) (*Member, error)
}
