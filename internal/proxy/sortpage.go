// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package proxy

import (
	"sort"
	"strings"

	"github.com/shelfgate/shelfgate/internal/models"
)

// Sort returns a sorted copy of the candidate set. Comparators are total:
// after the primary key, ties break on item ID ascending regardless of
// direction, so paging over an unchanged candidate set is stable.
//
// Collation is plain case-folded byte order, not the upstream server's
// locale-aware sort. TODO: accept a language tag and use x/text collation
// once per-user locale is plumbed through the request context.
func Sort(candidates []models.Item, sortBy, sortOrder string) []models.Item {
	sorted := make([]models.Item, len(candidates))
	copy(sorted, candidates)

	desc := sortOrder == models.SortOrderDescending

	sort.Slice(sorted, func(i, j int) bool {
		cmp := compareItems(&sorted[i], &sorted[j], sortBy)
		if desc {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp < 0
		}
		return sorted[i].ID < sorted[j].ID
	})

	return sorted
}

// Page slices one window out of an already-sorted candidate set. The
// returned total is always the full candidate count, independent of the
// window. A limit of zero means "to the end".
func Page(sorted []models.Item, startIndex, limit int) (page []models.Item, total int) {
	total = len(sorted)

	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex >= total {
		return []models.Item{}, total
	}

	end := total
	if limit > 0 && startIndex+limit < total {
		end = startIndex + limit
	}

	page = make([]models.Item, end-startIndex)
	copy(page, sorted[startIndex:end])
	return page, total
}

// Apply sorts and slices in one step, for callers that do not keep the
// sorted set around.
func Apply(candidates []models.Item, query models.ItemQuery) (page []models.Item, total int) {
	query = query.Normalize()
	sorted := Sort(candidates, query.SortBy, query.SortOrder)
	return Page(sorted, query.StartIndex, query.Limit)
}

func compareItems(a, b *models.Item, sortBy string) int {
	switch sortBy {
	case models.SortByDateCreated:
		switch {
		case a.DateCreated.Before(b.DateCreated):
			return -1
		case a.DateCreated.After(b.DateCreated):
			return 1
		}
		return 0
	case models.SortByCommunityRating:
		switch {
		case a.CommunityRating < b.CommunityRating:
			return -1
		case a.CommunityRating > b.CommunityRating:
			return 1
		}
		return 0
	case models.SortByProductionYear:
		return a.ProductionYear - b.ProductionYear
	default:
		return strings.Compare(sortKeyName(a), sortKeyName(b))
	}
}

func sortKeyName(i *models.Item) string {
	name := i.SortName
	if name == "" {
		name = i.Name
	}
	return strings.ToLower(name)
}
