// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

// Package cache holds the materialized view cache. Building a virtual
// view's candidate set means a full membership read plus fan-out
// hydration against a rate-limited upstream, so the sorted set is built
// once per (view, sort, filter) signature and every page request slices
// the cached set.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shelfgate/shelfgate/internal/metrics"
	"github.com/shelfgate/shelfgate/internal/models"
)

// Key identifies one materialized candidate set. Paging parameters are
// deliberately absent: all pages of a view share the same sorted set.
type Key struct {
	CollectionID string
	SortBy       string
	SortOrder    string
	Filter       string
}

// String renders the key for single-flight grouping. Fields are quoted
// so that a delimiter inside a collection id or sort value cannot make
// two distinct keys share one in-flight build.
func (k Key) String() string {
	return fmt.Sprintf("%q|%q|%q|%q", k.CollectionID, k.SortBy, k.SortOrder, k.Filter)
}

// Entry is one cached, sorted candidate set.
type Entry struct {
	Items   []models.Item
	BuiltAt time.Time
}

// Build is the output of one BuildFunc run. Degraded marks a set
// truncated by upstream failure or a request deadline: it is served to
// the callers that waited on the build but never stored, so the next
// request rebuilds against a possibly recovered upstream instead of
// freezing the truncated set for a full TTL.
type Build struct {
	Items    []models.Item
	Degraded bool
}

// BuildFunc materializes the full sorted candidate set for a key.
type BuildFunc func(ctx context.Context) (Build, error)

// ViewCache is a TTL cache with an at-most-one-concurrent-rebuild
// guarantee per key. Expiry is lazy on read; a janitor may call
// SweepExpired to reclaim memory for views nobody requests anymore.
type ViewCache struct {
	mu      sync.RWMutex
	entries map[Key]*Entry
	group   singleflight.Group
	ttl     time.Duration

	// now is swappable for TTL tests.
	now func() time.Time
}

// New creates a ViewCache with the given entry lifetime.
func New(ttl time.Duration) *ViewCache {
	return &ViewCache{
		entries: make(map[Key]*Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// GetOrBuild returns the cached entry for key, building it via build if
// absent or expired. Concurrent callers for the same key share a single
// build; all of them receive the same result or the same error. Failed
// and degraded builds are not cached, so the next call retries fresh.
func (c *ViewCache) GetOrBuild(ctx context.Context, key Key, build BuildFunc) (*Entry, error) {
	if entry := c.lookup(key); entry != nil {
		metrics.ViewCacheHits.Inc()
		return entry, nil
	}
	metrics.ViewCacheMisses.Inc()

	result, err, shared := c.group.Do(key.String(), func() (interface{}, error) {
		// A waiter queued behind a finished build sees the fresh entry
		// here without building again.
		if entry := c.lookup(key); entry != nil {
			return entry, nil
		}

		b, err := build(ctx)
		if err != nil {
			metrics.ViewCacheBuilds.WithLabelValues("error").Inc()
			return nil, err
		}
		if b.Degraded {
			metrics.ViewCacheBuilds.WithLabelValues("degraded").Inc()
			return &Entry{Items: b.Items, BuiltAt: c.now()}, nil
		}
		metrics.ViewCacheBuilds.WithLabelValues("ok").Inc()

		entry := &Entry{Items: b.Items, BuiltAt: c.now()}
		c.mu.Lock()
		c.entries[key] = entry
		metrics.ViewCacheEntries.Set(float64(len(c.entries)))
		c.mu.Unlock()

		return entry, nil
	})
	if shared {
		metrics.ViewCacheSharedBuilds.Inc()
	}
	if err != nil {
		return nil, err
	}

	return result.(*Entry), nil
}

// Invalidate drops every cached signature of the given collection. The
// membership refresh job calls this after recomputing a collection.
func (c *ViewCache) Invalidate(collectionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if key.CollectionID == collectionID {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		metrics.ViewCacheInvalidations.Add(float64(removed))
		metrics.ViewCacheEntries.Set(float64(len(c.entries)))
	}
}

// SweepExpired removes entries past their TTL and reports how many were
// dropped.
func (c *ViewCache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)
	removed := 0
	for key, entry := range c.entries {
		if entry.BuiltAt.Before(cutoff) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		metrics.ViewCacheEntries.Set(float64(len(c.entries)))
	}

	return removed
}

// Len returns the number of live entries, expired or not.
func (c *ViewCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ViewCache) lookup(key Key) *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().Sub(entry.BuiltAt) > c.ttl {
		return nil
	}
	return entry
}
