// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package services

import (
	"context"
	"time"

	"github.com/shelfgate/shelfgate/internal/logging"
)

// Sweeper is the cache surface the janitor drives. Satisfied by
// *cache.ViewCache.
type Sweeper interface {
	SweepExpired() int
	Len() int
}

// CacheJanitorService periodically sweeps expired view cache entries.
// The cache expires lazily on read, so this exists purely to reclaim
// memory held by views nobody requests anymore.
type CacheJanitorService struct {
	cache    Sweeper
	interval time.Duration
}

// NewCacheJanitorService creates the janitor. The interval defaults to
// one minute.
func NewCacheJanitorService(cache Sweeper, interval time.Duration) *CacheJanitorService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CacheJanitorService{cache: cache, interval: interval}
}

// Serve implements suture.Service.
func (j *CacheJanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := j.cache.SweepExpired(); removed > 0 {
				logging.Debug().
					Int("removed", removed).
					Int("remaining", j.cache.Len()).
					Msg("Swept expired view cache entries")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (j *CacheJanitorService) String() string {
	return "cache-janitor"
}
