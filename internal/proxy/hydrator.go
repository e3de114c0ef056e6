// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package proxy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shelfgate/shelfgate/internal/config"
	"github.com/shelfgate/shelfgate/internal/logging"
	"github.com/shelfgate/shelfgate/internal/metrics"
	"github.com/shelfgate/shelfgate/internal/models"
	"github.com/shelfgate/shelfgate/internal/upstream"
)

// Hydrator resolves item refs into displayable records. Native refs are
// fetched from the upstream server in bounded-width chunked batches;
// placeholder refs are synthesized locally without any upstream call.
//
// The worker width is shared per Hydrator instance, so total concurrent
// upstream load stays capped no matter how many client requests fan out
// into hydrations at once.
type Hydrator struct {
	client       upstream.Client
	width        int
	chunkSize    int
	chunkTimeout time.Duration
}

// NewHydrator builds a Hydrator from the proxy configuration.
func NewHydrator(client upstream.Client, cfg *config.ProxyConfig) *Hydrator {
	width := cfg.HydrationWidth
	if width <= 0 {
		width = 8
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 || chunkSize > upstream.MaxBatchSize {
		chunkSize = upstream.MaxBatchSize
	}
	chunkTimeout := cfg.ChunkTimeout
	if chunkTimeout <= 0 {
		chunkTimeout = 5 * time.Second
	}

	return &Hydrator{
		client:       client,
		width:        width,
		chunkSize:    chunkSize,
		chunkTimeout: chunkTimeout,
	}
}

// HydrationResult is one hydration pass's output. FailedChunks counts
// upstream batches whose items were dropped; callers check it before
// treating the set as authoritative.
type HydrationResult struct {
	Items        []models.Item
	FailedChunks int
}

// Degraded reports whether upstream failures truncated the item set.
func (r HydrationResult) Degraded() bool { return r.FailedChunks > 0 }

// Hydrate resolves refs into items. Chunk failures are absorbed: the
// failed chunk's items are dropped from the result, the remaining items
// are still returned, and FailedChunks records the damage. Output order
// is unspecified.
//
// An error is returned only when upstream failures left nothing at all
// to show, in which case it wraps upstream.ErrUnavailable.
func (h *Hydrator) Hydrate(ctx context.Context, refs []ItemRef) (HydrationResult, error) {
	var native []string
	items := make([]models.Item, 0, len(refs))

	for _, ref := range refs {
		if ref.IsPlaceholder() {
			items = append(items, PlaceholderItem(ref.Member))
		} else {
			native = append(native, ref.UpstreamID)
		}
	}

	if len(native) == 0 {
		return HydrationResult{Items: items}, nil
	}

	var (
		mu           sync.Mutex
		failedChunks int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.width)

	for start := 0; start < len(native); start += h.chunkSize {
		end := start + h.chunkSize
		if end > len(native) {
			end = len(native)
		}
		chunk := native[start:end]

		g.Go(func() error {
			chunkCtx, cancel := context.WithTimeout(gctx, h.chunkTimeout)
			defer cancel()

			fetched, err := h.client.GetItemsByIDs(chunkCtx, chunk)
			if err != nil {
				result := "error"
				if errors.Is(err, context.DeadlineExceeded) {
					result = "timeout"
				}
				metrics.HydrationChunks.WithLabelValues(result).Inc()
				metrics.HydrationItemsDropped.Add(float64(len(chunk)))
				logging.Ctx(gctx).Warn().
					Err(err).
					Int("chunk_size", len(chunk)).
					Msg("Hydration chunk failed, dropping its items")

				mu.Lock()
				failedChunks++
				mu.Unlock()
				return nil
			}

			metrics.HydrationChunks.WithLabelValues("ok").Inc()
			if len(fetched) < len(chunk) {
				// Upstream silently omits ids it no longer knows.
				metrics.HydrationItemsDropped.Add(float64(len(chunk) - len(fetched)))
			}

			mu.Lock()
			items = append(items, fetched...)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait() // chunk errors are absorbed above

	if len(items) == 0 && failedChunks > 0 {
		return HydrationResult{}, fmt.Errorf("hydration produced no items (%d chunks failed): %w",
			failedChunks, upstream.ErrUnavailable)
	}

	return HydrationResult{Items: items, FailedChunks: failedChunks}, nil
}
