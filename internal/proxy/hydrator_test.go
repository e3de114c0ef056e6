// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package proxy

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shelfgate/shelfgate/internal/catalog"
	"github.com/shelfgate/shelfgate/internal/config"
	"github.com/shelfgate/shelfgate/internal/models"
	"github.com/shelfgate/shelfgate/internal/upstream"
)

// stubUpstream is a scriptable upstream.Client recording batch calls.
type stubUpstream struct {
	mu      sync.Mutex
	batches [][]string
	calls   atomic.Int64

	views    []models.View
	viewsErr error

	// failIDs makes any batch containing one of these ids fail.
	failIDs map[string]bool
	itemErr error

	// delay stalls GetItemsByIDs, for timeout tests.
	delay time.Duration
}

func (s *stubUpstream) Ping(ctx context.Context) error { return nil }

func (s *stubUpstream) GetViews(ctx context.Context) ([]models.View, error) {
	return s.views, s.viewsErr
}

func (s *stubUpstream) GetItemsByIDs(ctx context.Context, ids []string) ([]models.Item, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.batches = append(s.batches, ids)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	for _, id := range ids {
		if s.failIDs[id] {
			err := s.itemErr
			if err == nil {
				err = errors.New("batch failed")
			}
			return nil, err
		}
	}

	items := make([]models.Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, models.Item{ID: id, Name: "Item " + id})
	}
	return items, nil
}

func (s *stubUpstream) GetViewItems(ctx context.Context, viewID string, query models.ItemQuery) (*models.ItemsResult, error) {
	return &models.ItemsResult{}, nil
}

func (s *stubUpstream) Forward(w http.ResponseWriter, r *http.Request, endpoint string) {}

func testProxyConfig() *config.ProxyConfig {
	return &config.ProxyConfig{
		Enabled:                 true,
		MergeNativeLibraries:    true,
		ShowMissingPlaceholders: true,
		HydrationWidth:          4,
		ChunkSize:               2,
		ChunkTimeout:            time.Second,
	}
}

func nativeRef(upstreamID string) ItemRef {
	return ItemRef{UpstreamID: upstreamID, Member: catalog.Member{SourceID: "src-" + upstreamID}}
}

func TestHydrateChunksBatches(t *testing.T) {
	stub := &stubUpstream{}
	h := NewHydrator(stub, testProxyConfig())

	refs := []ItemRef{nativeRef("u1"), nativeRef("u2"), nativeRef("u3"), nativeRef("u4"), nativeRef("u5")}
	res, err := h.Hydrate(context.Background(), refs)
	if err != nil {
		t.Fatalf("Hydrate failed: %v", err)
	}
	if len(res.Items) != 5 {
		t.Errorf("got %d items, want 5", len(res.Items))
	}
	if res.Degraded() {
		t.Error("clean hydration reported as degraded")
	}

	// 5 ids with chunk size 2 means 3 batches.
	if got := stub.calls.Load(); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}
	for _, batch := range stub.batches {
		if len(batch) > 2 {
			t.Errorf("batch exceeds chunk size: %v", batch)
		}
	}
}

func TestHydrateSynthesizesPlaceholders(t *testing.T) {
	stub := &stubUpstream{}
	h := NewHydrator(stub, testProxyConfig())

	refs := []ItemRef{
		nativeRef("u1"),
		{Member: catalog.Member{SourceID: "m2", CollectionID: "col1", Name: "Missing One", ProductionYear: 1999}},
	}
	res, err := h.Hydrate(context.Background(), refs)
	if err != nil {
		t.Fatalf("Hydrate failed: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(res.Items))
	}

	var placeholder *models.Item
	for i := range res.Items {
		if res.Items[i].IsPlaceholder() {
			placeholder = &res.Items[i]
		}
	}
	if placeholder == nil {
		t.Fatal("no placeholder in result")
	}
	if placeholder.Name != "Missing One" || placeholder.ProductionYear != 1999 {
		t.Errorf("placeholder metadata not carried over: %+v", placeholder)
	}
	if placeholder.ID == "m2" {
		t.Error("placeholder ID should be a virtual token, not the bare source id")
	}
}

func TestHydratePlaceholdersOnlySkipsUpstream(t *testing.T) {
	stub := &stubUpstream{}
	h := NewHydrator(stub, testProxyConfig())

	refs := []ItemRef{{Member: catalog.Member{SourceID: "m1", Name: "A"}}}
	res, err := h.Hydrate(context.Background(), refs)
	if err != nil {
		t.Fatalf("Hydrate failed: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(res.Items))
	}
	if stub.calls.Load() != 0 {
		t.Error("upstream should not be called for placeholder-only hydration")
	}
}

func TestHydratePartialChunkFailure(t *testing.T) {
	stub := &stubUpstream{failIDs: map[string]bool{"u3": true}}
	h := NewHydrator(stub, testProxyConfig())

	refs := []ItemRef{nativeRef("u1"), nativeRef("u2"), nativeRef("u3"), nativeRef("u4"), nativeRef("u5")}
	res, err := h.Hydrate(context.Background(), refs)
	if err != nil {
		t.Fatalf("partial failure must not fail hydration: %v", err)
	}

	// The chunk containing u3 is [u3,u4]; its two items are dropped.
	if len(res.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(res.Items))
	}
	for _, item := range res.Items {
		if item.ID == "u3" || item.ID == "u4" {
			t.Errorf("item %s from failed chunk leaked into result", item.ID)
		}
	}
	if res.FailedChunks != 1 {
		t.Errorf("FailedChunks = %d, want 1", res.FailedChunks)
	}
	if !res.Degraded() {
		t.Error("truncated result not reported as degraded")
	}
}

func TestHydrateAllChunksFailed(t *testing.T) {
	stub := &stubUpstream{failIDs: map[string]bool{"u1": true, "u3": true}}
	h := NewHydrator(stub, testProxyConfig())

	refs := []ItemRef{nativeRef("u1"), nativeRef("u2"), nativeRef("u3")}
	_, err := h.Hydrate(context.Background(), refs)
	if !errors.Is(err, upstream.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestHydrateChunkTimeout(t *testing.T) {
	cfg := testProxyConfig()
	cfg.ChunkTimeout = 20 * time.Millisecond
	stub := &stubUpstream{delay: 200 * time.Millisecond}
	h := NewHydrator(stub, cfg)

	refs := []ItemRef{
		nativeRef("u1"),
		{Member: catalog.Member{SourceID: "m1", Name: "Local"}},
	}

	start := time.Now()
	res, err := h.Hydrate(context.Background(), refs)
	if err != nil {
		t.Fatalf("Hydrate failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("timeout not enforced, hydration took %v", elapsed)
	}

	// The stalled chunk is dropped but the placeholder survives, and
	// the result is flagged so callers know not to cache it.
	if len(res.Items) != 1 || !res.Items[0].IsPlaceholder() {
		t.Errorf("unexpected result after timeout: %+v", res.Items)
	}
	if !res.Degraded() {
		t.Error("timed-out hydration not reported as degraded")
	}
}

func TestHydrateEmptyRefs(t *testing.T) {
	h := NewHydrator(&stubUpstream{}, testProxyConfig())

	res, err := h.Hydrate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Hydrate failed: %v", err)
	}
	if len(res.Items) != 0 {
		t.Errorf("got %d items, want 0", len(res.Items))
	}
}
