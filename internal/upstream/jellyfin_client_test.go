// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/shelfgate/shelfgate/internal/config"
	"github.com/shelfgate/shelfgate/internal/models"
)

func testClient(t *testing.T, handler http.Handler) *JellyfinClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewJellyfinClient(&config.UpstreamConfig{
		URL:     server.URL,
		APIKey:  "test-key",
		UserID:  "user1",
		Timeout: 5 * time.Second,
	})
}

func TestGetViews(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users/user1/Views" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Emby-Token") != "test-key" {
			t.Error("missing auth header")
		}
		_ = json.NewEncoder(w).Encode(models.ViewsResult{
			Items: []models.View{
				{ID: "lib1", Name: "Movies", CollectionType: "movies"},
				{ID: "lib2", Name: "Shows", CollectionType: "tvshows"},
			},
			TotalRecordCount: 2,
		})
	}))

	views, err := client.GetViews(context.Background())
	if err != nil {
		t.Fatalf("GetViews failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d views, want 2", len(views))
	}
	if views[0].ID != "lib1" || views[1].CollectionType != "tvshows" {
		t.Errorf("unexpected views: %+v", views)
	}
}

func TestGetItemsByIDs(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Items" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		ids := r.URL.Query().Get("Ids")
		if ids != "u1,u2" {
			t.Errorf("Ids = %q, want u1,u2", ids)
		}
		if !strings.Contains(r.URL.Query().Get("Fields"), "DateCreated") {
			t.Error("expected DateCreated in Fields")
		}
		_ = json.NewEncoder(w).Encode(models.ItemsResult{
			Items: []models.Item{
				{ID: "u1", Name: "Alpha"},
				{ID: "u2", Name: "Beta"},
			},
			TotalRecordCount: 2,
		})
	}))

	items, err := client.GetItemsByIDs(context.Background(), []string{"u1", "u2"})
	if err != nil {
		t.Fatalf("GetItemsByIDs failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
}

func TestGetItemsByIDsEmptyBatch(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty batch")
	}))

	items, err := client.GetItemsByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty batch should not error: %v", err)
	}
	if items != nil {
		t.Errorf("expected nil result, got %v", items)
	}
}

func TestServerErrorWrapsUnavailable(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	_, err := client.GetViews(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}

	if err := client.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("ping error = %v, want ErrUnavailable", err)
	}
}

func TestGetViewItemsBuildsQuery(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("ParentId") != "lib1" {
			t.Errorf("ParentId = %q", q.Get("ParentId"))
		}
		if q.Get("SortBy") != models.SortByDateCreated {
			t.Errorf("SortBy = %q", q.Get("SortBy"))
		}
		if q.Get("SortOrder") != models.SortOrderDescending {
			t.Errorf("SortOrder = %q", q.Get("SortOrder"))
		}
		if q.Get("StartIndex") != "10" || q.Get("Limit") != "5" {
			t.Errorf("paging = %s/%s", q.Get("StartIndex"), q.Get("Limit"))
		}
		_ = json.NewEncoder(w).Encode(models.ItemsResult{TotalRecordCount: 0})
	}))

	_, err := client.GetViewItems(context.Background(), "lib1", models.ItemQuery{
		StartIndex: 10,
		Limit:      5,
		SortBy:     models.SortByDateCreated,
		SortOrder:  models.SortOrderDescending,
	})
	if err != nil {
		t.Fatalf("GetViewItems failed: %v", err)
	}
}

func TestForwardRelaysResponse(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users/user1/Items" {
			t.Errorf("forwarded path = %s", r.URL.Path)
		}
		if r.URL.RawQuery != "StartIndex=0&Limit=3" {
			t.Errorf("forwarded query = %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-Emby-Token") != "test-key" {
			t.Error("auth header not injected on passthrough")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"Items":[],"TotalRecordCount":0}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/views/lib1/items?StartIndex=0&Limit=3", nil)
	rec := httptest.NewRecorder()
	client.Forward(rec, req, "/Users/user1/Items")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type not preserved: %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "TotalRecordCount") {
		t.Errorf("body not relayed: %q", rec.Body.String())
	}
}

func TestForwardUpstreamDown(t *testing.T) {
	client := NewJellyfinClient(&config.UpstreamConfig{
		URL:     "http://127.0.0.1:1", // nothing listens here
		APIKey:  "k",
		UserID:  "u",
		Timeout: 500 * time.Millisecond,
	})

	req := httptest.NewRequest(http.MethodGet, "/items/abc", nil)
	rec := httptest.NewRecorder()
	client.Forward(rec, req, "/Items/abc")

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
