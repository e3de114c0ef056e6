// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package proxy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shelfgate/shelfgate/internal/catalog"
	"github.com/shelfgate/shelfgate/internal/config"
	"github.com/shelfgate/shelfgate/internal/models"
	"github.com/shelfgate/shelfgate/internal/virtualid"
)

// stubCatalog is an in-memory catalog.Reader fixture.
type stubCatalog struct {
	collections []catalog.Collection
	members     map[string][]catalog.Member
	listErr     error
	membersErr  error
}

func (s *stubCatalog) ListCollections(ctx context.Context) ([]catalog.Collection, error) {
	return s.collections, s.listErr
}

func (s *stubCatalog) GetCollection(ctx context.Context, id string) (*catalog.Collection, error) {
	for i := range s.collections {
		if s.collections[i].ID == id {
			return &s.collections[i], nil
		}
	}
	return nil, catalog.ErrCollectionNotFound
}

func (s *stubCatalog) ListMembers(ctx context.Context, collectionID string) ([]catalog.Member, error) {
	if s.membersErr != nil {
		return nil, s.membersErr
	}
	members, ok := s.members[collectionID]
	if !ok {
		return nil, catalog.ErrCollectionNotFound
	}
	return members, nil
}

func (s *stubCatalog) GetMember(ctx context.Context, sourceID string) (*catalog.Member, error) {
	for _, members := range s.members {
		for i := range members {
			if members[i].SourceID == sourceID {
				return &members[i], nil
			}
		}
	}
	return nil, catalog.ErrMemberNotFound
}

func twoNativeTwoVirtual() (*stubUpstream, *stubCatalog) {
	up := &stubUpstream{views: []models.View{
		{ID: "lib1", Name: "Movies", CollectionType: "movies"},
		{ID: "lib2", Name: "Shows", CollectionType: "tvshows"},
	}}
	cat := &stubCatalog{collections: []catalog.Collection{
		{ID: "col1", Name: "Noir", Enabled: true},
		{ID: "col2", Name: "Heists", Enabled: true},
		{ID: "col3", Name: "Disabled", Enabled: false},
	}}
	return up, cat
}

func TestComposeTopLevelViewsOrderAfter(t *testing.T) {
	up, cat := twoNativeTwoVirtual()
	cfg := *testProxyConfig()
	cfg.NativeViewOrder = config.OrderAfter

	result, err := NewCompositor(up, cat, cfg).ComposeTopLevelViews(context.Background())
	if err != nil {
		t.Fatalf("ComposeTopLevelViews failed: %v", err)
	}
	if result.TotalRecordCount != 4 {
		t.Fatalf("count = %d, want 4 (disabled collection must be absent)", result.TotalRecordCount)
	}

	// "after": native views first, then virtual.
	wantOrder := []string{"Movies", "Shows", "Noir", "Heists"}
	for i, want := range wantOrder {
		if result.Items[i].Name != want {
			t.Errorf("position %d = %s, want %s", i, result.Items[i].Name, want)
		}
	}

	for _, v := range result.Items[2:] {
		if !virtualid.IsVirtual(v.ID) {
			t.Errorf("virtual view %s has non-virtual id %s", v.Name, v.ID)
		}
		if v.CollectionType != models.CollectionTypeBoxset {
			t.Errorf("virtual view %s collection type = %s", v.Name, v.CollectionType)
		}
	}
}

func TestComposeTopLevelViewsOrderBefore(t *testing.T) {
	up, cat := twoNativeTwoVirtual()
	cfg := *testProxyConfig()
	cfg.NativeViewOrder = config.OrderBefore

	result, err := NewCompositor(up, cat, cfg).ComposeTopLevelViews(context.Background())
	if err != nil {
		t.Fatalf("ComposeTopLevelViews failed: %v", err)
	}

	// "before": virtual views first.
	if result.Items[0].Name != "Noir" || result.Items[3].Name != "Shows" {
		var names []string
		for _, v := range result.Items {
			names = append(names, v.Name)
		}
		t.Errorf("unexpected order: %s", strings.Join(names, ", "))
	}
}

func TestComposeTopLevelViewsNoDuplicates(t *testing.T) {
	up, cat := twoNativeTwoVirtual()
	result, err := NewCompositor(up, cat, *testProxyConfig()).ComposeTopLevelViews(context.Background())
	if err != nil {
		t.Fatalf("ComposeTopLevelViews failed: %v", err)
	}

	seen := make(map[string]bool)
	for _, v := range result.Items {
		if seen[v.ID] {
			t.Errorf("duplicate view id %s", v.ID)
		}
		seen[v.ID] = true
	}
}

func TestComposeTopLevelViewsSelection(t *testing.T) {
	up, cat := twoNativeTwoVirtual()
	cfg := *testProxyConfig()
	cfg.NativeViewSelection = []string{"lib1"}

	result, err := NewCompositor(up, cat, cfg).ComposeTopLevelViews(context.Background())
	if err != nil {
		t.Fatalf("ComposeTopLevelViews failed: %v", err)
	}
	for _, v := range result.Items {
		if v.ID == "lib2" {
			t.Error("lib2 should be filtered out by the selection")
		}
	}
	if result.TotalRecordCount != 3 {
		t.Errorf("count = %d, want 3", result.TotalRecordCount)
	}
}

func TestComposeTopLevelViewsMergeDisabled(t *testing.T) {
	up, cat := twoNativeTwoVirtual()
	cfg := *testProxyConfig()
	cfg.MergeNativeLibraries = false

	result, err := NewCompositor(up, cat, cfg).ComposeTopLevelViews(context.Background())
	if err != nil {
		t.Fatalf("ComposeTopLevelViews failed: %v", err)
	}
	for _, v := range result.Items {
		if !virtualid.IsVirtual(v.ID) {
			t.Errorf("native view %s present with merging disabled", v.Name)
		}
	}
}

func TestComposeTopLevelViewsProxyDisabled(t *testing.T) {
	up, cat := twoNativeTwoVirtual()
	cfg := *testProxyConfig()
	cfg.Enabled = false

	result, err := NewCompositor(up, cat, cfg).ComposeTopLevelViews(context.Background())
	if err != nil {
		t.Fatalf("ComposeTopLevelViews failed: %v", err)
	}
	if result.TotalRecordCount != 2 {
		t.Errorf("count = %d, want 2 native views only", result.TotalRecordCount)
	}
}

func TestComposeTopLevelViewsNativeFetchDegrades(t *testing.T) {
	up, cat := twoNativeTwoVirtual()
	up.viewsErr = errors.New("upstream down")

	result, err := NewCompositor(up, cat, *testProxyConfig()).ComposeTopLevelViews(context.Background())
	if err != nil {
		t.Fatalf("virtual-only degradation expected, got error: %v", err)
	}
	if result.TotalRecordCount != 2 {
		t.Errorf("count = %d, want 2 virtual views", result.TotalRecordCount)
	}
}

func TestComposeTopLevelViewsBothSourcesDown(t *testing.T) {
	up, cat := twoNativeTwoVirtual()
	up.viewsErr = errors.New("upstream down")
	cat.listErr = errors.New("catalog down")

	_, err := NewCompositor(up, cat, *testProxyConfig()).ComposeTopLevelViews(context.Background())
	if err == nil {
		t.Fatal("expected error when nothing could be assembled")
	}
}

func TestComposeViewMembersPlaceholderPolicy(t *testing.T) {
	up := &stubUpstream{}
	cat := &stubCatalog{
		collections: []catalog.Collection{{ID: "col1", Name: "Mixed", Enabled: true}},
		members: map[string][]catalog.Member{
			"col1": {
				{SourceID: "a", UpstreamID: "u1", Name: "A"},
				{SourceID: "b", Name: "B"},
				{SourceID: "c", UpstreamID: "u3", Name: "C"},
			},
		},
	}

	t.Run("placeholders enabled", func(t *testing.T) {
		cfg := *testProxyConfig()
		refs, err := NewCompositor(up, cat, cfg).ComposeViewMembers(context.Background(), "col1")
		if err != nil {
			t.Fatalf("ComposeViewMembers failed: %v", err)
		}
		if len(refs) != 3 {
			t.Fatalf("got %d refs, want 3", len(refs))
		}
		placeholders := 0
		for _, ref := range refs {
			if ref.IsPlaceholder() {
				placeholders++
			}
		}
		if placeholders != 1 {
			t.Errorf("got %d placeholders, want 1", placeholders)
		}
	})

	t.Run("placeholders disabled", func(t *testing.T) {
		cfg := *testProxyConfig()
		cfg.ShowMissingPlaceholders = false
		refs, err := NewCompositor(up, cat, cfg).ComposeViewMembers(context.Background(), "col1")
		if err != nil {
			t.Fatalf("ComposeViewMembers failed: %v", err)
		}
		if len(refs) != 2 {
			t.Fatalf("got %d refs, want 2", len(refs))
		}
		for _, ref := range refs {
			if ref.IsPlaceholder() {
				t.Errorf("placeholder %s survived with placeholders disabled", ref.Member.SourceID)
			}
		}
	})
}

func TestComposeViewMembersDisabledCollection(t *testing.T) {
	up := &stubUpstream{}
	cat := &stubCatalog{collections: []catalog.Collection{{ID: "col1", Name: "Off", Enabled: false}}}

	_, err := NewCompositor(up, cat, *testProxyConfig()).ComposeViewMembers(context.Background(), "col1")
	if !errors.Is(err, catalog.ErrCollectionNotFound) {
		t.Errorf("error = %v, want ErrCollectionNotFound", err)
	}
}

func TestComposeViewMembersMembershipFailure(t *testing.T) {
	up := &stubUpstream{}
	cat := &stubCatalog{
		collections: []catalog.Collection{{ID: "col1", Name: "Flaky", Enabled: true}},
		membersErr:  errors.New("store corrupted"),
	}

	_, err := NewCompositor(up, cat, *testProxyConfig()).ComposeViewMembers(context.Background(), "col1")
	if err == nil || errors.Is(err, catalog.ErrCollectionNotFound) {
		t.Errorf("membership failure should surface as a read error, got %v", err)
	}
}
