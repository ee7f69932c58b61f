package liveview

import (
	"context"
	"testing"

	"github.com/userdesk/backend/internal/models"
	"github.com/userdesk/backend/internal/store"
)

func usernames(list []models.UserProfile) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.Username
	}
	return out
}

func TestProject(t *testing.T) {
	list := []models.UserProfile{
		{ID: "1", Username: "Bob"},
		{ID: "2", Username: "alice"},
	}

	cases := []struct {
		name   string
		search string
		order  SortOrder
		want   []string
	}{
		{"ascending ignores case", "", SortAscending, []string{"alice", "Bob"}},
		{"descending", "", SortDescending, []string{"Bob", "alice"}},
		{"substring match is case-insensitive", "bo", SortAscending, []string{"Bob"}},
		{"no match", "zz", SortAscending, []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := usernames(Project(list, tc.search, tc.order))
			if len(got) != len(tc.want) {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("want %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestProject_DoesNotMutateInput(t *testing.T) {
	list := []models.UserProfile{
		{ID: "1", Username: "zoe"},
		{ID: "2", Username: "amy"},
	}
	_ = Project(list, "", SortAscending)

	if list[0].Username != "zoe" || list[1].Username != "amy" {
		t.Fatalf("input order mutated: %v", usernames(list))
	}
}

func TestParseSortOrder(t *testing.T) {
	if ParseSortOrder("desc") != SortDescending {
		t.Errorf("desc should parse descending")
	}
	if ParseSortOrder("DESC") != SortDescending {
		t.Errorf("parse should be case-insensitive")
	}
	if ParseSortOrder("") != SortAscending {
		t.Errorf("empty should default ascending")
	}
	if ParseSortOrder("bogus") != SortAscending {
		t.Errorf("unknown should default ascending")
	}
}

func TestCollectionView_ProjectMemoizesPerGeneration(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	_ = mem.Set(ctx, "users", "1", map[string]any{"username": "Bob"}, false)
	_ = mem.Set(ctx, "users", "2", map[string]any{"username": "alice"}, false)

	view := NewCollectionView(mem, "users", nil)
	if err := view.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer view.Stop()
	waitFor(t, func() bool { return len(view.Profiles()) == 2 })

	first := view.Project("", SortAscending)
	second := view.Project("", SortAscending)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("unexpected projection sizes: %d, %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("memoized projection differs: %+v vs %+v", first, second)
		}
	}

	// A new snapshot invalidates the cache.
	gen := view.Generation()
	_ = mem.Set(ctx, "users", "3", map[string]any{"username": "carol"}, false)
	waitFor(t, func() bool { return view.Generation() > gen })

	third := view.Project("", SortAscending)
	if len(third) != 3 {
		t.Fatalf("projection not recomputed after snapshot: %v", usernames(third))
	}
}
