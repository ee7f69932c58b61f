package liveview

import (
	"context"
	"testing"
	"time"

	"github.com/userdesk/backend/internal/models"
	"github.com/userdesk/backend/internal/store"
)

func TestDocumentView_FallsBackWhenDocumentMissing(t *testing.T) {
	mem := store.NewMemory()
	fallback := models.UserProfile{ID: "u1", Email: "ann@example.com"}

	view := NewDocumentView(mem, "users", "u1", fallback, nil)
	if err := view.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer view.Stop()

	waitFor(t, func() bool { return view.State() == StateActive })

	profile, exists := view.Profile()
	if exists {
		t.Fatalf("document should not exist")
	}
	if profile.Email != "ann@example.com" || profile.ID != "u1" {
		t.Fatalf("fallback not applied: %+v", profile)
	}
}

func TestDocumentView_TracksWritesAndDeletes(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	fallback := models.UserProfile{ID: "u1", Email: "session@example.com"}

	view := NewDocumentView(mem, "users", "u1", fallback, nil)
	if err := view.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer view.Stop()

	_ = mem.Set(ctx, "users", "u1", map[string]any{
		"username": "ann",
		"email":    "ann@example.com",
	}, false)

	waitFor(t, func() bool {
		p, exists := view.Profile()
		return exists && p.Username == "ann"
	})

	// Deletion must reset to the fallback, not leave the last seen fields.
	_ = mem.Delete(ctx, "users", "u1")
	waitFor(t, func() bool {
		p, exists := view.Profile()
		return !exists && p.Email == "session@example.com" && p.Username == ""
	})
}

func TestDocumentView_StopSuppressesQueuedDelivery(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	fallback := models.UserProfile{ID: "u1"}

	view := NewDocumentView(mem, "users", "u1", fallback, nil)
	if err := view.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, func() bool { return view.State() == StateActive })

	mem.Hold()
	_ = mem.Set(ctx, "users", "u1", map[string]any{"username": "ann"}, false)
	view.Stop()
	mem.Release()

	time.Sleep(50 * time.Millisecond)
	if _, exists := view.Profile(); exists {
		t.Fatalf("stopped view mutated by late snapshot")
	}
}
