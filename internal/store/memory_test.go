package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemory_MergeUpdatesOnlySuppliedFields(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if err := mem.Set(ctx, "users", "u1", map[string]any{"x": 0, "y": 2}, false); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}
	if err := mem.Set(ctx, "users", "u1", map[string]any{"x": 1}, true); err != nil {
		t.Fatalf("merge write failed: %v", err)
	}

	doc, ok, err := mem.Get(ctx, "users", "u1")
	if err != nil || !ok {
		t.Fatalf("expected document, ok=%v err=%v", ok, err)
	}
	if doc.Data["x"] != 1 {
		t.Errorf("x: want 1, got %v", doc.Data["x"])
	}
	if doc.Data["y"] != 2 {
		t.Errorf("y: want 2 (preserved by merge), got %v", doc.Data["y"])
	}
}

func TestMemory_ReplaceDropsUnsuppliedFields(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if err := mem.Set(ctx, "users", "u1", map[string]any{"x": 0, "y": 2}, false); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}
	if err := mem.Set(ctx, "users", "u1", map[string]any{"x": 1}, false); err != nil {
		t.Fatalf("replace write failed: %v", err)
	}

	doc, ok, err := mem.Get(ctx, "users", "u1")
	if err != nil || !ok {
		t.Fatalf("expected document, ok=%v err=%v", ok, err)
	}
	if doc.Data["x"] != 1 {
		t.Errorf("x: want 1, got %v", doc.Data["x"])
	}
	if _, present := doc.Data["y"]; present {
		t.Errorf("y: want dropped by replace, got %v", doc.Data["y"])
	}
}

func TestMemory_DeleteMissingIsNotAnError(t *testing.T) {
	mem := NewMemory()
	if err := mem.Delete(context.Background(), "users", "ghost"); err != nil {
		t.Fatalf("delete of absent document: want nil error, got %v", err)
	}
}

func TestMemory_RecordsCalls(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	_ = mem.Set(ctx, "users", "u1", map[string]any{"username": "ann"}, true)
	_ = mem.Delete(ctx, "users", "u1")

	writes := mem.WriteCalls()
	if len(writes) != 1 {
		t.Fatalf("want 1 write call, got %d", len(writes))
	}
	if writes[0].Collection != "users" || writes[0].ID != "u1" || !writes[0].Merge {
		t.Errorf("unexpected write call: %+v", writes[0])
	}

	deletes := mem.DeleteCalls()
	if len(deletes) != 1 || deletes[0].ID != "u1" {
		t.Fatalf("unexpected delete calls: %+v", deletes)
	}
}

func TestMemory_InjectedErrorShortCircuits(t *testing.T) {
	boom := errors.New("backend down")
	mem := NewMemory().WithError(boom)
	ctx := context.Background()

	if err := mem.Set(ctx, "users", "u1", map[string]any{"x": 1}, false); !errors.Is(err, boom) {
		t.Fatalf("Set: want injected error, got %v", err)
	}
	if err := mem.Delete(ctx, "users", "u1"); !errors.Is(err, boom) {
		t.Fatalf("Delete: want injected error, got %v", err)
	}
	if _, _, err := mem.Get(ctx, "users", "u1"); !errors.Is(err, boom) {
		t.Fatalf("Get: want injected error, got %v", err)
	}
	if len(mem.WriteCalls()) != 0 {
		t.Errorf("failed writes must not be recorded")
	}
}

func TestMemory_WatchCollectionDeliversSnapshots(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	_ = mem.Set(ctx, "users", "a", map[string]any{"username": "ann"}, false)

	ch, cancel, err := mem.WatchCollection(ctx, "users")
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	defer cancel()

	snap := <-ch
	if snap.Err != nil {
		t.Fatalf("initial snapshot error: %v", snap.Err)
	}
	if len(snap.Docs) != 1 || snap.Docs[0].ID != "a" {
		t.Fatalf("unexpected initial snapshot: %+v", snap.Docs)
	}

	_ = mem.Set(ctx, "users", "b", map[string]any{"username": "bob"}, false)
	snap = <-ch
	if len(snap.Docs) != 2 {
		t.Fatalf("want 2 docs after write, got %d", len(snap.Docs))
	}

	_ = mem.Delete(ctx, "users", "a")
	snap = <-ch
	if len(snap.Docs) != 1 || snap.Docs[0].ID != "b" {
		t.Fatalf("want only b after delete, got %+v", snap.Docs)
	}
}

func TestMemory_CancelClosesChannelAndStopsDelivery(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	ch, cancel, err := mem.WatchCollection(ctx, "users")
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	<-ch // initial snapshot

	cancel()
	_ = mem.Set(ctx, "users", "a", map[string]any{"username": "ann"}, false)

	if _, open := <-ch; open {
		t.Fatalf("channel should be closed after cancel, got delivery")
	}
}

func TestMemory_HoldQueuesDeliveryUntilRelease(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	ch, cancel, err := mem.WatchCollection(ctx, "users")
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	defer cancel()
	<-ch // initial snapshot

	mem.Hold()
	_ = mem.Set(ctx, "users", "a", map[string]any{"username": "ann"}, false)

	select {
	case snap := <-ch:
		t.Fatalf("held event delivered early: %+v", snap)
	default:
	}

	mem.Release()
	snap := <-ch
	if len(snap.Docs) != 1 {
		t.Fatalf("want released snapshot with 1 doc, got %+v", snap)
	}
}

func TestMemory_WatchDocumentReportsExistence(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	ch, cancel, err := mem.WatchDocument(ctx, "users", "u1")
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	defer cancel()

	snap := <-ch
	if snap.Exists {
		t.Fatalf("document should not exist yet")
	}

	_ = mem.Set(ctx, "users", "u1", map[string]any{"username": "ann"}, false)
	snap = <-ch
	if !snap.Exists || snap.Doc.Data["username"] != "ann" {
		t.Fatalf("unexpected snapshot after write: %+v", snap)
	}

	_ = mem.Delete(ctx, "users", "u1")
	snap = <-ch
	if snap.Exists {
		t.Fatalf("document should be gone after delete")
	}
}
