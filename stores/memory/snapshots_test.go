package memory

import (
	"context"
	"drawsync-server/core"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestSaveLoad_Roundtrip(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	snapshot := core.Snapshot(`{"shapes":[{"id":"s1"}]}`)
	if err := store.Save(ctx, "room-1", snapshot); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := store.Load(ctx, "room-1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if string(loaded) != string(snapshot) {
		t.Errorf("Load() mismatch: got %q, want %q", loaded, snapshot)
	}
}

func TestLoad_NotFound(t *testing.T) {
	store := NewSnapshotStore()

	_, err := store.Load(context.Background(), "never-saved")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestLoad_ReturnsCopy(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Save(ctx, "room-1", core.Snapshot(`{"v":1}`)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := store.Load(ctx, "room-1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	loaded[2] = 'x'

	again, err := store.Load(ctx, "room-1")
	if err != nil {
		t.Fatalf("Second Load() failed: %v", err)
	}
	if string(again) != `{"v":1}` {
		t.Errorf("Stored snapshot was mutated through a loaded copy: %q", again)
	}
}

func TestSave_Replaces(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Save(ctx, "room-1", core.Snapshot(`{"v":1}`)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Save(ctx, "room-1", core.Snapshot(`{"v":2}`)); err != nil {
		t.Fatalf("Second Save() failed: %v", err)
	}

	loaded, err := store.Load(ctx, "room-1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if string(loaded) != `{"v":2}` {
		t.Errorf("Load() mismatch: got %q, want %q", loaded, `{"v":2}`)
	}
}

func TestList_SortedByActivity(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	for _, id := range []string{"alpha", "beta"} {
		if err := store.Save(ctx, id, core.Snapshot(`{}`)); err != nil {
			t.Fatalf("Save(%s) failed: %v", id, err)
		}
	}

	rooms, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("Expected 2 rooms, got %d", len(rooms))
	}
	for i := 1; i < len(rooms); i++ {
		if rooms[i-1].LastActive < rooms[i].LastActive {
			t.Errorf("Rooms not sorted by LastActive: %v", rooms)
		}
	}
}

func TestConcurrentSaveLoad(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	numWriters := 10
	numReaders := 10
	var wg sync.WaitGroup

	for i := 0; i < numWriters; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				roomID := fmt.Sprintf("room-%d", index)
				if err := store.Save(ctx, roomID, core.Snapshot(fmt.Sprintf(`{"rev":%d}`, j))); err != nil {
					t.Errorf("Concurrent Save() failed: %v", err)
				}
			}
		}(i)
	}
	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				roomID := fmt.Sprintf("room-%d", index)
				if _, err := store.Load(ctx, roomID); err != nil && !errors.Is(err, core.ErrNotFound) {
					t.Errorf("Concurrent Load() failed: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()
}
