package memory

import (
	"context"
	"drawsync-server/core"
	"fmt"
	"sort"
	"sync"
	"time"
)

type snapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]core.Snapshot
	updated   map[string]int64
}

// NewSnapshotStore creates a map-backed snapshot store. State is lost when
// the process exits; intended for tests and ephemeral runs.
func NewSnapshotStore() core.SnapshotStore {
	return &snapshotStore{
		snapshots: make(map[string]core.Snapshot),
		updated:   make(map[string]int64),
	}
}

func (s *snapshotStore) Load(ctx context.Context, roomID string) (core.Snapshot, error) {
	key := core.SanitizeKey(roomID)

	s.mu.RLock()
	snapshot, ok := s.snapshots[key]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, core.ErrNotFound)
	}
	return append(core.Snapshot(nil), snapshot...), nil
}

func (s *snapshotStore) Save(ctx context.Context, roomID string, snapshot core.Snapshot) error {
	key := core.SanitizeKey(roomID)

	s.mu.Lock()
	s.snapshots[key] = append(core.Snapshot(nil), snapshot...)
	s.updated[key] = time.Now().UnixMilli()
	s.mu.Unlock()

	return nil
}

func (s *snapshotStore) List(ctx context.Context) ([]core.RoomInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]core.RoomInfo, 0, len(s.snapshots))
	for id := range s.snapshots {
		rooms = append(rooms, core.RoomInfo{ID: id, LastActive: s.updated[id]})
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].LastActive == rooms[j].LastActive {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].LastActive > rooms[j].LastActive
	})

	return rooms, nil
}
