package core

import (
	"context"
	"net/http"
	"time"
)

type (
	// Snapshot is the full serialized state of a room's document at one
	// instant. Its contents belong to the document engine; this layer only
	// moves it between memory and storage.
	Snapshot []byte

	// RoomInfo describes one room for listing purposes.
	RoomInfo struct {
		ID         string `json:"id"`
		Sessions   int    `json:"sessions"`
		LastActive int64  `json:"lastActive,omitempty"`
	}

	// SnapshotStore defines the persistence layer for room snapshots.
	SnapshotStore interface {
		// Load returns the persisted snapshot for a room, or ErrNotFound
		// if the room was never persisted.
		Load(ctx context.Context, roomID string) (Snapshot, error)

		// Save replaces the persisted snapshot for a room with the given
		// state. The stored snapshot is always a whole state, never a
		// partial write.
		Save(ctx context.Context, roomID string, snapshot Snapshot) error

		// List returns all rooms known to the store.
		List(ctx context.Context) ([]RoomInfo, error)
	}

	// AssetMetadata is the sidecar record written next to an asset blob.
	AssetMetadata struct {
		ContentType     string      `json:"contentType"`
		Size            int64       `json:"size"`
		UploadedAt      time.Time   `json:"uploadedAt"`
		OriginalHeaders http.Header `json:"originalHeaders,omitempty"`
	}

	// AssetContent is a fully read asset: its bytes plus the metadata to
	// serve them with.
	AssetContent struct {
		Data []byte
		Meta AssetMetadata
	}
)
