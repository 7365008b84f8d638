package sqlite

import (
	"context"
	"database/sql"
	"drawsync-server/core"
	"fmt"
	stdlog "log"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

type snapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore creates a sqlite-backed snapshot store.
func NewSnapshotStore(dataSourceName string) core.SnapshotStore {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		stdlog.Fatal(err)
	}

	sts := `CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		snapshot BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(sts); err != nil {
		stdlog.Fatal(err)
	}

	return &snapshotStore{db}
}

func (s *snapshotStore) Load(ctx context.Context, roomID string) (core.Snapshot, error) {
	key := core.SanitizeKey(roomID)
	log := logrus.WithField("room_id", roomID)

	var snapshot []byte
	err := s.db.QueryRowContext(ctx, "SELECT snapshot FROM rooms WHERE id = ?", key).Scan(&snapshot)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("room %s: %w", roomID, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to read room snapshot")
		return nil, err
	}

	log.WithField("size", len(snapshot)).Debug("Room snapshot loaded")
	return snapshot, nil
}

func (s *snapshotStore) Save(ctx context.Context, roomID string, snapshot core.Snapshot) error {
	key := core.SanitizeKey(roomID)
	log := logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"size":    len(snapshot),
	})

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, snapshot, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		key, []byte(snapshot), time.Now().UnixMilli())
	if err != nil {
		log.WithError(err).Error("Failed to save room snapshot")
		return err
	}

	log.Debug("Room snapshot saved")
	return nil
}

func (s *snapshotStore) List(ctx context.Context) ([]core.RoomInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, updated_at FROM rooms ORDER BY updated_at DESC, id ASC")
	if err != nil {
		logrus.WithError(err).Error("Failed to list rooms")
		return nil, err
	}
	defer rows.Close()

	var rooms []core.RoomInfo
	for rows.Next() {
		var room core.RoomInfo
		if err := rows.Scan(&room.ID, &room.LastActive); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}
