package filesystem

import (
	"context"
	"drawsync-server/core"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const snapshotExt = ".json"

type snapshotStore struct {
	basePath string
}

// NewSnapshotStore creates a filesystem-backed snapshot store with one file
// per room under basePath.
func NewSnapshotStore(basePath string) core.SnapshotStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		logrus.WithError(err).Fatal("Failed to create room storage directory")
	}
	return &snapshotStore{basePath: basePath}
}

func (s *snapshotStore) path(roomID string) string {
	return filepath.Join(s.basePath, core.SanitizeKey(roomID)+snapshotExt)
}

func (s *snapshotStore) Load(ctx context.Context, roomID string) (core.Snapshot, error) {
	log := logrus.WithField("room_id", roomID)

	data, err := os.ReadFile(s.path(roomID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("room %s: %w", roomID, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to read room snapshot")
		return nil, err
	}

	log.WithField("size", len(data)).Debug("Room snapshot loaded")
	return data, nil
}

func (s *snapshotStore) Save(ctx context.Context, roomID string, snapshot core.Snapshot) error {
	log := logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"size":    len(snapshot),
	})

	// Write-then-rename keeps the on-disk snapshot a whole state even if
	// the process dies mid-write.
	path := s.path(roomID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, snapshot, 0644); err != nil {
		log.WithError(err).Error("Failed to write room snapshot")
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		log.WithError(err).Error("Failed to replace room snapshot")
		return err
	}

	log.Debug("Room snapshot saved")
	return nil
}

func (s *snapshotStore) List(ctx context.Context) ([]core.RoomInfo, error) {
	files, err := os.ReadDir(s.basePath)
	if err != nil {
		logrus.WithError(err).Error("Failed to read room storage directory")
		return nil, err
	}

	rooms := make([]core.RoomInfo, 0, len(files))
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		info, err := file.Info()
		if err != nil {
			logrus.WithError(err).Warnf("Failed to stat snapshot %s, skipping", name)
			continue
		}
		rooms = append(rooms, core.RoomInfo{
			ID:         strings.TrimSuffix(name, snapshotExt),
			LastActive: info.ModTime().UnixMilli(),
		})
	}

	return rooms, nil
}
