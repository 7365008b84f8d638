package stores

import (
	"drawsync-server/core"
	"drawsync-server/stores/filesystem"
	"drawsync-server/stores/memory"
	"drawsync-server/stores/sqlite"
	"os"

	"github.com/sirupsen/logrus"
)

// GetSnapshotStore selects the snapshot store backend from the STORAGE_TYPE
// environment variable. The default is one file per room on the local
// filesystem.
func GetSnapshotStore() core.SnapshotStore {
	storageType := os.Getenv("STORAGE_TYPE")
	var store core.SnapshotStore

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "drawsync.db"
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewSnapshotStore(dataSourceName)
	case "memory":
		store = memory.NewSnapshotStore()
	default:
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data/rooms"
		}
		storageField["storageType"] = "filesystem"
		storageField["basePath"] = basePath
		store = filesystem.NewSnapshotStore(basePath)
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
