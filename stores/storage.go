package stores

import (
	"os"

	"whiteboard-server/core"
	"whiteboard-server/stores/filesystem"
	"whiteboard-server/stores/memory"
	"whiteboard-server/stores/sqlite"

	"github.com/sirupsen/logrus"
)

func GetStore() core.WhiteboardStore {
	storageType := os.Getenv("STORAGE_TYPE")
	var store core.WhiteboardStore

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		storageField["basePath"] = basePath
		store = filesystem.NewWhiteboardStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewWhiteboardStore(dataSourceName)
	default:
		store = memory.NewWhiteboardStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
