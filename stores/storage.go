package stores

import (
	"overlay-server/config"
	"overlay-server/core"
	"overlay-server/stores/aws"
	"overlay-server/stores/filesystem"
	"overlay-server/stores/memory"
	"overlay-server/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// Store is what every backend provides: the overlay catalog and the stream settings.
type Store interface {
	core.OverlayStore
	core.SettingsStore
}

func GetStore(cfg config.Config) Store {
	var store Store

	storageField := logrus.Fields{
		"storageType": cfg.StorageType,
	}

	switch cfg.StorageType {
	case "filesystem":
		storageField["basePath"] = cfg.LocalStoragePath
		store = filesystem.NewOverlayStore(cfg.LocalStoragePath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		storageField["maxLayouts"] = cfg.MaxLayouts
		sqliteStore := sqlite.NewOverlayStore(cfg.DataSourceName)
		sqliteStore.SetMaxLayouts(cfg.MaxLayouts)
		store = sqliteStore
	case "s3":
		storageField["bucketName"] = cfg.S3BucketName
		storageField["prefix"] = cfg.S3Prefix
		store = aws.NewStore(cfg.S3BucketName, cfg.S3Prefix)
	default:
		store = memory.NewOverlayStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
