package storage

import (
	"fmt"

	"notebook-backend/internal/config"
)

// New builds the storage backend named in cfg and initializes it.
func New(cfg config.StorageConfig) (Storage, error) {
	var s Storage
	switch cfg.Type {
	case "memory", "":
		s = NewMemoryStorage()
	case "disk":
		s = NewDiskStorage(cfg.DataDir, cfg.CacheSize)
	case "sqlite":
		s = NewSQLiteStorage(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}

	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}
