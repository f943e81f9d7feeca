package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/paperwalk/internal/config"
)

// Open returns the run store selected by cfg.Type. It returns (nil, nil)
// for "none", which disables run history.
func Open(cfg config.StorageConfig, logger *logrus.Logger) (RunStore, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "sqlite":
		store, err := NewSQLiteStore(cfg.LocalPath, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("storage type postgres requires postgres_dsn")
		}
		store, err := NewPostgresStore(cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
