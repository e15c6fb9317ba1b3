package database

import (
	"fmt"

	"github.com/credlock/credlock/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects using the configured driver. TranslateError is required
// so unique-constraint violations surface as gorm.ErrDuplicatedKey on
// both sqlite and postgres.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
	switch cfg.DatabaseDriver {
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.DatabaseURL), gormCfg)
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.DatabaseDriver)
	}
}
