package database

import (
	"github.com/credlock/credlock/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Authenticator{},
	)
}
