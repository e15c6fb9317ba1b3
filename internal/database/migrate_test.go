package database

import (
	"errors"
	"testing"

	"github.com/credlock/credlock/internal/config"
	"github.com/credlock/credlock/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{DatabaseDriver: "sqlite", DatabaseURL: ":memory:"}
}

func TestMigrateCreatesSchemaWithUniqueConstraints(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	user := &domain.User{Email: "alice@example.com", Name: "Alice", Handle: []byte{1, 2}}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	dup := &domain.User{Email: "alice@example.com", Name: "Other", Handle: []byte{3, 4}}
	if err := db.Create(dup).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated key for email, got %v", err)
	}

	auth := &domain.Authenticator{UserID: user.ID, CredentialID: "cred-1", PublicKey: []byte{1}}
	if err := db.Create(auth).Error; err != nil {
		t.Fatalf("create authenticator: %v", err)
	}
	dupAuth := &domain.Authenticator{UserID: user.ID, CredentialID: "cred-1", PublicKey: []byte{2}}
	if err := db.Create(dupAuth).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated key for credential id, got %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseDriver = "mysql"
	if _, err := Open(cfg); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestOpenSQLite(t *testing.T) {
	cfg := testConfig()
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}
