package repository

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/credlock/credlock/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Authenticator{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *domain.User {
	t.Helper()
	user := &domain.User{Email: email, Handle: []byte("handle-" + email)}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestUserRepositoryCreateDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &domain.User{Email: "alice@example.com", Handle: []byte("h1")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repo.Create(ctx, &domain.User{Email: "alice@example.com", Handle: []byte("h2")})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserRepositoryFindByEmailIsCaseSensitive(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	seedUser(t, db, "Alice@example.com")

	found, err := repo.FindByEmail(ctx, "Alice@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.Email != "Alice@example.com" {
		t.Fatalf("unexpected email %q", found.Email)
	}

	if _, err := repo.FindByEmail(ctx, "alice@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for different casing, got %v", err)
	}
}

func TestUserRepositoryFindByIDNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	if _, err := repo.FindByID(context.Background(), 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthenticatorRepositoryCreateDuplicateCredentialAcrossUsers(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuthenticatorRepository(db)
	ctx := context.Background()
	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")

	first := &domain.Authenticator{CredentialID: "cred-1", PublicKey: []byte("pk"), UserID: alice.ID}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Credential identifiers are globally unique, even for a different owner.
	dup := &domain.Authenticator{CredentialID: "cred-1", PublicKey: []byte("pk"), UserID: bob.ID}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrCredentialExists) {
		t.Fatalf("expected ErrCredentialExists, got %v", err)
	}
}

func TestAuthenticatorRepositoryFindByCredentialIDPreloadsOwner(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuthenticatorRepository(db)
	ctx := context.Background()
	alice := seedUser(t, db, "alice@example.com")

	if err := repo.Create(ctx, &domain.Authenticator{CredentialID: "cred-1", PublicKey: []byte("pk"), UserID: alice.ID, SignCount: 7}); err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := repo.FindByCredentialID(ctx, "cred-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.User.ID != alice.ID || found.User.Email != "alice@example.com" {
		t.Fatalf("expected owner to be preloaded, got %+v", found.User)
	}
	if found.SignCount != 7 {
		t.Fatalf("unexpected sign count %d", found.SignCount)
	}

	if _, err := repo.FindByCredentialID(ctx, "missing"); !errors.Is(err, ErrAuthenticatorNotFound) {
		t.Fatalf("expected ErrAuthenticatorNotFound, got %v", err)
	}
}

func TestAuthenticatorRepositoryAdvanceSignCount(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuthenticatorRepository(db)
	ctx := context.Background()
	alice := seedUser(t, db, "alice@example.com")

	if err := repo.Create(ctx, &domain.Authenticator{CredentialID: "cred-1", PublicKey: []byte("pk"), UserID: alice.ID, SignCount: 10}); err != nil {
		t.Fatalf("create: %v", err)
	}

	t.Run("strictly greater advances", func(t *testing.T) {
		if err := repo.AdvanceSignCount(ctx, "cred-1", 11); err != nil {
			t.Fatalf("advance: %v", err)
		}
		found, err := repo.FindByCredentialID(ctx, "cred-1")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if found.SignCount != 11 {
			t.Fatalf("expected counter 11, got %d", found.SignCount)
		}
	})

	t.Run("equal is rejected and counter untouched", func(t *testing.T) {
		if err := repo.AdvanceSignCount(ctx, "cred-1", 11); !errors.Is(err, ErrStaleSignCount) {
			t.Fatalf("expected ErrStaleSignCount, got %v", err)
		}
		found, _ := repo.FindByCredentialID(ctx, "cred-1")
		if found.SignCount != 11 {
			t.Fatalf("counter must not move on rejection, got %d", found.SignCount)
		}
	})

	t.Run("lower is rejected and counter untouched", func(t *testing.T) {
		if err := repo.AdvanceSignCount(ctx, "cred-1", 3); !errors.Is(err, ErrStaleSignCount) {
			t.Fatalf("expected ErrStaleSignCount, got %v", err)
		}
		found, _ := repo.FindByCredentialID(ctx, "cred-1")
		if found.SignCount != 11 {
			t.Fatalf("counter must not move on rejection, got %d", found.SignCount)
		}
	})
}

func TestAuthenticatorRepositoryListByUserID(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuthenticatorRepository(db)
	ctx := context.Background()
	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")

	for _, id := range []string{"a-1", "a-2"} {
		if err := repo.Create(ctx, &domain.Authenticator{CredentialID: id, PublicKey: []byte("pk"), UserID: alice.ID}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := repo.Create(ctx, &domain.Authenticator{CredentialID: "b-1", PublicKey: []byte("pk"), UserID: bob.ID}); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := repo.ListByUserID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 authenticators, got %d", len(list))
	}

	empty, err := repo.ListByUserID(ctx, 999)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no authenticators, got %d", len(empty))
	}
}
