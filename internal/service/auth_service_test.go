package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/credlock/credlock/internal/domain"
	"github.com/credlock/credlock/internal/repository"
)

type stubUserRepo struct {
	nextID  uint
	byID    map[uint]*domain.User
	byEmail map[string]*domain.User

	createErr error
	findErr   error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		nextID:  1,
		byID:    map[uint]*domain.User{},
		byEmail: map[string]*domain.User{},
	}
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.byEmail[user.Email]; ok {
		return repository.ErrEmailTaken
	}
	user.ID = r.nextID
	r.nextID++
	r.byID[user.ID] = user
	r.byEmail[user.Email] = user
	return nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id uint) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	user, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	user, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

type authServiceFixture struct {
	users *stubUserRepo
	auth  *AuthService
}

func newAuthServiceFixture() *authServiceFixture {
	users := newStubUserRepo()
	return &authServiceFixture{users: users, auth: NewAuthService(users)}
}

func (fx *authServiceFixture) seedUser(t *testing.T, email, password string) *domain.User {
	t.Helper()
	user, err := fx.auth.Register(context.Background(), email, password, "Seed")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (fx *authServiceFixture) seedPasskeyOnlyUser(t *testing.T, email string) *domain.User {
	t.Helper()
	user := &domain.User{Email: email, Name: "Passkey Only"}
	if err := fx.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed passkey-only user: %v", err)
	}
	return user
}

func TestAuthServiceRegisterMatrix(t *testing.T) {
	t.Run("valid registration", func(t *testing.T) {
		fx := newAuthServiceFixture()
		user, err := fx.auth.Register(context.Background(), "  user@example.com  ", "longenough", "  Ada  ")
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if user.Email != "user@example.com" {
			t.Fatalf("expected trimmed email, got %q", user.Email)
		}
		if user.Name != "Ada" {
			t.Fatalf("expected trimmed name, got %q", user.Name)
		}
		if !user.HasPassword() {
			t.Fatal("expected a password digest")
		}
		if *user.PasswordHash == "longenough" {
			t.Fatal("password stored in the clear")
		}
		if len(user.Handle) != 16 {
			t.Fatalf("expected 16-byte handle, got %d bytes", len(user.Handle))
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		fx := newAuthServiceFixture()
		for _, email := range []string{"", "not-an-email", "Name <user@example.com>", "user@"} {
			if _, err := fx.auth.Register(context.Background(), email, "longenough", "Ada"); !errors.Is(err, ErrValidation) {
				t.Fatalf("email %q: expected ErrValidation, got %v", email, err)
			}
		}
	})

	t.Run("short password", func(t *testing.T) {
		fx := newAuthServiceFixture()
		_, err := fx.auth.Register(context.Background(), "user@example.com", "seven77", "Ada")
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if !strings.Contains(err.Error(), "8") {
			t.Fatalf("expected minimum length in message, got %v", err)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		fx := newAuthServiceFixture()
		fx.seedUser(t, "dupe@example.com", "longenough")
		_, err := fx.auth.Register(context.Background(), "dupe@example.com", "different1", "Ada")
		if !errors.Is(err, repository.ErrEmailTaken) {
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}
	})

	t.Run("email compared without case folding", func(t *testing.T) {
		fx := newAuthServiceFixture()
		fx.seedUser(t, "case@example.com", "longenough")
		if _, err := fx.auth.Register(context.Background(), "Case@example.com", "longenough", "Ada"); err != nil {
			t.Fatalf("differently cased email should register: %v", err)
		}
	})
}

func TestAuthServiceLoginMatrix(t *testing.T) {
	t.Run("valid credentials", func(t *testing.T) {
		fx := newAuthServiceFixture()
		seeded := fx.seedUser(t, "user@example.com", "longenough")

		user, err := fx.auth.Login(context.Background(), "user@example.com", "longenough")
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		if user.ID != seeded.ID {
			t.Fatalf("expected user %d, got %d", seeded.ID, user.ID)
		}
	})

	t.Run("failures are indistinguishable", func(t *testing.T) {
		fx := newAuthServiceFixture()
		fx.seedUser(t, "user@example.com", "longenough")
		fx.seedPasskeyOnlyUser(t, "passkey@example.com")

		cases := []struct {
			name     string
			email    string
			password string
		}{
			{"unknown email", "ghost@example.com", "longenough"},
			{"wrong password", "user@example.com", "wrongwrong"},
			{"passkey-only account", "passkey@example.com", "longenough"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := fx.auth.Login(context.Background(), tc.email, tc.password)
				if !errors.Is(err, ErrInvalidCredentials) {
					t.Fatalf("expected ErrInvalidCredentials, got %v", err)
				}
				if err.Error() != ErrInvalidCredentials.Error() {
					t.Fatalf("failure leaks detail: %q", err.Error())
				}
			})
		}
	})

	t.Run("repository failure is not masked as invalid credentials", func(t *testing.T) {
		fx := newAuthServiceFixture()
		fx.users.findErr = errors.New("connection reset")

		_, err := fx.auth.Login(context.Background(), "user@example.com", "longenough")
		if errors.Is(err, ErrInvalidCredentials) {
			t.Fatal("infrastructure failure should not look like bad credentials")
		}
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestAuthServiceGetUser(t *testing.T) {
	fx := newAuthServiceFixture()
	seeded := fx.seedUser(t, "user@example.com", "longenough")

	user, err := fx.auth.GetUser(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Email != "user@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}

	if _, err := fx.auth.GetUser(context.Background(), 9999); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
