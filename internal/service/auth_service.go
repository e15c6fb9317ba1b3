package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/credlock/credlock/internal/domain"
	"github.com/credlock/credlock/internal/repository"
	"github.com/credlock/credlock/internal/security"
)

const minPasswordLength = 8

var (
	// ErrValidation marks malformed input rejected before any business logic.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is the single failure for password login. Unknown
	// email, passkey-only account, and wrong password all return this exact
	// value so the caller cannot tell them apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AuthService owns the password half of the credential lifecycle.
type AuthService struct {
	users repository.UserRepository
}

func NewAuthService(users repository.UserRepository) *AuthService {
	return &AuthService{users: users}
}

// Register creates a user with a password digest. The digest is computed by
// the hashing primitive; the plaintext is never stored. A taken email
// surfaces as repository.ErrEmailTaken whether it is caught by the pre-check
// or by the unique constraint under a concurrent registration.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, repository.ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	digest, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	handle := uuid.New()
	user := &domain.User{
		Email:        email,
		Name:         name,
		PasswordHash: &digest,
		Handle:       handle[:],
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates an email/password pair. Every failure mode collapses
// into ErrInvalidCredentials at this single construction point.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.HasPassword() {
		return nil, ErrInvalidCredentials
	}
	ok, err := security.VerifyPassword(*user.PasswordHash, password)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser resolves a session subject back to its identity record.
func (s *AuthService) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return nil
}
