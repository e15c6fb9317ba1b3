package service

import (
	"context"

	"github.com/credlock/credlock/internal/domain"
)

type AuthServiceInterface interface {
	Register(ctx context.Context, email, password, name string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, error)
	GetUser(ctx context.Context, id uint) (*domain.User, error)
}

type WebAuthnServiceInterface interface {
	BeginRegistration(ctx context.Context, userID uint) (*RegistrationOptions, error)
	FinishRegistration(ctx context.Context, userID uint, response []byte, challenge string) (*domain.Authenticator, error)
	BeginLogin(ctx context.Context, email string) (*LoginOptions, error)
	FinishLogin(ctx context.Context, response []byte, challenge string) (*domain.User, error)
}
