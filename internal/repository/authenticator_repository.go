package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/credlock/credlock/internal/domain"
)

var (
	ErrAuthenticatorNotFound = errors.New("authenticator not found")
	ErrCredentialExists      = errors.New("credential already registered")
	// ErrStaleSignCount means the conditional counter update matched no row:
	// either a concurrent assertion advanced it first or the reported value
	// did not exceed the stored one.
	ErrStaleSignCount = errors.New("sign count not advanced")
)

type AuthenticatorRepository interface {
	Create(ctx context.Context, authenticator *domain.Authenticator) error
	ListByUserID(ctx context.Context, userID uint) ([]domain.Authenticator, error)
	FindByCredentialID(ctx context.Context, credentialID string) (*domain.Authenticator, error)
	AdvanceSignCount(ctx context.Context, credentialID string, newCount uint32) error
}

type GormAuthenticatorRepository struct{ db *gorm.DB }

func NewAuthenticatorRepository(db *gorm.DB) AuthenticatorRepository {
	return &GormAuthenticatorRepository{db: db}
}

func (r *GormAuthenticatorRepository) Create(ctx context.Context, authenticator *domain.Authenticator) error {
	err := r.db.WithContext(ctx).Create(authenticator).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrCredentialExists
	}
	return err
}

func (r *GormAuthenticatorRepository) ListByUserID(ctx context.Context, userID uint) ([]domain.Authenticator, error) {
	var list []domain.Authenticator
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&list).Error
	return list, err
}

// FindByCredentialID loads the authenticator together with its owning user.
func (r *GormAuthenticatorRepository) FindByCredentialID(ctx context.Context, credentialID string) (*domain.Authenticator, error) {
	var a domain.Authenticator
	err := r.db.WithContext(ctx).Preload("User").Where("credential_id = ?", credentialID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAuthenticatorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AdvanceSignCount moves the counter forward only when newCount is strictly
// greater than the stored value. The condition lives in the UPDATE itself so
// two concurrent replays of the same assertion cannot both win.
func (r *GormAuthenticatorRepository) AdvanceSignCount(ctx context.Context, credentialID string, newCount uint32) error {
	res := r.db.WithContext(ctx).Model(&domain.Authenticator{}).
		Where("credential_id = ? AND sign_count < ?", credentialID, newCount).
		Updates(map[string]any{"sign_count": newCount, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleSignCount
	}
	return nil
}
