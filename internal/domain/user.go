package domain

import "time"

// User is the single identity record credentials attach to. Email is stored
// exactly as registered (trimmed, case preserved) and compared exactly on
// lookup. PasswordHash is nil for passkey-only accounts. Handle is the opaque
// byte string handed to authenticators as the WebAuthn user handle; it never
// encodes the numeric id.
type User struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Email           string          `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name            string          `gorm:"size:255" json:"name"`
	PasswordHash    *string         `gorm:"size:1024" json:"-"`
	Handle          []byte          `gorm:"uniqueIndex;size:64;not null" json:"-"`
	EmailVerifiedAt *time.Time      `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Authenticators  []Authenticator `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// HasPassword reports whether a password digest is set. Accounts created
// through the passkey flow alone have none.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// DisplayName falls back to the email when no name was provided at
// registration, matching what is shown in authenticator prompts.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
