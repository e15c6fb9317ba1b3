package domain

import "time"

// Authenticator is one registered WebAuthn credential. CredentialID is the
// base64url (no padding) encoding of the raw credential identifier and is
// unique across all users. SignCount is the authenticator's signature
// counter; it only ever advances to strictly greater values.
type Authenticator struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CredentialID    string    `gorm:"uniqueIndex;size:512;not null" json:"credential_id"`
	PublicKey       []byte    `gorm:"not null" json:"-"`
	AttestationType string    `gorm:"size:64" json:"-"`
	AAGUID          []byte    `gorm:"size:16" json:"-"`
	SignCount       uint32    `gorm:"not null;default:0" json:"-"`
	Transports      string    `gorm:"size:255" json:"transports"`
	BackupEligible  bool      `gorm:"not null;default:false" json:"-"`
	BackupState     bool      `gorm:"not null;default:false" json:"-"`
	UserVerified    bool      `gorm:"not null;default:false" json:"-"`
	UserID          uint      `gorm:"index;not null" json:"user_id"`
	User            User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
