package model

import (
	"time"
)

const (
	TwoFactorMethodEmail = "email"
	TwoFactorMethodTOTP  = "totp"
)

// DirectorSignatureConfig holds a director's signing credentials. Secrets are never
// serialized.
type DirectorSignatureConfig struct {
	ID             uint       `gorm:"primarykey;autoIncrement"`
	UserID         uint       `gorm:"uniqueIndex;not null"`
	PinHash        string     `gorm:"size:64" json:"-"`
	PinAttempts    int        `gorm:"not null;default:0" json:"-"`
	PinLockedUntil *time.Time `json:"-"`
	Method         string     `gorm:"size:16;not null;default:email"`
	TOTPSecret     *string    `gorm:"size:128" json:"-"`
	BackupCodes    []string   `gorm:"serializer:json;type:text" json:"-"`
	SignatureImage string     `gorm:"size:512"`
	SignatureText  string     `gorm:"size:512"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (c *DirectorSignatureConfig) TOTPEnabled() bool {
	return c.Method == TwoFactorMethodTOTP && c.TOTPSecret != nil && *c.TOTPSecret != ""
}

func (c *DirectorSignatureConfig) PinConfigured() bool {
	return c.PinHash != ""
}
