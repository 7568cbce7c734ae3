package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	AttestationStatusDraft            = "draft"
	AttestationStatusPendingSignature = "pending_signature"
	AttestationStatusSigned           = "signed"
)

// Attestation is the generated certificate of a request. It is hard-deleted when a
// director returns it to the agent.
type Attestation struct {
	ID               uint       `gorm:"primarykey"`
	RequestID        uint       `gorm:"uniqueIndex;not null"`
	Request          *Request   `gorm:"foreignKey:RequestID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Numero           string     `gorm:"uniqueIndex;size:32;not null"`
	Status           string     `gorm:"size:32;not null;index"`
	GeneratedByID    uint       `gorm:"index;not null"`
	GeneratedAt      time.Time  `gorm:"not null"`
	SignerID         *uint      `gorm:"index"`
	SignedAt         *time.Time `gorm:""`
	VerificationCode *string    `gorm:"uniqueIndex;size:32"`
	FilePath         string     `gorm:"size:512"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (a *Attestation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == 0 {
		a.ID = GenerateID()
	}
	return nil
}

func (a *Attestation) IsSigned() bool {
	return a.Status == AttestationStatusSigned
}
