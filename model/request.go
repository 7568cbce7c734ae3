package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	RequestStatusPending              = "pending"
	RequestStatusValidated            = "validated"
	RequestStatusRejected             = "rejected"
	RequestStatusAttestationGenerated = "attestation_generated"
)

// Request is a citizen's demand for a civic-service completion certificate.
type Request struct {
	ID               uint      `gorm:"primarykey"`
	Numero           string    `gorm:"uniqueIndex;size:32;not null"`
	BeneficiaryName  string    `gorm:"size:128;not null"`
	BeneficiaryEmail string    `gorm:"size:256"`
	ServiceName      string    `gorm:"size:256;not null"`
	StartDate        time.Time `gorm:"not null"`
	EndDate          time.Time `gorm:"not null"`
	Status           string    `gorm:"size:32;not null;index"`
	AgentID          uint      `gorm:"index;not null"`
	Comment          string    `gorm:"size:1024"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

func (r *Request) BeforeCreate(tx *gorm.DB) error {
	if r.ID == 0 {
		r.ID = GenerateID()
	}
	return nil
}
