package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAgent     = "agent"
	RoleChef      = "chef"
	RoleDirecteur = "directeur"
	RoleAdmin     = "admin"
)

// User stores account information
type User struct {
	ID        uint   `gorm:"primarykey"`
	Email     string `gorm:"uniqueIndex;size:256;not null"`
	FullName  string `gorm:"size:128;not null"`
	Password  string `gorm:"size:64;not null"`
	Role      string `gorm:"size:16;not null;index"`
	Disabled  bool   `gorm:"default:false;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == 0 {
		u.ID = GenerateID()
	}
	return nil
}
