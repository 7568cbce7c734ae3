package model

import "time"

// AuditLog is an append-only record of a state-changing action.
type AuditLog struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Action    string    `gorm:"size:64;not null;index" json:"action"`
	ActorID   uint      `gorm:"index;not null" json:"actorId"`
	SubjectID *uint     `gorm:"index" json:"subjectId,omitempty"`
	Details   string    `gorm:"type:text" json:"details,omitempty"`
	IP        string    `gorm:"size:45;not null" json:"ip"`
	UserAgent string    `gorm:"size:512;not null" json:"userAgent"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}
