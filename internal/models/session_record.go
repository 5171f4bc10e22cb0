package models

import "time"

// SessionRecord is the durable mirror of an in-memory session. The in-memory
// index is authoritative; rows here repopulate it after a process restart.
type SessionRecord struct {
	BaseModel
	TokenHash      string    `json:"-" gorm:"type:text;uniqueIndex;not null"`
	Identity       string    `json:"identity" gorm:"type:varchar(128);index;not null"`
	Method         string    `json:"method" gorm:"type:varchar(20);not null"`
	LastActivityAt time.Time `json:"lastActivityAt" gorm:"not null"`
	ExpiresAt      time.Time `json:"expiresAt" gorm:"not null;index"`
	IsActive       bool      `json:"isActive" gorm:"not null;default:true"`
}

func (SessionRecord) TableName() string {
	return "session_records"
}
