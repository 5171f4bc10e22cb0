package models

import "time"

// PinCredential stores the salted hash of a user's PIN. The PIN itself is
// never persisted; bcrypt embeds the salt in the hash value.
type PinCredential struct {
	BaseModel
	Identity       string     `json:"identity" gorm:"type:varchar(128);uniqueIndex;not null"`
	PinHash        string     `json:"-" gorm:"type:text;not null"`
	FailedAttempts int        `json:"failedAttempts" gorm:"not null;default:0"`
	LockedUntil    *time.Time `json:"lockedUntil,omitempty"`
}

func (PinCredential) TableName() string {
	return "pin_credentials"
}
