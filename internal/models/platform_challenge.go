package models

import "time"

type PlatformChallengeType string

const (
	PlatformChallengeRegistration   PlatformChallengeType = "registration"
	PlatformChallengeAuthentication PlatformChallengeType = "authentication"
)

// PlatformChallenge holds the server-side WebAuthn session data between the
// begin and finish halves of a ceremony.
type PlatformChallenge struct {
	BaseModel
	Identity    string                `json:"-" gorm:"type:varchar(128);index"`
	Challenge   []byte                `json:"-" gorm:"type:bytea;not null"`
	Type        PlatformChallengeType `json:"-" gorm:"type:varchar(20);not null"`
	SessionData string                `json:"-" gorm:"type:text;not null"`
	ExpiresAt   time.Time             `json:"-" gorm:"not null;index"`
}

func (PlatformChallenge) TableName() string {
	return "platform_challenges"
}
