package models

import "time"

type PushChallengeStatus string

const (
	PushChallengePending  PushChallengeStatus = "pending"
	PushChallengeApproved PushChallengeStatus = "approved"
	PushChallengeConsumed PushChallengeStatus = "consumed"
	PushChallengeDenied   PushChallengeStatus = "denied"
	PushChallengeExpired  PushChallengeStatus = "expired"
)

// PushChallenge tracks an out-of-band approval request. The token is stored
// hashed so a database leak cannot be replayed against the engine.
type PushChallenge struct {
	BaseModel
	Identity   string              `json:"identity" gorm:"type:varchar(128);index;not null"`
	TokenHash  string              `json:"-" gorm:"type:text;uniqueIndex;not null"`
	Status     PushChallengeStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	ExpiresAt  time.Time           `json:"expiresAt" gorm:"not null;index"`
	ResolvedAt *time.Time          `json:"resolvedAt,omitempty"`
}

func (PushChallenge) TableName() string {
	return "push_challenges"
}
