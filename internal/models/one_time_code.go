package models

import "time"

// OneTimeCode is a short-lived SMS code. Consumed is set on successful
// verification or attempt exhaustion; a consumed code can never verify again.
type OneTimeCode struct {
	BaseModel
	Identity    string    `json:"identity" gorm:"type:varchar(128);index;not null"`
	Phone       string    `json:"-" gorm:"type:varchar(32);not null"`
	CodeHash    string    `json:"-" gorm:"type:text;not null"`
	Attempts    int       `json:"attempts" gorm:"not null;default:0"`
	MaxAttempts int       `json:"maxAttempts" gorm:"not null;default:3"`
	ExpiresAt   time.Time `json:"expiresAt" gorm:"not null;index"`
	Consumed    bool      `json:"consumed" gorm:"not null;default:false"`
}

func (OneTimeCode) TableName() string {
	return "one_time_codes"
}
