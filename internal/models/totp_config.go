package models

import "time"

// TOTPConfig stores an identity's authenticator-app secret, AES-GCM
// encrypted at rest.
type TOTPConfig struct {
	BaseModel
	Identity   string     `json:"identity" gorm:"type:varchar(128);uniqueIndex;not null"`
	Enabled    bool       `json:"enabled" gorm:"default:false"`
	Secret     string     `json:"-" gorm:"type:text"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
}

func (TOTPConfig) TableName() string {
	return "totp_configs"
}
