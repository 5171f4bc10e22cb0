package models

import "time"

// PlatformCredential is a registered WebAuthn authenticator (passkey,
// platform biometric) for an identity.
type PlatformCredential struct {
	BaseModel
	Identity        string     `json:"identity" gorm:"type:varchar(128);index;not null"`
	CredentialID    []byte     `json:"-" gorm:"type:bytea;uniqueIndex;not null"`
	PublicKey       []byte     `json:"-" gorm:"type:bytea;not null"`
	AttestationType string     `json:"-" gorm:"type:varchar(64)"`
	AAGUID          []byte     `json:"-" gorm:"type:bytea"`
	SignCount       uint32     `json:"-" gorm:"default:0"`
	Name            string     `json:"name" gorm:"type:varchar(255);not null"`
	Transports      string     `json:"-" gorm:"type:text"`
	LastUsedAt      *time.Time `json:"lastUsedAt,omitempty"`
	BackupEligible  bool       `json:"backupEligible" gorm:"default:false"`
	BackupState     bool       `json:"backupState" gorm:"default:false"`
}

func (PlatformCredential) TableName() string {
	return "platform_credentials"
}
