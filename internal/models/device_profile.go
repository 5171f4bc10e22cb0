package models

import "time"

// DeviceProfile remembers a fingerprint previously seen for an identity, so
// the risk layer can distinguish new devices from returning ones.
type DeviceProfile struct {
	BaseModel
	Identity      string    `json:"identity" gorm:"type:varchar(128);index;not null"`
	FingerprintID string    `json:"fingerprintID" gorm:"type:varchar(64);index;not null"`
	Confidence    float64   `json:"confidence" gorm:"not null"`
	FirstSeenAt   time.Time `json:"firstSeenAt" gorm:"not null"`
	LastSeenAt    time.Time `json:"lastSeenAt" gorm:"not null"`
	SeenCount     int64     `json:"seenCount" gorm:"not null;default:1"`
}

func (DeviceProfile) TableName() string {
	return "device_profiles"
}
