package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SecurityEvent is an append-only record of an authentication-relevant
// action. It does NOT use BaseModel because event rows are never updated.
type SecurityEvent struct {
	ID        uuid.UUID              `json:"id" gorm:"type:uuid;primaryKey"`
	Identity  string                 `json:"identity" gorm:"type:varchar(128);not null;index"`
	EventKind string                 `json:"eventKind" gorm:"type:varchar(50);not null;index"`
	Method    string                 `json:"method,omitempty" gorm:"type:varchar(20);index"`
	RiskScore *float64               `json:"riskScore,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt time.Time              `json:"createdAt" gorm:"not null;index"`
}

func (e *SecurityEvent) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (SecurityEvent) TableName() string {
	return "security_events"
}

// SecurityEventExportCursor tracks the last successful export timestamp so
// the periodic object-storage export only ships new rows.
type SecurityEventExportCursor struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	LastExportAt  time.Time `json:"lastExportAt" gorm:"not null"`
	ExportedCount int64     `json:"exportedCount" gorm:"not null;default:0"`
}

func (c *SecurityEventExportCursor) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (SecurityEventExportCursor) TableName() string {
	return "security_event_export_cursors"
}
