package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"gorm.io/gorm"

	"github.com/sentra/authengine/internal/models"
)

// GormStore mirrors sessions to the relational database. Tokens are stored
// hashed; a database leak must not yield replayable session tokens.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Persist(ctx context.Context, rec Record) error {
	row := models.SessionRecord{
		TokenHash:      hashToken(rec.Token),
		Identity:       rec.Identity,
		Method:         rec.Method,
		LastActivityAt: rec.LastActivityAt,
		ExpiresAt:      rec.ExpiresAt,
		IsActive:       rec.IsActive,
	}

	var existing models.SessionRecord
	err := s.db.WithContext(ctx).First(&existing, "token_hash = ?", row.TokenHash).Error
	if err == nil {
		return s.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"last_activity_at": row.LastActivityAt,
			"expires_at":       row.ExpiresAt,
			"is_active":        row.IsActive,
		}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) Lookup(ctx context.Context, token string) (Record, error) {
	var row models.SessionRecord
	err := s.db.WithContext(ctx).First(&row, "token_hash = ?", hashToken(token)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}

	return Record{
		Token:          token,
		Identity:       row.Identity,
		Method:         row.Method,
		CreatedAt:      row.CreatedAt,
		LastActivityAt: row.LastActivityAt,
		ExpiresAt:      row.ExpiresAt,
		IsActive:       row.IsActive,
	}, nil
}

func (s *GormStore) Delete(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).
		Where("token_hash = ?", hashToken(token)).
		Delete(&models.SessionRecord{}).Error
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
