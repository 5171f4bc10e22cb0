package verify

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sentra/authengine/internal/models"
	"github.com/sentra/authengine/pkg/logger"
	"github.com/sentra/authengine/pkg/utils"
)

// CodeSender delivers a one-time code out-of-band. The engine never embeds
// gateway transport logic; production binds an SMS provider, tests capture
// the code.
type CodeSender interface {
	SendOneTimeCode(ctx context.Context, identity, phone, code string) error
}

// SmsVerifier issues and checks single-use SMS codes. A code is consumed on
// successful verification or when its attempt budget is exhausted.
type SmsVerifier struct {
	DB          *gorm.DB
	Sender      CodeSender
	CodeLength  int
	Expiry      time.Duration
	MaxAttempts int

	now func() time.Time
}

func NewSmsVerifier(db *gorm.DB, sender CodeSender, codeLength int, expiry time.Duration, maxAttempts int) *SmsVerifier {
	return &SmsVerifier{
		DB:          db,
		Sender:      sender,
		CodeLength:  codeLength,
		Expiry:      expiry,
		MaxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// SendCode generates a fresh code, invalidates any outstanding one for the
// identity, records the new code hashed, and dispatches it. A delivery
// failure is a provider fault: the code row is removed so the caller can
// retry cleanly.
func (v *SmsVerifier) SendCode(ctx context.Context, identity, phone string) error {
	code, err := utils.RandomDigits(v.CodeLength)
	if err != nil {
		return err
	}

	hash, err := utils.HashPin(code)
	if err != nil {
		return err
	}

	if err := v.DB.WithContext(ctx).
		Where("identity = ? AND consumed = ?", identity, false).
		Delete(&models.OneTimeCode{}).Error; err != nil {
		logger.ErrorWithIdentity(identity, "otp_invalidate_failed", err, nil)
	}

	row := models.OneTimeCode{
		Identity:    identity,
		Phone:       phone,
		CodeHash:    hash,
		MaxAttempts: v.MaxAttempts,
		ExpiresAt:   v.now().Add(v.Expiry),
	}
	if err := v.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}

	if err := v.Sender.SendOneTimeCode(ctx, identity, phone, code); err != nil {
		logger.ErrorWithIdentity(identity, "otp_delivery_failed", err, nil)
		v.DB.WithContext(ctx).Delete(&row)
		return err
	}

	logger.InfoWithIdentity(identity, "otp_sent", map[string]interface{}{
		"expires_at": row.ExpiresAt,
	})
	return nil
}

func (v *SmsVerifier) Verify(ctx context.Context, identity, code string) Result {
	if code == "" {
		return fail(KindInvalidFormat)
	}

	var row models.OneTimeCode
	err := v.DB.WithContext(ctx).
		Where("identity = ?", identity).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(KindChallengeExpired)
		}
		logger.ErrorWithIdentity(identity, "otp_load_failed", err, nil)
		return fail(KindProviderFailure)
	}

	if row.Consumed {
		return fail(KindChallengeAlreadyResolved)
	}

	if v.now().After(row.ExpiresAt) {
		v.consume(ctx, &row)
		return fail(KindChallengeExpired)
	}

	if row.Attempts >= row.MaxAttempts {
		v.consume(ctx, &row)
		return fail(KindChallengeAlreadyResolved)
	}

	row.Attempts++
	if err := v.DB.WithContext(ctx).Model(&row).Update("attempts", row.Attempts).Error; err != nil {
		logger.ErrorWithIdentity(identity, "otp_attempt_persist_failed", err, nil)
	}

	if !utils.CheckPin(code, row.CodeHash) {
		if row.Attempts >= row.MaxAttempts {
			v.consume(ctx, &row)
		}
		return fail(KindCredentialMismatch)
	}

	// Single use: success burns the code.
	v.consume(ctx, &row)
	return ok()
}

func (v *SmsVerifier) consume(ctx context.Context, row *models.OneTimeCode) {
	if err := v.DB.WithContext(ctx).Model(row).Update("consumed", true).Error; err != nil {
		logger.Error("otp_consume_failed", err, map[string]interface{}{
			"identity": row.Identity,
		})
	}
}
