package verify

import (
	"context"
	"errors"
	"regexp"
	"time"

	"gorm.io/gorm"

	"github.com/sentra/authengine/internal/models"
	"github.com/sentra/authengine/pkg/logger"
	"github.com/sentra/authengine/pkg/utils"
)

var pinFormat = regexp.MustCompile(`^\d{4,6}$`)

// PinVerifier checks a PIN against its stored bcrypt hash and maintains a
// method-local failure counter with lockout, independent of the global rate
// limiter.
type PinVerifier struct {
	DB              *gorm.DB
	MaxAttempts     int
	LockoutDuration time.Duration

	now func() time.Time
}

func NewPinVerifier(db *gorm.DB, maxAttempts int, lockoutDuration time.Duration) *PinVerifier {
	return &PinVerifier{
		DB:              db,
		MaxAttempts:     maxAttempts,
		LockoutDuration: lockoutDuration,
		now:             time.Now,
	}
}

// Enroll sets or replaces the identity's PIN. Enrollment resets the failure
// counter.
func (v *PinVerifier) Enroll(ctx context.Context, identity, pin string) error {
	if !pinFormat.MatchString(pin) {
		return errors.New("pin must be 4-6 digits")
	}

	hash, err := utils.HashPin(pin)
	if err != nil {
		return err
	}

	var existing models.PinCredential
	err = v.DB.WithContext(ctx).First(&existing, "identity = ?", identity).Error
	if err == nil {
		return v.DB.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"pin_hash":        hash,
			"failed_attempts": 0,
			"locked_until":    nil,
		}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return v.DB.WithContext(ctx).Create(&models.PinCredential{
		Identity: identity,
		PinHash:  hash,
	}).Error
}

func (v *PinVerifier) Verify(ctx context.Context, identity, pin string) Result {
	if !pinFormat.MatchString(pin) {
		return fail(KindInvalidFormat)
	}

	var cred models.PinCredential
	if err := v.DB.WithContext(ctx).First(&cred, "identity = ?", identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(KindCredentialMismatch)
		}
		logger.ErrorWithIdentity(identity, "pin_credential_load_failed", err, nil)
		return fail(KindProviderFailure)
	}

	now := v.now()

	if cred.LockedUntil != nil {
		if now.Before(*cred.LockedUntil) {
			return Result{
				Kind:             KindCredentialLockedOut,
				RemainingLockout: cred.LockedUntil.Sub(now),
			}
		}
		// Lockout elapsed: the counter starts over.
		cred.FailedAttempts = 0
		cred.LockedUntil = nil
	}

	if utils.CheckPin(pin, cred.PinHash) {
		if err := v.DB.WithContext(ctx).Model(&cred).Updates(map[string]interface{}{
			"failed_attempts": 0,
			"locked_until":    nil,
		}).Error; err != nil {
			logger.ErrorWithIdentity(identity, "pin_reset_failed", err, nil)
		}
		return ok()
	}

	cred.FailedAttempts++
	updates := map[string]interface{}{
		"failed_attempts": cred.FailedAttempts,
		"locked_until":    cred.LockedUntil,
	}

	if cred.FailedAttempts >= v.MaxAttempts {
		lockedUntil := now.Add(v.LockoutDuration)
		updates["locked_until"] = lockedUntil

		if err := v.DB.WithContext(ctx).Model(&cred).Updates(updates).Error; err != nil {
			logger.ErrorWithIdentity(identity, "pin_lockout_persist_failed", err, nil)
		}
		logger.WarnWithIdentity(identity, "pin_locked_out", map[string]interface{}{
			"failed_attempts": cred.FailedAttempts,
			"locked_until":    lockedUntil,
		})
		return Result{
			Kind:             KindCredentialLockedOut,
			RemainingLockout: v.LockoutDuration,
		}
	}

	if err := v.DB.WithContext(ctx).Model(&cred).Updates(updates).Error; err != nil {
		logger.ErrorWithIdentity(identity, "pin_attempt_persist_failed", err, nil)
	}
	return fail(KindCredentialMismatch)
}
