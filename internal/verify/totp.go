package verify

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"

	"github.com/sentra/authengine/internal/models"
	"github.com/sentra/authengine/pkg/logger"
	"github.com/sentra/authengine/pkg/utils"
)

var totpCodeFormat = regexp.MustCompile(`^\d{6}$`)

// TotpVerifier checks authenticator-app codes against the identity's
// enrolled secret.
type TotpVerifier struct {
	DB     *gorm.DB
	Issuer string

	now func() time.Time
}

func NewTotpVerifier(db *gorm.DB, issuer string) *TotpVerifier {
	return &TotpVerifier{DB: db, Issuer: issuer, now: time.Now}
}

// Enroll generates a fresh secret for the identity and returns the otpauth
// provisioning URL. The secret stays unverified until ConfirmEnrollment
// sees a valid code.
func (v *TotpVerifier) Enroll(ctx context.Context, identity string) (string, error) {
	var existing models.TOTPConfig
	err := v.DB.WithContext(ctx).First(&existing, "identity = ?", identity).Error
	if err == nil && existing.Enabled {
		return "", errors.New("authenticator already enabled")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      v.Issuer,
		AccountName: identity,
	})
	if err != nil {
		return "", err
	}

	encryptedSecret, err := utils.EncryptAESGCM(key.Secret())
	if err != nil {
		return "", err
	}

	if v.DB.WithContext(ctx).First(&existing, "identity = ?", identity).Error == nil {
		err = v.DB.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"secret":      encryptedSecret,
			"enabled":     false,
			"verified_at": nil,
		}).Error
	} else {
		err = v.DB.WithContext(ctx).Create(&models.TOTPConfig{
			Identity: identity,
			Secret:   encryptedSecret,
		}).Error
	}
	if err != nil {
		return "", err
	}

	return key.URL(), nil
}

// ConfirmEnrollment enables the pending secret once the identity proves it
// can produce a valid code.
func (v *TotpVerifier) ConfirmEnrollment(ctx context.Context, identity, code string) Result {
	var cfg models.TOTPConfig
	if err := v.DB.WithContext(ctx).First(&cfg, "identity = ?", identity).Error; err != nil {
		return fail(KindTransportUnavailable)
	}
	if cfg.Enabled {
		return fail(KindChallengeAlreadyResolved)
	}

	res := v.check(cfg, code)
	if !res.Success {
		return res
	}

	now := v.now()
	if err := v.DB.WithContext(ctx).Model(&cfg).Updates(map[string]interface{}{
		"enabled":     true,
		"verified_at": now,
	}).Error; err != nil {
		logger.ErrorWithIdentity(identity, "totp_enable_failed", err, nil)
		return fail(KindProviderFailure)
	}

	logger.InfoWithIdentity(identity, "totp_enabled", nil)
	return ok()
}

// Verify checks a login code against an enabled secret.
func (v *TotpVerifier) Verify(ctx context.Context, identity, code string) Result {
	var cfg models.TOTPConfig
	err := v.DB.WithContext(ctx).First(&cfg, "identity = ?", identity).Error
	if err != nil || !cfg.Enabled {
		return fail(KindTransportUnavailable)
	}
	return v.check(cfg, code)
}

func (v *TotpVerifier) check(cfg models.TOTPConfig, code string) Result {
	if !totpCodeFormat.MatchString(code) {
		return fail(KindInvalidFormat)
	}

	// Secrets are only ever stored encrypted; a row that cannot be decrypted
	// is corrupt and must never be compared as-is.
	secret, err := utils.DecryptAESGCM(cfg.Secret)
	if err != nil {
		logger.ErrorWithIdentity(cfg.Identity, "totp_secret_decrypt_failed", err, nil)
		return fail(KindProviderFailure)
	}
	if !totp.Validate(code, secret) {
		return fail(KindCredentialMismatch)
	}
	return ok()
}
