package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sentra/authengine/internal/models"
	"github.com/sentra/authengine/pkg/logger"
	"github.com/sentra/authengine/pkg/utils"
)

// PushDispatcher delivers an approval request to the identity's trusted
// device through an external push provider.
type PushDispatcher interface {
	DispatchPushChallenge(ctx context.Context, identity string, payload map[string]interface{}) error
}

// PushVerifier manages out-of-band approval challenges. A challenge resolves
// exactly once; late or repeated resolutions are rejected, and a timed-out
// challenge can never mint a session.
type PushVerifier struct {
	DB         *gorm.DB
	Dispatcher PushDispatcher
	Timeout    time.Duration

	now func() time.Time
}

func NewPushVerifier(db *gorm.DB, dispatcher PushDispatcher, timeout time.Duration) *PushVerifier {
	return &PushVerifier{
		DB:         db,
		Dispatcher: dispatcher,
		Timeout:    timeout,
		now:        time.Now,
	}
}

// SendChallenge dispatches an approval request and returns the opaque token
// the device must echo back.
func (v *PushVerifier) SendChallenge(ctx context.Context, identity string) (string, error) {
	token, err := utils.RandomToken(32)
	if err != nil {
		return "", err
	}

	row := models.PushChallenge{
		Identity:  identity,
		TokenHash: hashPushToken(token),
		Status:    models.PushChallengePending,
		ExpiresAt: v.now().Add(v.Timeout),
	}
	if err := v.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}

	payload := map[string]interface{}{
		"type":       "auth_approval",
		"token":      token,
		"expires_at": row.ExpiresAt,
	}
	if err := v.Dispatcher.DispatchPushChallenge(ctx, identity, payload); err != nil {
		logger.ErrorWithIdentity(identity, "push_dispatch_failed", err, nil)
		v.DB.WithContext(ctx).Delete(&row)
		return "", err
	}

	logger.InfoWithIdentity(identity, "push_challenge_sent", map[string]interface{}{
		"expires_at": row.ExpiresAt,
	})
	return token, nil
}

// Resolve records the device's approve/deny answer. It succeeds at most once
// per token; anything after the first answer, or after the timeout, is
// rejected. An approved challenge is parked until an authentication attempt
// claims it through Complete.
func (v *PushVerifier) Resolve(ctx context.Context, token string, approved bool) Result {
	row, res := v.load(ctx, token)
	if !res.Success {
		return res
	}

	if row.Status != models.PushChallengePending {
		return fail(KindChallengeAlreadyResolved)
	}

	status := models.PushChallengeDenied
	if approved {
		status = models.PushChallengeApproved
	}
	if res := v.guardedTransition(ctx, row.ID, models.PushChallengePending, status); !res.Success {
		return res
	}

	if !approved {
		return fail(KindCredentialMismatch)
	}
	return ok()
}

// Complete finishes an authentication attempt against the challenge. A
// challenge the device already approved is claimed exactly once; a still
// pending challenge is settled with the caller's own answer. Anything
// already claimed, denied or timed out is rejected.
func (v *PushVerifier) Complete(ctx context.Context, token string, approved bool) Result {
	row, res := v.load(ctx, token)
	if !res.Success {
		return res
	}

	switch row.Status {
	case models.PushChallengeApproved:
		if res := v.guardedTransition(ctx, row.ID, models.PushChallengeApproved, models.PushChallengeConsumed); !res.Success {
			return res
		}
		return ok()
	case models.PushChallengePending:
		if !approved {
			if res := v.guardedTransition(ctx, row.ID, models.PushChallengePending, models.PushChallengeDenied); !res.Success {
				return res
			}
			return fail(KindCredentialMismatch)
		}
		if res := v.guardedTransition(ctx, row.ID, models.PushChallengePending, models.PushChallengeConsumed); !res.Success {
			return res
		}
		return ok()
	}
	return fail(KindChallengeAlreadyResolved)
}

// load fetches the challenge row and settles expiry. The returned Result is
// successful only when the row is still actionable.
func (v *PushVerifier) load(ctx context.Context, token string) (models.PushChallenge, Result) {
	var row models.PushChallenge
	err := v.DB.WithContext(ctx).First(&row, "token_hash = ?", hashPushToken(token)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return row, fail(KindChallengeExpired)
		}
		logger.Error("push_challenge_load_failed", err, nil)
		return row, fail(KindProviderFailure)
	}

	if row.Status == models.PushChallengeExpired {
		return row, fail(KindChallengeExpired)
	}
	now := v.now()
	if now.After(row.ExpiresAt) {
		v.transition(ctx, &row, models.PushChallengeExpired, now)
		return row, fail(KindChallengeExpired)
	}
	return row, ok()
}

// guardedTransition moves the row between the two statuses atomically; of
// two concurrent callers exactly one sees RowsAffected == 1.
func (v *PushVerifier) guardedTransition(ctx context.Context, id uuid.UUID, from, to models.PushChallengeStatus) Result {
	res := v.DB.WithContext(ctx).Model(&models.PushChallenge{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":      to,
			"resolved_at": v.now(),
		})
	if res.Error != nil {
		logger.Error("push_challenge_transition_failed", res.Error, nil)
		return fail(KindProviderFailure)
	}
	if res.RowsAffected == 0 {
		return fail(KindChallengeAlreadyResolved)
	}
	return ok()
}

// Status reports whether a pending challenge was approved, for callers that
// poll instead of resolving inline.
func (v *PushVerifier) Status(ctx context.Context, token string) (models.PushChallengeStatus, error) {
	var row models.PushChallenge
	err := v.DB.WithContext(ctx).First(&row, "token_hash = ?", hashPushToken(token)).Error
	if err != nil {
		return "", err
	}
	if row.Status == models.PushChallengePending && v.now().After(row.ExpiresAt) {
		v.transition(ctx, &row, models.PushChallengeExpired, v.now())
		return models.PushChallengeExpired, nil
	}
	return row.Status, nil
}

func (v *PushVerifier) transition(ctx context.Context, row *models.PushChallenge, status models.PushChallengeStatus, at time.Time) {
	if err := v.DB.WithContext(ctx).Model(row).Updates(map[string]interface{}{
		"status":      status,
		"resolved_at": at,
	}).Error; err != nil {
		logger.Error("push_challenge_transition_failed", err, nil)
	}
}

func hashPushToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
