package risk

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sentra/authengine/internal/fingerprint"
	"github.com/sentra/authengine/internal/models"
	"github.com/sentra/authengine/pkg/logger"
)

// FraudAssessment is the block/review decision derived from a fingerprint
// and the identity's device history.
type FraudAssessment struct {
	ShouldBlock    bool     `json:"shouldBlock"`
	RiskScore      float64  `json:"riskScore"`
	Anomalies      []string `json:"anomalies"`
	RequiresReview bool     `json:"requiresReview"`
}

// FraudAssessor is an optional collaborator consulted before any verifier
// runs. A nil assessor means attempts proceed without a block check.
type FraudAssessor interface {
	AssessFraudSignal(ctx context.Context, identity string, fp fingerprint.Fingerprint) (FraudAssessment, error)
}

// HistoryAssessor scores the fingerprint and folds in the identity's device
// history. A returning device softens nothing by itself, but an unseen
// device is flagged as an anomaly. Profiles are updated as a side effect so
// the next attempt sees this device.
type HistoryAssessor struct {
	DB             *gorm.DB
	Scorer         *Scorer
	BlockThreshold float64

	now func() time.Time
}

func NewHistoryAssessor(db *gorm.DB, scorer *Scorer, blockThreshold float64) *HistoryAssessor {
	return &HistoryAssessor{
		DB:             db,
		Scorer:         scorer,
		BlockThreshold: blockThreshold,
		now:            time.Now,
	}
}

func (a *HistoryAssessor) AssessFraudSignal(ctx context.Context, identity string, fp fingerprint.Fingerprint) (FraudAssessment, error) {
	assessment := a.Scorer.Assess(fp)

	result := FraudAssessment{
		RiskScore: assessment.Score,
		Anomalies: append([]string(nil), assessment.Reasons...),
	}

	newDevice, err := a.recordSighting(ctx, identity, fp)
	if err != nil {
		// History is advisory. A storage fault downgrades the check to a
		// pure fingerprint assessment instead of failing the attempt.
		logger.ErrorWithIdentity(identity, "device_history_unavailable", err, nil)
	} else if newDevice {
		result.Anomalies = append(result.Anomalies, "device not previously seen for this identity")
	}

	result.ShouldBlock = result.RiskScore >= a.BlockThreshold
	result.RequiresReview = result.ShouldBlock || assessment.Level == LevelHigh

	return result, nil
}

// recordSighting upserts the device profile and reports whether the device
// was unseen for the identity before this call.
func (a *HistoryAssessor) recordSighting(ctx context.Context, identity string, fp fingerprint.Fingerprint) (bool, error) {
	now := a.now()

	var profile models.DeviceProfile
	err := a.DB.WithContext(ctx).
		First(&profile, "identity = ? AND fingerprint_id = ?", identity, fp.ID).Error
	if err == nil {
		updates := map[string]interface{}{
			"last_seen_at": now,
			"seen_count":   profile.SeenCount + 1,
			"confidence":   fp.Confidence,
		}
		return false, a.DB.WithContext(ctx).Model(&profile).Updates(updates).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	return true, a.DB.WithContext(ctx).Create(&models.DeviceProfile{
		Identity:      identity,
		FingerprintID: fp.ID,
		Confidence:    fp.Confidence,
		FirstSeenAt:   now,
		LastSeenAt:    now,
		SeenCount:     1,
	}).Error
}
