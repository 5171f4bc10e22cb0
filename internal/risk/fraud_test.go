package risk

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/sentra/authengine/internal/fingerprint"
	"github.com/sentra/authengine/internal/models"
)

func setupFraudTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}
	if err := db.AutoMigrate(&models.DeviceProfile{}); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}
	return db
}

func TestHistoryAssessor_CleanKnownDevice(t *testing.T) {
	db := setupFraudTestDB(t)
	a := NewHistoryAssessor(db, DefaultScorer(), 0.8)
	ctx := context.Background()
	fp := generate(t, cleanFixture())

	// First sighting flags the new device.
	first, err := a.AssessFraudSignal(ctx, "alice", fp)
	if err != nil {
		t.Fatalf("assessment failed: %v", err)
	}
	if first.ShouldBlock {
		t.Fatal("clean device must not block")
	}
	if len(first.Anomalies) != 1 {
		t.Fatalf("expected only the new-device anomaly, got %v", first.Anomalies)
	}

	// Second sighting is a returning device with no anomalies.
	second, err := a.AssessFraudSignal(ctx, "alice", fp)
	if err != nil {
		t.Fatalf("assessment failed: %v", err)
	}
	if len(second.Anomalies) != 0 {
		t.Fatalf("expected no anomalies for returning device, got %v", second.Anomalies)
	}

	var profile models.DeviceProfile
	if err := db.First(&profile, "identity = ?", "alice").Error; err != nil {
		t.Fatalf("failed loading profile: %v", err)
	}
	if profile.SeenCount != 2 {
		t.Fatalf("expected seen count 2, got %d", profile.SeenCount)
	}
	if profile.FingerprintID != fp.ID {
		t.Fatalf("profile fingerprint mismatch: %s != %s", profile.FingerprintID, fp.ID)
	}
}

func TestHistoryAssessor_BlocksAboveThreshold(t *testing.T) {
	db := setupFraudTestDB(t)
	a := NewHistoryAssessor(db, DefaultScorer(), 0.5)
	ctx := context.Background()

	// Tor marker, tiny screen, and missing hardware stack to 0.6.
	fixture := cleanFixture()
	fixture.Signals[fingerprint.CategoryUserAgent] = fingerprint.Present("Mozilla/5.0 TorBrowser/13.0")
	fixture.Signals[fingerprint.CategoryScreen] = fingerprint.Present("640x480x24")
	fixture.Signals[fingerprint.CategoryHardware] = fingerprint.Absent()

	result, err := a.AssessFraudSignal(ctx, "mallory", generate(t, fixture))
	if err != nil {
		t.Fatalf("assessment failed: %v", err)
	}
	if !result.ShouldBlock {
		t.Fatalf("expected block at score %v with threshold 0.5", result.RiskScore)
	}
	if !result.RequiresReview {
		t.Fatal("blocked attempts must require review")
	}
}

func TestHistoryAssessor_HighRiskRequiresReviewWithoutBlock(t *testing.T) {
	db := setupFraudTestDB(t)
	a := NewHistoryAssessor(db, DefaultScorer(), 0.9)
	ctx := context.Background()

	fixture := cleanFixture()
	fixture.Signals[fingerprint.CategoryUserAgent] = fingerprint.Present("Mozilla/5.0 TorBrowser/13.0")
	fixture.Signals[fingerprint.CategoryScreen] = fingerprint.Present("640x480x24")
	fixture.Signals[fingerprint.CategoryHardware] = fingerprint.Absent()

	result, err := a.AssessFraudSignal(ctx, "mallory", generate(t, fixture))
	if err != nil {
		t.Fatalf("assessment failed: %v", err)
	}
	if result.ShouldBlock {
		t.Fatalf("score %v must stay under the 0.9 block threshold", result.RiskScore)
	}
	if !result.RequiresReview {
		t.Fatal("expected high-band score to require review")
	}
}

func TestHistoryAssessor_DistinctDevicesGetDistinctProfiles(t *testing.T) {
	db := setupFraudTestDB(t)
	a := NewHistoryAssessor(db, DefaultScorer(), 0.8)
	ctx := context.Background()

	a.AssessFraudSignal(ctx, "alice", generate(t, cleanFixture()))

	other := cleanFixture()
	other.Signals[fingerprint.CategoryScreen] = fingerprint.Present("1920x1080x24")
	a.AssessFraudSignal(ctx, "alice", generate(t, other))

	var count int64
	db.Model(&models.DeviceProfile{}).Where("identity = ?", "alice").Count(&count)
	if count != 2 {
		t.Fatalf("expected two device profiles, got %d", count)
	}
}
