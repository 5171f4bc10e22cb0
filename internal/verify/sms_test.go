package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sentra/authengine/internal/models"
)

// captureSender records dispatched codes instead of hitting a gateway.
type captureSender struct {
	lastCode string
	lastTo   string
	fail     bool
	sent     int
}

func (s *captureSender) SendOneTimeCode(ctx context.Context, identity, phone, code string) error {
	if s.fail {
		return errors.New("gateway unreachable")
	}
	s.lastCode = code
	s.lastTo = phone
	s.sent++
	return nil
}

func TestSmsVerifier_SendAndVerify(t *testing.T) {
	db := setupVerifyTestDB(t)
	sender := &captureSender{}
	v := NewSmsVerifier(db, sender, 6, 5*time.Minute, 3)
	ctx := context.Background()

	if err := v.SendCode(ctx, "alice", "+15550100"); err != nil {
		t.Fatalf("failed sending code: %v", err)
	}
	if len(sender.lastCode) != 6 {
		t.Fatalf("expected 6-digit code, got %q", sender.lastCode)
	}
	if sender.lastTo != "+15550100" {
		t.Fatalf("code sent to wrong number: %q", sender.lastTo)
	}

	res := v.Verify(ctx, "alice", sender.lastCode)
	if !res.Success {
		t.Fatalf("expected correct code to verify, got %+v", res)
	}
}

func TestSmsVerifier_CodeIsSingleUse(t *testing.T) {
	db := setupVerifyTestDB(t)
	sender := &captureSender{}
	v := NewSmsVerifier(db, sender, 6, 5*time.Minute, 3)
	ctx := context.Background()

	if err := v.SendCode(ctx, "alice", "+15550100"); err != nil {
		t.Fatalf("failed sending code: %v", err)
	}

	if res := v.Verify(ctx, "alice", sender.lastCode); !res.Success {
		t.Fatalf("first use should succeed, got %+v", res)
	}

	res := v.Verify(ctx, "alice", sender.lastCode)
	if res.Success || res.Kind != KindChallengeAlreadyResolved {
		t.Fatalf("expected challenge_already_resolved on replay, got %+v", res)
	}
}

func TestSmsVerifier_ExpiredCode(t *testing.T) {
	db := setupVerifyTestDB(t)
	sender := &captureSender{}
	clock := newFakeClock()
	v := NewSmsVerifier(db, sender, 6, 5*time.Minute, 3)
	v.now = clock.Now
	ctx := context.Background()

	if err := v.SendCode(ctx, "alice", "+15550100"); err != nil {
		t.Fatalf("failed sending code: %v", err)
	}

	clock.Advance(5*time.Minute + time.Second)

	res := v.Verify(ctx, "alice", sender.lastCode)
	if res.Success || res.Kind != KindChallengeExpired {
		t.Fatalf("expected challenge_expired, got %+v", res)
	}
}

func TestSmsVerifier_AttemptBudgetBurnsCode(t *testing.T) {
	db := setupVerifyTestDB(t)
	sender := &captureSender{}
	v := NewSmsVerifier(db, sender, 6, 5*time.Minute, 3)
	ctx := context.Background()

	if err := v.SendCode(ctx, "alice", "+15550100"); err != nil {
		t.Fatalf("failed sending code: %v", err)
	}

	for i := 0; i < 3; i++ {
		res := v.Verify(ctx, "alice", "000000")
		if res.Kind != KindCredentialMismatch {
			t.Fatalf("guess %d: expected credential_mismatch, got %+v", i+1, res)
		}
	}

	// Budget spent: even the right code is refused now.
	res := v.Verify(ctx, "alice", sender.lastCode)
	if res.Success || res.Kind != KindChallengeAlreadyResolved {
		t.Fatalf("expected burned code after exhausted attempts, got %+v", res)
	}
}

func TestSmsVerifier_ResendInvalidatesPreviousCode(t *testing.T) {
	db := setupVerifyTestDB(t)
	sender := &captureSender{}
	v := NewSmsVerifier(db, sender, 6, 5*time.Minute, 3)
	ctx := context.Background()

	if err := v.SendCode(ctx, "alice", "+15550100"); err != nil {
		t.Fatalf("failed sending first code: %v", err)
	}
	firstCode := sender.lastCode

	if err := v.SendCode(ctx, "alice", "+15550100"); err != nil {
		t.Fatalf("failed sending second code: %v", err)
	}

	if firstCode != sender.lastCode {
		if res := v.Verify(ctx, "alice", firstCode); res.Success {
			t.Fatal("superseded code must not verify")
		}
	}
	if res := v.Verify(ctx, "alice", sender.lastCode); !res.Success {
		t.Fatalf("latest code must verify, got %+v", res)
	}
}

func TestSmsVerifier_DeliveryFailureRemovesCode(t *testing.T) {
	db := setupVerifyTestDB(t)
	sender := &captureSender{fail: true}
	v := NewSmsVerifier(db, sender, 6, 5*time.Minute, 3)
	ctx := context.Background()

	if err := v.SendCode(ctx, "alice", "+15550100"); err == nil {
		t.Fatal("expected delivery failure to surface")
	}

	var count int64
	db.Model(&models.OneTimeCode{}).Where("identity = ?", "alice").Count(&count)
	if count != 0 {
		t.Fatalf("expected no code rows after failed delivery, found %d", count)
	}
}

func TestSmsVerifier_NoOutstandingCode(t *testing.T) {
	db := setupVerifyTestDB(t)
	v := NewSmsVerifier(db, &captureSender{}, 6, 5*time.Minute, 3)

	res := v.Verify(context.Background(), "alice", "123456")
	if res.Success || res.Kind != KindChallengeExpired {
		t.Fatalf("expected challenge_expired with no code issued, got %+v", res)
	}
}
