package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/sentra/authengine/internal/auth"
	"github.com/sentra/authengine/internal/events"
	"github.com/sentra/authengine/internal/fingerprint"
	"github.com/sentra/authengine/internal/middleware"
	"github.com/sentra/authengine/internal/models"
	"github.com/sentra/authengine/internal/ratelimit"
	"github.com/sentra/authengine/internal/risk"
	"github.com/sentra/authengine/internal/session"
	"github.com/sentra/authengine/internal/verify"
	"github.com/sentra/authengine/pkg/logger"
	"github.com/sentra/authengine/pkg/utils"
)

type fakeSender struct {
	mu       sync.Mutex
	lastCode string
	fail     bool
}

func (s *fakeSender) SendOneTimeCode(_ context.Context, _, _, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("gateway unreachable")
	}
	s.lastCode = code
	return nil
}

func (s *fakeSender) code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCode
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent int
}

func (d *fakeDispatcher) DispatchPushChallenge(_ context.Context, _ string, _ map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent++
	return nil
}

type testEnv struct {
	app        *fiber.App
	db         *gorm.DB
	sessions   *session.Manager
	sender     *fakeSender
	dispatcher *fakeDispatcher
	pin        *verify.PinVerifier
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureTokens("handlers-test-secret", 5*time.Minute)
		utils.ConfigureEncryption("handlers-test-secret")
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.PinCredential{},
		&models.OneTimeCode{},
		&models.PushChallenge{},
		&models.PlatformCredential{},
		&models.PlatformChallenge{},
		&models.TOTPConfig{},
		&models.SessionRecord{},
		&models.DeviceProfile{},
		&models.SecurityEvent{},
		&models.SecurityEventExportCursor{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: "authengine-test",
		RPID:          "localhost",
		RPOrigins:     []string{"http://localhost"},
	})
	if err != nil {
		t.Fatalf("failed constructing webauthn: %v", err)
	}

	sender := &fakeSender{}
	dispatcher := &fakeDispatcher{}

	pinVerifier := verify.NewPinVerifier(db, 5, 15*time.Minute)
	smsVerifier := verify.NewSmsVerifier(db, sender, 6, 5*time.Minute, 3)
	pushVerifier := verify.NewPushVerifier(db, dispatcher, 2*time.Minute)
	platformVerifier := verify.NewPlatformVerifier(db, wa, 5*time.Minute)
	totpVerifier := verify.NewTotpVerifier(db, "authengine-test")

	sessions := session.NewManager(session.NopStore{}, 30*time.Minute)
	eventService := events.NewService(db, nil, 100)
	t.Cleanup(eventService.Close)

	orchestrator := auth.NewOrchestrator(
		ratelimit.NewLimiter(15*time.Minute, 10),
		sessions,
		auth.DefaultChain(),
	)
	orchestrator.Platform = platformVerifier
	orchestrator.Pin = pinVerifier
	orchestrator.Sms = smsVerifier
	orchestrator.Push = pushVerifier
	orchestrator.Totp = totpVerifier
	orchestrator.Fraud = risk.NewHistoryAssessor(db, risk.DefaultScorer(), 0.8)
	orchestrator.Events = eventService

	generator := fingerprint.NewGenerator("test-salt")

	authHandler := NewAuthHandler(orchestrator, generator, smsVerifier, pushVerifier, platformVerifier)
	enrollHandler := NewEnrollHandler(pinVerifier, totpVerifier, platformVerifier)
	sessionHandler := NewSessionHandler(sessions)
	sessionMiddleware := middleware.NewSessionMiddleware(sessions)

	app := fiber.New()
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/attempt", authHandler.Attempt)
	authRoutes.Post("/sms/send", authHandler.SmsSend)
	authRoutes.Post("/push/send", authHandler.PushSend)
	authRoutes.Post("/push/respond", authHandler.PushRespond)
	authRoutes.Post("/platform/begin", authHandler.PlatformBegin)

	enrollRoutes := api.Group("/enroll", sessionMiddleware.RequireSession)
	enrollRoutes.Post("/pin", enrollHandler.PinEnroll)
	enrollRoutes.Post("/totp", enrollHandler.TotpEnroll)
	enrollRoutes.Post("/totp/confirm", enrollHandler.TotpConfirm)
	enrollRoutes.Post("/platform/begin", enrollHandler.PlatformRegisterBegin)
	enrollRoutes.Post("/platform/finish", enrollHandler.PlatformRegisterFinish)

	sessionRoutes := api.Group("/session", sessionMiddleware.RequireSession)
	sessionRoutes.Get("/", sessionHandler.Current)
	sessionRoutes.Post("/refresh", sessionHandler.Refresh)
	sessionRoutes.Post("/revoke", sessionHandler.Revoke)
	sessionRoutes.Post("/revoke-all", sessionHandler.RevokeAll)

	return &testEnv{
		app:        app,
		db:         db,
		sessions:   sessions,
		sender:     sender,
		dispatcher: dispatcher,
		pin:        pinVerifier,
	}
}

func enrollPin(t *testing.T, env *testEnv, identity, pin string) {
	t.Helper()
	if err := env.pin.Enroll(context.Background(), identity, pin); err != nil {
		t.Fatalf("failed enrolling pin: %v", err)
	}
}

func createSession(t *testing.T, env *testEnv, identity string) string {
	t.Helper()
	record, err := env.sessions.Create(context.Background(), identity, "pin")
	if err != nil {
		t.Fatalf("failed creating session: %v", err)
	}
	return record.Token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}
	return payload
}

func dataField(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object in envelope, got %v", body)
	}
	return data
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
