package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/sentra/authengine/internal/auth"
	"github.com/sentra/authengine/internal/config"
	"github.com/sentra/authengine/internal/database"
	"github.com/sentra/authengine/internal/delivery"
	"github.com/sentra/authengine/internal/events"
	"github.com/sentra/authengine/internal/fingerprint"
	"github.com/sentra/authengine/internal/handlers"
	"github.com/sentra/authengine/internal/metrics"
	"github.com/sentra/authengine/internal/middleware"
	"github.com/sentra/authengine/internal/ratelimit"
	"github.com/sentra/authengine/internal/risk"
	"github.com/sentra/authengine/internal/session"
	"github.com/sentra/authengine/internal/storage"
	"github.com/sentra/authengine/internal/verify"
	"github.com/sentra/authengine/pkg/logger"
	"github.com/sentra/authengine/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureTokens(cfg.Secret.AppSecret, cfg.Secret.ChallengeExpiry)
	utils.ConfigureEncryption(cfg.Secret.AppSecret)
	utils.StartJTICleanup(5 * time.Minute)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	sessionStore := session.Store(session.NewGormStore(db))
	redisClient, err := database.NewRedis(context.Background(), cfg.Redis)
	if err != nil {
		logger.Warn("redis_unavailable", map[string]interface{}{
			"error":    err.Error(),
			"fallback": "gorm session mirror",
		})
	} else {
		sessionStore = session.NewRedisStore(redisClient)
	}
	sessions := session.NewManager(sessionStore, cfg.Session.TTL)

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	eventService := events.NewService(db, storageClient, cfg.Events.QueueSize)
	eventService.StartExporter(cfg.Events.ExportInterval)

	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.WebAuthn.RPDisplayName,
		RPID:          cfg.WebAuthn.RPID,
		RPOrigins:     cfg.WebAuthn.RPOrigins,
	})
	if err != nil {
		log.Fatalf("webauthn initialization failed: %v", err)
	}

	pinVerifier := verify.NewPinVerifier(db, cfg.Pin.MaxAttempts, cfg.Pin.LockoutDuration)
	smsVerifier := verify.NewSmsVerifier(db, delivery.LogCodeSender{}, cfg.Otp.Length, cfg.Otp.Expiry, cfg.Otp.MaxAttempts)
	pushVerifier := verify.NewPushVerifier(db, delivery.LogPushDispatcher{}, cfg.Push.Timeout)
	platformVerifier := verify.NewPlatformVerifier(db, wa, cfg.Secret.ChallengeExpiry)
	totpVerifier := verify.NewTotpVerifier(db, cfg.WebAuthn.RPDisplayName)

	chain, err := auth.NewChain(cfg.Chain.Methods)
	if err != nil {
		log.Fatalf("invalid fallback chain: %v", err)
	}

	scorer := risk.NewScorer(cfg.Risk.MediumThreshold, cfg.Risk.HighThreshold)
	assessor := risk.NewHistoryAssessor(db, scorer, cfg.Risk.BlockThreshold)

	orchestrator := auth.NewOrchestrator(
		ratelimit.NewLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxAttempts),
		sessions,
		chain,
	)
	orchestrator.Platform = platformVerifier
	orchestrator.Pin = pinVerifier
	orchestrator.Sms = smsVerifier
	orchestrator.Push = pushVerifier
	orchestrator.Totp = totpVerifier
	orchestrator.Fraud = assessor
	orchestrator.Events = eventService

	generator := fingerprint.NewGenerator(cfg.Risk.FingerprintSalt)

	authHandler := handlers.NewAuthHandler(orchestrator, generator, smsVerifier, pushVerifier, platformVerifier)
	enrollHandler := handlers.NewEnrollHandler(pinVerifier, totpVerifier, platformVerifier)
	sessionHandler := handlers.NewSessionHandler(sessions)

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

	go func() {
		metricsAddr := fmt.Sprintf(":%s", cfg.Server.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("metrics_listener_failed", err, map[string]interface{}{
				"address": metricsAddr,
			})
		}
	}()

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":           cfg.Server.Port,
		"address":        listenAddr,
		"fallback_chain": cfg.Chain.Methods,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			eventService.Close()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
