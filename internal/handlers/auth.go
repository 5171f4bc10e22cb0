package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/sentra/authengine/internal/auth"
	"github.com/sentra/authengine/internal/fingerprint"
	"github.com/sentra/authengine/internal/verify"
	"github.com/sentra/authengine/pkg/utils"
)

type AuthHandler struct {
	Orchestrator *auth.Orchestrator
	Fingerprints *fingerprint.Generator
	Sms          *verify.SmsVerifier
	Push         *verify.PushVerifier
	Platform     *verify.PlatformVerifier
}

func NewAuthHandler(orchestrator *auth.Orchestrator, generator *fingerprint.Generator, sms *verify.SmsVerifier, push *verify.PushVerifier, platform *verify.PlatformVerifier) *AuthHandler {
	return &AuthHandler{
		Orchestrator: orchestrator,
		Fingerprints: generator,
		Sms:          sms,
		Push:         push,
		Platform:     platform,
	}
}

type attemptRequest struct {
	Identity       string            `json:"identity"`
	Method         string            `json:"method"`
	ChallengeToken string            `json:"challengeToken"`
	Pin            string            `json:"pin"`
	Code           string            `json:"code"`
	PushToken      string            `json:"pushToken"`
	PushApproved   bool              `json:"pushApproved"`
	Assertion      json.RawMessage   `json:"assertion"`
	Signals        map[string]string `json:"signals"`
}

// Attempt runs one authentication attempt through the fallback chain.
func (h *AuthHandler) Attempt(c *fiber.Ctx) error {
	var req attemptRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Identity == "" {
		return utils.Error(c, fiber.StatusBadRequest, "identity is required")
	}

	var method auth.Method
	if req.Method != "" {
		parsed, err := auth.ParseMethod(req.Method)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, err.Error())
		}
		method = parsed
	}

	request := auth.Request{
		Identity:       req.Identity,
		Method:         method,
		ChallengeToken: req.ChallengeToken,
		Pin:            req.Pin,
		Code:           req.Code,
		PushToken:      req.PushToken,
		PushApproved:   req.PushApproved,
		Assertion:      req.Assertion,
	}
	if len(req.Signals) > 0 {
		fp := h.Fingerprints.Generate(fingerprint.ProviderFromValues(req.Signals))
		request.Fingerprint = &fp
	}

	result := h.Orchestrator.Authenticate(c.UserContext(), request)

	status := fiber.StatusOK
	if !result.Success {
		status = statusForKind(result.ErrorKind)
	}
	return c.Status(status).JSON(fiber.Map{
		"success": result.Success,
		"data":    result,
	})
}

func statusForKind(kind verify.Kind) int {
	switch kind {
	case auth.KindRateLimitExceeded, verify.KindCredentialLockedOut:
		return fiber.StatusTooManyRequests
	case auth.KindBlocked:
		return fiber.StatusForbidden
	case verify.KindInvalidFormat:
		return fiber.StatusBadRequest
	case verify.KindProviderFailure:
		return fiber.StatusBadGateway
	}
	return fiber.StatusUnauthorized
}

type smsSendRequest struct {
	Identity string `json:"identity"`
	Phone    string `json:"phone"`
}

// SmsSend issues a fresh one-time code for the identity.
func (h *AuthHandler) SmsSend(c *fiber.Ctx) error {
	var req smsSendRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Identity == "" || req.Phone == "" {
		return utils.Error(c, fiber.StatusBadRequest, "identity and phone are required")
	}

	if err := h.Sms.SendCode(c.UserContext(), req.Identity, req.Phone); err != nil {
		return utils.Error(c, fiber.StatusBadGateway, "failed sending code")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"sent": true})
}

type pushSendRequest struct {
	Identity string `json:"identity"`
}

// PushSend dispatches an approval challenge to the identity's device.
func (h *AuthHandler) PushSend(c *fiber.Ctx) error {
	var req pushSendRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Identity == "" {
		return utils.Error(c, fiber.StatusBadRequest, "identity is required")
	}

	token, err := h.Push.SendChallenge(c.UserContext(), req.Identity)
	if err != nil {
		return utils.Error(c, fiber.StatusBadGateway, "failed dispatching challenge")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"pushToken": token})
}

type pushRespondRequest struct {
	PushToken string `json:"pushToken"`
	Approved  bool   `json:"approved"`
}

// PushRespond records the device's approve/deny answer without minting a
// session. An approval parks the challenge until the pending attempt claims
// it through Attempt; a denial settles it immediately.
func (h *AuthHandler) PushRespond(c *fiber.Ctx) error {
	var req pushRespondRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.PushToken == "" {
		return utils.Error(c, fiber.StatusBadRequest, "pushToken is required")
	}

	res := h.Push.Resolve(c.UserContext(), req.PushToken, req.Approved)
	if !res.Success && res.Kind != verify.KindCredentialMismatch {
		return utils.Error(c, statusForKind(res.Kind), string(res.Kind))
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"resolved": true, "approved": res.Success})
}

type platformBeginRequest struct {
	Identity string `json:"identity"`
}

// PlatformBegin starts an assertion ceremony and returns the client options.
func (h *AuthHandler) PlatformBegin(c *fiber.Ctx) error {
	var req platformBeginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Identity == "" {
		return utils.Error(c, fiber.StatusBadRequest, "identity is required")
	}

	options, res, err := h.Platform.BeginAuthentication(c.UserContext(), req.Identity)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to begin ceremony")
	}
	if !res.Success {
		return utils.Error(c, statusForKind(res.Kind), string(res.Kind))
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"options": options})
}
