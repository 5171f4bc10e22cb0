package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/sentra/authengine/internal/middleware"
	"github.com/sentra/authengine/internal/verify"
	"github.com/sentra/authengine/pkg/utils"
)

// EnrollHandler manages credential enrollment. All routes require an
// authenticated session; the enrolled identity is always the session's.
type EnrollHandler struct {
	Pin      *verify.PinVerifier
	Totp     *verify.TotpVerifier
	Platform *verify.PlatformVerifier
}

func NewEnrollHandler(pin *verify.PinVerifier, totp *verify.TotpVerifier, platform *verify.PlatformVerifier) *EnrollHandler {
	return &EnrollHandler{Pin: pin, Totp: totp, Platform: platform}
}

type pinEnrollRequest struct {
	Pin string `json:"pin"`
}

func (h *EnrollHandler) PinEnroll(c *fiber.Ctx) error {
	sess := middleware.GetCurrentSession(c)
	if sess == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req pinEnrollRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.Pin.Enroll(c.UserContext(), sess.Identity, req.Pin); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"enrolled": true})
}

func (h *EnrollHandler) TotpEnroll(c *fiber.Ctx) error {
	sess := middleware.GetCurrentSession(c)
	if sess == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	url, err := h.Totp.Enroll(c.UserContext(), sess.Identity)
	if err != nil {
		return utils.Error(c, fiber.StatusConflict, err.Error())
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"provisioningUrl": url})
}

type totpConfirmRequest struct {
	Code string `json:"code"`
}

func (h *EnrollHandler) TotpConfirm(c *fiber.Ctx) error {
	sess := middleware.GetCurrentSession(c)
	if sess == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req totpConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	res := h.Totp.ConfirmEnrollment(c.UserContext(), sess.Identity, req.Code)
	if !res.Success {
		return utils.Error(c, statusForKind(res.Kind), string(res.Kind))
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"enabled": true})
}

func (h *EnrollHandler) PlatformRegisterBegin(c *fiber.Ctx) error {
	sess := middleware.GetCurrentSession(c)
	if sess == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	options, err := h.Platform.BeginRegistration(c.UserContext(), sess.Identity)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to begin registration")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"options": options})
}

type platformRegisterFinishRequest struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

func (h *EnrollHandler) PlatformRegisterFinish(c *fiber.Ctx) error {
	sess := middleware.GetCurrentSession(c)
	if sess == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req platformRegisterFinishRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	cred, err := h.Platform.FinishRegistration(c.UserContext(), sess.Identity, req.Name, req.Response)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed to verify credential")
	}
	return utils.Success(c, fiber.StatusCreated, fiber.Map{"credential": cred})
}
