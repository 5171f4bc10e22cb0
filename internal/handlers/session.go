package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sentra/authengine/internal/middleware"
	"github.com/sentra/authengine/internal/session"
	"github.com/sentra/authengine/pkg/utils"
)

type SessionHandler struct {
	Sessions *session.Manager
}

func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{Sessions: sessions}
}

// Current returns the validated session attached by the middleware.
func (h *SessionHandler) Current(c *fiber.Ctx) error {
	sess := middleware.GetCurrentSession(c)
	if sess == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, sess)
}

// Refresh extends the session's expiry by the configured TTL.
func (h *SessionHandler) Refresh(c *fiber.Ctx) error {
	sess := middleware.GetCurrentSession(c)
	if sess == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	refreshed := h.Sessions.Refresh(c.UserContext(), sess.Token)
	if refreshed == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "session no longer valid")
	}
	return utils.Success(c, fiber.StatusOK, refreshed)
}

// Revoke ends the current session.
func (h *SessionHandler) Revoke(c *fiber.Ctx) error {
	sess := middleware.GetCurrentSession(c)
	if sess == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	h.Sessions.Revoke(c.UserContext(), sess.Token)
	return utils.Success(c, fiber.StatusOK, fiber.Map{"revoked": true})
}

// RevokeAll ends every session for the current identity, the current one
// included.
func (h *SessionHandler) RevokeAll(c *fiber.Ctx) error {
	sess := middleware.GetCurrentSession(c)
	if sess == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	count := h.Sessions.RevokeAll(c.UserContext(), sess.Identity)
	return utils.Success(c, fiber.StatusOK, fiber.Map{"revoked": count})
}
