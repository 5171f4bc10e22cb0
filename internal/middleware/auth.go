package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/sentra/authengine/internal/session"
	"github.com/sentra/authengine/pkg/logger"
	"github.com/sentra/authengine/pkg/utils"
)

const currentSessionKey = "currentSession"

type SessionMiddleware struct {
	Sessions *session.Manager
}

func NewSessionMiddleware(sessions *session.Manager) *SessionMiddleware {
	return &SessionMiddleware{Sessions: sessions}
}

func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	})
}

// RequireSession validates the bearer token against the session manager.
// Validation touches lastActivityAt as a side effect.
func (m *SessionMiddleware) RequireSession(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		logger.Warn("session_missing_header", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "missing authorization header")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if token == authHeader || token == "" {
		logger.Warn("session_invalid_format", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid authorization format")
	}

	record := m.Sessions.Validate(c.UserContext(), token)
	if record == nil {
		logger.Warn("session_validation_failed", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired session")
	}

	c.Locals(currentSessionKey, record)
	return c.Next()
}

func GetCurrentSession(c *fiber.Ctx) *session.Record {
	value := c.Locals(currentSessionKey)
	if value == nil {
		return nil
	}
	record, ok := value.(*session.Record)
	if !ok {
		return nil
	}
	return record
}
