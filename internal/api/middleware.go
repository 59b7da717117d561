package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/support-chat/internal/auth"
	"github.com/fathima-sithara/support-chat/internal/domain"
)

const adminLocalsKey = "admin"

// APIKeyRequired gates widget-origin calls on the shared key, taken from the
// x-api-key header or the apiKey query parameter.
func APIKeyRequired(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		supplied := c.Get("x-api-key")
		if supplied == "" {
			supplied = c.Query("apiKey")
		}
		if supplied == "" {
			return respondError(c, fiber.StatusUnauthorized, "API key required")
		}
		if supplied != key {
			return respondError(c, fiber.StatusUnauthorized, "Invalid API key")
		}
		return c.Next()
	}
}

// AdminRequired verifies the bearer token, confirms the identity still holds
// an admin grant, and attaches the decoded claims for downstream handlers.
func AdminRequired(tm *auth.TokenManager, grants auth.GrantStore, log *zap.Logger) fiber.Handler {
	return adminGate(tm, grants, log, bearerToken)
}

// AdminStreamRequired is the same gate taking the token from the ?token query
// parameter first; browser WebSocket clients cannot set request headers.
func AdminStreamRequired(tm *auth.TokenManager, grants auth.GrantStore, log *zap.Logger) fiber.Handler {
	return adminGate(tm, grants, log, func(c *fiber.Ctx) string {
		if token := c.Query("token"); token != "" {
			return token
		}
		return bearerToken(c)
	})
}

func bearerToken(c *fiber.Ctx) string {
	hdr := c.Get("Authorization")
	if !strings.HasPrefix(hdr, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(hdr, "Bearer ")
}

func adminGate(tm *auth.TokenManager, grants auth.GrantStore, log *zap.Logger, extract func(*fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extract(c)
		if token == "" {
			return respondError(c, fiber.StatusUnauthorized, "Admin token required")
		}

		claims, err := tm.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				return respondError(c, fiber.StatusUnauthorized, "Token expired")
			}
			return respondError(c, fiber.StatusUnauthorized, "Invalid token")
		}

		ok, err := grants.HasAdminGrant(c.Context(), claims.Email)
		if err != nil {
			log.Error("admin grant lookup failed", zap.Error(err))
			return respondError(c, fiber.StatusInternalServerError, "Authentication error")
		}
		if !ok {
			return respondError(c, fiber.StatusForbidden, "Admin access required")
		}

		c.Locals(adminLocalsKey, claims)
		return c.Next()
	}
}

func adminClaims(c *fiber.Ctx) *auth.AdminClaims {
	claims, _ := c.Locals(adminLocalsKey).(*auth.AdminClaims)
	return claims
}

// SessionIDRequired validates the :sessionId path parameter format before
// any store access.
func SessionIDRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("sessionId")
		if id == "" {
			return respondError(c, fiber.StatusBadRequest, "Session ID required")
		}
		if !domain.ValidSessionID(id) {
			return respondError(c, fiber.StatusBadRequest, "Invalid session ID format")
		}
		return c.Next()
	}
}
