package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/renderscope/api/internal/auth"
	"github.com/renderscope/api/internal/logging"
	"github.com/renderscope/api/pkg/response"
)

type AuthMiddleware struct {
	issuer *auth.TokenIssuer
	logger *slog.Logger
}

func NewAuthMiddleware(issuer *auth.TokenIssuer, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{issuer: issuer, logger: logging.WithComponent(logger, "auth")}
}

// Authenticate validates JWT token from Authorization header
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		claims, err := m.issuer.Validate(parts[1])
		if err != nil {
			m.reject(c, parts[1], err)
			return response.Unauthorized(c, "Invalid or expired token")
		}

		// Store user info in context
		c.Locals("userId", claims.UserID)
		c.Locals("email", claims.Email)
		c.Locals("claims", claims)

		return c.Next()
	}
}

// AuthenticateQuery validates a token passed as ?token=, for WebSocket upgrades
// where browsers cannot set headers.
func (m *AuthMiddleware) AuthenticateQuery() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			return response.Unauthorized(c, "Missing token")
		}

		claims, err := m.issuer.Validate(token)
		if err != nil {
			m.reject(c, token, err)
			return response.Unauthorized(c, "Invalid or expired token")
		}

		c.Locals("userId", claims.UserID)
		c.Locals("claims", claims)
		return c.Next()
	}
}

func (m *AuthMiddleware) reject(c *fiber.Ctx, token string, err error) {
	m.logger.Warn("token rejected",
		"path", c.Path(),
		"ip", c.IP(),
		"token", logging.SanitizeToken(token),
		"error", err,
	)
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}

// GetClaims extracts the token claims from context
func GetClaims(c *fiber.Ctx) *auth.Claims {
	if claims, ok := c.Locals("claims").(*auth.Claims); ok {
		return claims
	}
	return nil
}
